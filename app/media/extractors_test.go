package media

import (
	"testing"
)

func TestDefaultExtractors(t *testing.T) {
	list := DefaultExtractors()
	if len(list) == 0 {
		t.Fatal("no default extractors")
	}

	name, icon := describe(list, "YouTube")
	if name != "YouTube" || icon != "🟥" {
		t.Errorf("describe(YouTube) = %q, %q", name, icon)
	}

	name, icon = describe(list, "rutube")
	if name != "rutube" || icon != "[rutube]" {
		t.Errorf("describe(rutube) = %q, %q", name, icon)
	}
}

func TestParseExtractorsErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "bad toml", data: "[[extractors]\n"},
		{name: "no name", data: "[[extractors]]\nicon = \"x\"\n"},
		{name: "pipe", data: "[[extractors]]\nname = \"a|b\"\n"},
		{name: "duplicate", data: "[[extractors]]\nname = \"a\"\n[[extractors]]\nname = \"A\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseExtractors([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
