package messages

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalogRenders(t *testing.T) {
	c := Default()

	got := c.Text(Searching, struct{ Query string }{Query: "<b>rick</b>"})
	if !strings.Contains(got, "&lt;b&gt;rick&lt;/b&gt;") {
		t.Errorf("Searching text does not escape the query: %q", got)
	}

	label := c.Button(ButtonRenameGuess, struct{ Author, Title string }{"AC&DC", "T.N.T."})
	if label != "AC&DC - T.N.T." {
		t.Errorf("rename guess button = %q, want %q", label, "AC&DC - T.N.T.")
	}

	if got := c.Error(DownloadError, errors.New("boom")); !strings.Contains(got, "boom") {
		t.Errorf("DownloadError = %q, want it to contain the error", got)
	}

	if got := c.Text(Key("nope"), nil); got != "nope" {
		t.Errorf("unknown key rendered %q", got)
	}
}

func TestParseRequiresAllKeysWithoutFallback(t *testing.T) {
	_, err := Parse([]byte("[messages]\nstart = \"hi\"\n"))
	if err == nil {
		t.Fatal("Parse accepted an incomplete catalog")
	}
}

func TestLoadOverridesSomeKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.toml")
	data := "[messages]\nstart = \"Привет\"\n\n[buttons]\nback = \"Назад\"\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := c.Text(Start, nil); got != "Привет" {
		t.Errorf("start = %q, want override", got)
	}
	if got := c.Button(ButtonBack, nil); got != "Назад" {
		t.Errorf("back = %q, want override", got)
	}
	if got := c.Text(Help, nil); got == string(Help) {
		t.Error("help was not taken from the embedded catalog")
	}
}

func TestLoadBrokenTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.toml")
	if err := os.WriteFile(path, []byte("[messages]\nstart = \"{{.Broken\"\n"), 0o644); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted a broken template")
	}
}
