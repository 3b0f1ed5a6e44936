package media

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed extractors.toml
var defaultExtractors []byte

// ExtractorConfig describes one media source.
type ExtractorConfig struct {
	Name         string `toml:"name"`
	FullName     string `toml:"full_name"`
	Icon         string `toml:"icon"`
	SearchPrefix string `toml:"search_prefix"`
	Args         string `toml:"args"`
	Enabled      bool   `toml:"enabled"`
}

type extractorsFile struct {
	Extractors []ExtractorConfig `toml:"extractors"`
}

// DefaultExtractors returns the embedded extractor list.
func DefaultExtractors() []ExtractorConfig {
	list, err := ParseExtractors(defaultExtractors)
	if err != nil {
		panic(fmt.Sprintf("embedded extractors: %v", err))
	}
	return list
}

// LoadExtractors reads the extractor list from a TOML file.
func LoadExtractors(path string) ([]ExtractorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading extractors file: %w", err)
	}
	return ParseExtractors(data)
}

func ParseExtractors(data []byte) ([]ExtractorConfig, error) {
	var f extractorsFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding toml: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Extractors))
	for i, ex := range f.Extractors {
		if strings.TrimSpace(ex.Name) == "" {
			return nil, fmt.Errorf("extractor #%d has no name", i+1)
		}
		if strings.Contains(ex.Name, "|") {
			return nil, fmt.Errorf("extractor %q: name must not contain '|'", ex.Name)
		}
		key := strings.ToLower(ex.Name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("extractor %q is listed twice", ex.Name)
		}
		seen[key] = struct{}{}
	}

	return f.Extractors, nil
}

func findExtractor(list []ExtractorConfig, name string) (ExtractorConfig, bool) {
	for _, ex := range list {
		if strings.EqualFold(ex.Name, name) {
			return ex, true
		}
	}
	return ExtractorConfig{}, false
}

// describe returns the display name and icon of an extractor.
func describe(list []ExtractorConfig, name string) (string, string) {
	ex, ok := findExtractor(list, name)
	if !ok || ex.FullName == "" {
		return name, "[" + name + "]"
	}
	return ex.FullName, ex.Icon
}
