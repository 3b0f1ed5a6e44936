// Package messages holds user visible texts. Every entry is a template,
// messages are rendered with html/template and buttons with text/template.
package messages

import (
	"bytes"
	_ "embed"
	"fmt"
	htmltemplate "html/template"
	"os"
	"text/template"

	"github.com/pelletier/go-toml/v2"
)

//go:embed messages.toml
var defaultCatalog []byte

type Key string

const (
	Start              Key = "start"
	Help               Key = "help"
	EmptyMessage       Key = "empty_message"
	Searching          Key = "searching"
	SearchHeader       Key = "search_header"
	SearchResult       Key = "search_result"
	SearchResultSuffix Key = "search_result_suffix"
	SearchNoResults    Key = "search_no_results"
	SearchError        Key = "search_error"
	FormatSelect       Key = "format_select"
	FormatNoStreams    Key = "format_no_streams"
	RenameAudio        Key = "rename_audio"
	RenameError        Key = "rename_error"
	DownloadStarted    Key = "download_started"
	DownloadProgress   Key = "download_progress"
	ProgressFilled     Key = "progress_filled"
	ProgressEmpty      Key = "progress_empty"
	StageSending       Key = "stage_sending"
	DownloadFinished   Key = "download_finished"
	DownloadError      Key = "download_error"
	ErrorExpired       Key = "error_expired"
	ErrorCommon        Key = "error_common"
	ErrorQueueFull     Key = "error_queue_full"
	ErrorSend          Key = "error_send"
	HistoryHeader      Key = "history_header"
	HistoryEntry       Key = "history_entry"
	HistoryEmpty       Key = "history_empty"

	ButtonSearchResult Key = "search_result"
	ButtonFormatAudio  Key = "format_audio"
	ButtonFormatVideo  Key = "format_video"
	ButtonRenameGuess  Key = "rename_guess"
	ButtonBack         Key = "back"
)

var required = []Key{
	Start, Help, EmptyMessage, Searching, SearchHeader, SearchResult, SearchResultSuffix,
	SearchNoResults, SearchError, FormatSelect, FormatNoStreams, RenameAudio, RenameError,
	DownloadStarted, DownloadProgress, ProgressFilled, ProgressEmpty, StageSending,
	DownloadFinished, DownloadError, ErrorExpired, ErrorCommon, ErrorQueueFull, ErrorSend,
	HistoryHeader, HistoryEntry, HistoryEmpty,
}

var requiredButtons = []Key{
	ButtonSearchResult, ButtonFormatAudio, ButtonFormatVideo, ButtonRenameGuess, ButtonBack,
}

type file struct {
	Messages map[string]string `toml:"messages"`
	Buttons  map[string]string `toml:"buttons"`
}

type Catalog struct {
	texts   map[Key]*htmltemplate.Template
	buttons map[Key]*template.Template
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded messages catalog: %v", err))
	}
	return c
}

// Load reads a catalog from path. Keys missing from the file are taken from
// the embedded catalog.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading messages file: %w", err)
	}

	base := Default()
	override, err := Parse(data, base)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return override, nil
}

// Parse builds a catalog from TOML. With a fallback, absent keys are copied
// from it, otherwise every known key must be present.
func Parse(data []byte, fallback ...*Catalog) (*Catalog, error) {
	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding toml: %w", err)
	}

	c := &Catalog{
		texts:   make(map[Key]*htmltemplate.Template),
		buttons: make(map[Key]*template.Template),
	}

	for name, src := range f.Messages {
		t, err := htmltemplate.New(name).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("message %q: %w", name, err)
		}
		c.texts[Key(name)] = t
	}
	for name, src := range f.Buttons {
		t, err := template.New(name).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("button %q: %w", name, err)
		}
		c.buttons[Key(name)] = t
	}

	for _, k := range required {
		if _, ok := c.texts[k]; ok {
			continue
		}
		if len(fallback) == 0 {
			return nil, fmt.Errorf("message %q is missing", k)
		}
		c.texts[k] = fallback[0].texts[k]
	}
	for _, k := range requiredButtons {
		if _, ok := c.buttons[k]; ok {
			continue
		}
		if len(fallback) == 0 {
			return nil, fmt.Errorf("button %q is missing", k)
		}
		c.buttons[k] = fallback[0].buttons[k]
	}

	return c, nil
}

// Text renders message k. Values in data are HTML escaped. A broken
// template yields the key itself so that the user still gets a reply.
func (c *Catalog) Text(k Key, data any) string {
	t, ok := c.texts[k]
	if !ok {
		return string(k)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return string(k)
	}
	return buf.String()
}

// Button renders button label k as plain text.
func (c *Catalog) Button(k Key, data any) string {
	t, ok := c.buttons[k]
	if !ok {
		return string(k)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return string(k)
	}
	return buf.String()
}

// Error is a shortcut for messages that take a single error string.
func (c *Catalog) Error(k Key, err error) string {
	return c.Text(k, struct{ Error string }{Error: err.Error()})
}
