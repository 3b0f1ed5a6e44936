package entities

import "time"

type User struct {
	ID   int64
	Name string
}

// Callback is a pressed inline button.
type Callback struct {
	ID        string
	ChatID    int64
	MessageID int
	Sender    User
	Data      string
}

// Button is a single inline button, Data is the encoded payload.
type Button struct {
	Text string
	Data string
}

// Keyboard is a grid of buttons, each inner slice is a row.
type Keyboard [][]Button

// NewKeyboard lays buttons out one per row. Returns nil for no buttons so
// that callers can send a message without markup.
func NewKeyboard(buttons ...Button) Keyboard {
	if len(buttons) == 0 {
		return nil
	}
	kb := make(Keyboard, 0, len(buttons))
	for _, b := range buttons {
		kb = append(kb, []Button{b})
	}
	return kb
}

// Buttons flattens the keyboard row by row.
func (k Keyboard) Buttons() []Button {
	var out []Button
	for _, row := range k {
		out = append(out, row...)
	}
	return out
}

// Screen is a rendered message together with its markup.
type Screen struct {
	Text          string
	Markup        Keyboard
	EditMessageID int
}

// JobRecord is a journal row.
type JobRecord struct {
	ID         string
	Kind       JobKind
	ChatID     int64
	Query      string
	Extractor  string
	MediaID    string
	FormatID   string
	Author     *string
	Title      *string
	Status     JobStatus
	Error      *string
	CreatedAt  time.Time
	FinishedAt *time.Time
}

type JobStatus string

const (
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)
