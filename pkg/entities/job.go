package entities

type JobKind string

const (
	JobKindSearch   JobKind = "search"
	JobKindDownload JobKind = "download"
)

// Job is a unit of queued work. Implementations are values and are never
// modified after they are enqueued.
type Job interface {
	JobID() string
	Kind() JobKind
	Chat() int64
	Target() int
}

type SearchJob struct {
	ID            string
	ChatID        int64
	EditMessageID int
	Query         string
}

func (j SearchJob) JobID() string { return j.ID }
func (j SearchJob) Kind() JobKind { return JobKindSearch }
func (j SearchJob) Chat() int64   { return j.ChatID }
func (j SearchJob) Target() int   { return j.EditMessageID }

type DownloadJob struct {
	ID            string
	ChatID        int64
	EditMessageID int
	Extractor     string
	MediaID       string
	FormatID      string
	IsVideo       bool

	// optional, nil means not chosen
	Bitrate *float64
	Author  *string
	Title   *string
}

func (j DownloadJob) JobID() string { return j.ID }
func (j DownloadJob) Kind() JobKind { return JobKindDownload }
func (j DownloadJob) Chat() int64   { return j.ChatID }
func (j DownloadJob) Target() int   { return j.EditMessageID }
