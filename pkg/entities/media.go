package entities

import "time"

// SearchResult is one usable hit returned by an extractor.
type SearchResult struct {
	Extractor         string
	ExtractorIcon     string
	ExtractorFullName string
	ID                string
	Title             string
	Channel           string
	Link              string
	Metadata          []string
}

// Stream is a downloadable encoding of a media item.
type Stream struct {
	Extractor  string
	ID         string
	Name       string
	Resolution string
	Bitrate    float64 // kbps
	Size       int64
}

// StreamSet is what the format selection screen is built from.
type StreamSet struct {
	Audio   []Stream
	Video   []Stream
	Title   string
	Channel string

	// FromMetadata is true when upstream already knows artist and track
	FromMetadata bool
}

// DownloadRequest carries everything the extractor needs for one download.
type DownloadRequest struct {
	Extractor    string
	MediaID      string
	FormatID     string
	IsAudio      bool
	TargetFormat string
	Bitrate      *float64
	Author       *string
	Title        *string
}

// Progress is an incremental download status report.
type Progress struct {
	Finished bool
	Fraction float64 // 0..1

	Elapsed *time.Duration
	ETA     *time.Duration
	Speed   *float64 // bytes per second
	Stage   string
}

// Name is a guessed (author, title) pair.
type Name struct {
	Author string
	Title  string
}
