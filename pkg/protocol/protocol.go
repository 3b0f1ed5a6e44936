// Package protocol encodes inline button payloads and decodes them back.
//
// A payload is ACTION|EDIT_MESSAGE_ID|ARG1|ARG2|... where ACTION is a short
// tag and EDIT_MESSAGE_ID is the message the button lives on. Arguments must
// not contain the separator.
package protocol

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const Separator = "|"

var (
	// ErrStale is returned when a button does not belong to the message it
	// was pressed on, e.g. an old screen or a replayed click.
	ErrStale = errors.New("interaction expired")

	ErrMalformed = errors.New("malformed payload")
)

type Tag string

const (
	TagSelectFormat       Tag = "fmt"
	TagDownload           Tag = "dwn"
	TagRename             Tag = "rnm"
	TagRenameThenDownload Tag = "rdn"
	TagBack               Tag = "sch"
)

// Action is one of SelectFormat, Download, Rename, RenameThenDownload, Back.
type Action interface {
	Tag() Tag
	Target() int
	args() []string
}

// SelectFormat asks for the streams of a media item.
type SelectFormat struct {
	EditMessageID int
	Extractor     string
	MediaID       string
}

// Stream identifies the chosen stream of a media item.
type Stream struct {
	Extractor string
	MediaID   string
	FormatID  string
	IsVideo   bool
	Bitrate   *float64
}

// Download queues the chosen stream.
type Download struct {
	EditMessageID int
	Stream
}

// Rename asks the user for author and title before downloading.
type Rename struct {
	EditMessageID int
	Stream
}

// RenameThenDownload picks guess number NameIndex and downloads.
type RenameThenDownload struct {
	EditMessageID int
	Stream
	NameIndex int
}

// Back restores the cached search results screen.
type Back struct {
	EditMessageID int
}

func (a SelectFormat) Tag() Tag       { return TagSelectFormat }
func (a Download) Tag() Tag           { return TagDownload }
func (a Rename) Tag() Tag             { return TagRename }
func (a RenameThenDownload) Tag() Tag { return TagRenameThenDownload }
func (a Back) Tag() Tag               { return TagBack }

func (a SelectFormat) Target() int       { return a.EditMessageID }
func (a Download) Target() int           { return a.EditMessageID }
func (a Rename) Target() int             { return a.EditMessageID }
func (a RenameThenDownload) Target() int { return a.EditMessageID }
func (a Back) Target() int               { return a.EditMessageID }

func (a SelectFormat) args() []string { return []string{a.Extractor, a.MediaID} }
func (a Download) args() []string     { return a.Stream.args() }
func (a Rename) args() []string       { return a.Stream.args() }
func (a Back) args() []string         { return nil }

func (a RenameThenDownload) args() []string {
	return []string{
		a.Extractor,
		a.MediaID,
		a.FormatID,
		encodeBool(a.IsVideo),
		strconv.Itoa(a.NameIndex),
		encodeBitrate(a.Bitrate),
	}
}

func (s Stream) args() []string {
	return []string{s.Extractor, s.MediaID, s.FormatID, encodeBool(s.IsVideo), encodeBitrate(s.Bitrate)}
}

// Encode renders an action as a button payload.
func Encode(a Action) string {
	parts := append([]string{string(a.Tag()), strconv.Itoa(a.Target())}, a.args()...)
	return strings.Join(parts, Separator)
}

// Decode parses payload pressed on the message with id actualMessageID.
func Decode(payload string, actualMessageID int) (Action, error) {
	if payload == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}

	parts := strings.Split(payload, Separator)
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: no message id", ErrMalformed)
	}

	tag := Tag(parts[0])
	editMessageID, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: message id %q", ErrMalformed, parts[1])
	}
	args := parts[2:]

	if editMessageID < 0 || editMessageID != actualMessageID {
		return nil, ErrStale
	}

	switch tag {
	case TagSelectFormat:
		if err := needArgs(tag, args, 2); err != nil {
			return nil, err
		}
		return SelectFormat{EditMessageID: editMessageID, Extractor: args[0], MediaID: args[1]}, nil

	case TagDownload, TagRename:
		if err := needArgs(tag, args, 5); err != nil {
			return nil, err
		}
		s := Stream{
			Extractor: args[0],
			MediaID:   args[1],
			FormatID:  args[2],
			IsVideo:   decodeBool(args[3]),
			Bitrate:   decodeBitrate(args[4]),
		}
		if tag == TagDownload {
			return Download{EditMessageID: editMessageID, Stream: s}, nil
		}
		return Rename{EditMessageID: editMessageID, Stream: s}, nil

	case TagRenameThenDownload:
		if err := needArgs(tag, args, 6); err != nil {
			return nil, err
		}
		index, err := strconv.Atoi(args[4])
		if err != nil {
			return nil, fmt.Errorf("%w: name index %q", ErrMalformed, args[4])
		}
		return RenameThenDownload{
			EditMessageID: editMessageID,
			Stream: Stream{
				Extractor: args[0],
				MediaID:   args[1],
				FormatID:  args[2],
				IsVideo:   decodeBool(args[3]),
				Bitrate:   decodeBitrate(args[5]),
			},
			NameIndex: index,
		}, nil

	case TagBack:
		return Back{EditMessageID: editMessageID}, nil

	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrMalformed, tag)
	}
}

// KeepsRename reports whether an in-progress rename survives the action.
// Anything else abandons it.
func KeepsRename(a Action) bool {
	switch a.(type) {
	case SelectFormat, Download, Rename, RenameThenDownload:
		return true
	default:
		return false
	}
}

func needArgs(tag Tag, args []string, n int) error {
	if len(args) < n {
		return fmt.Errorf("%w: %s needs %d arguments, got %d", ErrMalformed, tag, n, len(args))
	}
	return nil
}

func encodeBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func decodeBool(s string) bool {
	return s == "1" || strings.EqualFold(s, "t")
}

func encodeBitrate(b *float64) string {
	if b == nil || *b < 0 {
		return "-1"
	}
	return strconv.FormatFloat(*b, 'f', -1, 64)
}

// decodeBitrate never fails: garbage and negative values mean unspecified.
func decodeBitrate(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
