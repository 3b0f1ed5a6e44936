package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/google/uuid"
	e "nuclight.org/media-tg-bot/pkg/entities"
	"nuclight.org/media-tg-bot/pkg/guess"
	"nuclight.org/media-tg-bot/pkg/messages"
	"nuclight.org/media-tg-bot/pkg/protocol"
	"nuclight.org/media-tg-bot/pkg/session"
)

func (h *Handler) selectFormat(ctx context.Context, chatID int64, a protocol.SelectFormat) {
	log := h.Log.With("chat_id", chatID, "extractor", a.Extractor, "media_id", a.MediaID)

	set, err := h.Extractor.GetStreams(ctx, a.Extractor, a.MediaID)
	if err != nil {
		log.Error("getting streams", "error", err)

		text := h.Catalog.Error(messages.ErrorCommon, err)
		if errors.Is(err, e.ErrExpired) {
			text = h.Catalog.Text(messages.ErrorExpired, nil)
		}
		h.show(ctx, chatID, a.EditMessageID, text, h.backToSearch(chatID, a.EditMessageID))
		return
	}

	rename := map[string]any{
		"edit_message_id": a.EditMessageID,
		"title":           set.Title,
		"channel":         set.Channel,
		"names":           []e.Name{},
		"renamed":         false,
	}
	if set.FromMetadata {
		rename["final"] = map[string]any{"author": set.Channel, "title": set.Title}
	}
	h.Store.Set(chatID, rename, "rename")

	var buttons []e.Button
	for _, s := range set.Audio {
		bitrate := math.Round(s.Bitrate*100) / 100
		stream := protocol.Stream{
			Extractor: a.Extractor,
			MediaID:   a.MediaID,
			FormatID:  s.ID,
			Bitrate:   &bitrate,
		}

		var act protocol.Action = protocol.Rename{EditMessageID: a.EditMessageID, Stream: stream}
		if set.FromMetadata {
			act = protocol.Download{EditMessageID: a.EditMessageID, Stream: stream}
		}

		buttons = append(buttons, e.Button{
			Text: h.Catalog.Button(messages.ButtonFormatAudio, formatLabel{Format: strings.ToUpper(h.AudioFormat), Info: s.Name}),
			Data: protocol.Encode(act),
		})
	}
	for _, s := range set.Video {
		buttons = append(buttons, e.Button{
			Text: h.Catalog.Button(messages.ButtonFormatVideo, formatLabel{Format: strings.ToUpper(h.VideoFormat), Info: s.Name}),
			Data: protocol.Encode(protocol.Download{
				EditMessageID: a.EditMessageID,
				Stream: protocol.Stream{
					Extractor: a.Extractor,
					MediaID:   a.MediaID,
					FormatID:  s.ID,
					IsVideo:   true,
				},
			}),
		})
	}
	buttons = append(buttons, h.backToSearch(chatID, a.EditMessageID).Buttons()...)

	text := h.Catalog.Text(messages.FormatSelect, nil)
	if len(set.Audio) == 0 && len(set.Video) == 0 {
		text = h.Catalog.Text(messages.FormatNoStreams, nil)
	}

	log.Info("formats shown", "audio", len(set.Audio), "video", len(set.Video), "from_metadata", set.FromMetadata)
	h.show(ctx, chatID, a.EditMessageID, text, e.NewKeyboard(buttons...))
}

type formatLabel struct {
	Format string
	Info   string
}

func (h *Handler) rename(ctx context.Context, chatID int64, a protocol.Rename) {
	if _, ok := h.Store.Get(chatID, "rename"); !ok {
		h.send(ctx, chatID, h.Catalog.Text(messages.ErrorExpired, nil), nil)
		return
	}

	title, ok := session.Lookup[string](h.Store, chatID, "rename", "title")
	if !ok || title == "" {
		title = "Untitled"
	}
	channel, ok := session.Lookup[string](h.Store, chatID, "rename", "channel")
	if !ok || channel == "" {
		channel = guess.Unknown
	}

	names := h.withSuggestion(ctx, title, channel, guess.Guess(title, channel))

	buttons := make([]e.Button, 0, len(names)+1)
	for i, n := range names {
		buttons = append(buttons, e.Button{
			Text: h.Catalog.Button(messages.ButtonRenameGuess, n),
			Data: protocol.Encode(protocol.RenameThenDownload{
				EditMessageID: a.EditMessageID,
				Stream:        a.Stream,
				NameIndex:     i,
			}),
		})
	}
	buttons = append(buttons, e.Button{
		Text: h.Catalog.Button(messages.ButtonBack, nil),
		Data: protocol.Encode(protocol.SelectFormat{
			EditMessageID: a.EditMessageID,
			Extractor:     a.Extractor,
			MediaID:       a.MediaID,
		}),
	})

	callback := map[string]any{
		"edit_message_id": a.EditMessageID,
		"extractor":       a.Extractor,
		"id":              a.MediaID,
		"format_id":       a.FormatID,
	}
	if a.Bitrate != nil {
		callback["bitrate"] = *a.Bitrate
	}

	h.Store.SetAll(chatID,
		session.At(names, "rename", "names"),
		session.At(callback, "rename", "callback"),
		session.At(false, "rename", "renamed"),
		session.At(true, "rename", "manual"),
	)

	h.show(ctx, chatID, a.EditMessageID, h.Catalog.Text(messages.RenameAudio, nil), e.NewKeyboard(buttons...))
}

// withSuggestion puts the model's answer in front of the guesses.
func (h *Handler) withSuggestion(ctx context.Context, title, channel string, names []e.Name) []e.Name {
	if h.Namer == nil {
		return names
	}

	timeout := h.NameTimeout
	if timeout <= 0 {
		timeout = defaultNameTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	suggested, err := h.Namer.SuggestName(ctx, title, channel)
	if err != nil {
		h.Log.Warn("name suggestion failed", "title", title, "error", err)
		return names
	}
	if slices.Contains(names, suggested) {
		return names
	}

	return append([]e.Name{suggested}, names...)
}

func (h *Handler) renameThenDownload(ctx context.Context, chatID int64, a protocol.RenameThenDownload) {
	names, _ := session.Lookup[[]e.Name](h.Store, chatID, "rename", "names")
	if a.NameIndex < 0 || a.NameIndex >= len(names) {
		err := fmt.Errorf("%w: name index %d is out of range", protocol.ErrMalformed, a.NameIndex)
		h.Log.Warn("bad rename choice", "chat_id", chatID, "error", err)
		h.send(ctx, chatID, h.Catalog.Error(messages.ErrorCommon, err), nil)
		return
	}

	chosen := names[a.NameIndex]
	h.download(ctx, chatID, a.EditMessageID, a.Stream, &chosen)
}

// awaitingRename reports whether the user was asked to type the name.
func (h *Handler) awaitingRename(chatID int64) bool {
	if _, ok := h.Store.Get(chatID, "rename"); !ok {
		return false
	}
	if _, ok := h.Store.Get(chatID, "rename", "final", "title"); ok {
		return false
	}
	manual, _ := session.Lookup[bool](h.Store, chatID, "rename", "manual")
	return manual
}

func (h *Handler) manualRename(ctx context.Context, chatID int64, text string) {
	name, ok := parseName(text)
	if !ok {
		target, found := session.Lookup[int](h.Store, chatID, "rename", "edit_message_id")
		if !found {
			target = -1
		}
		h.show(ctx, chatID, target, h.Catalog.Text(messages.RenameError, nil), nil)
		return
	}

	cb, _ := session.Lookup[map[string]any](h.Store, chatID, "rename", "callback")
	target, ok := cb["edit_message_id"].(int)
	if !ok {
		target = -1
	}
	stream := protocol.Stream{}
	stream.Extractor, _ = cb["extractor"].(string)
	stream.MediaID, _ = cb["id"].(string)
	stream.FormatID, _ = cb["format_id"].(string)
	if bitrate, ok := cb["bitrate"].(float64); ok {
		stream.Bitrate = &bitrate
	}

	h.download(ctx, chatID, target, stream, &name)
}

// parseName splits "Author - Title" on the first dash.
func parseName(text string) (e.Name, bool) {
	author, title, found := strings.Cut(text, "-")
	if !found {
		return e.Name{}, false
	}
	name := e.Name{Author: strings.TrimSpace(author), Title: strings.TrimSpace(title)}
	if name.Author == "" || name.Title == "" {
		return e.Name{}, false
	}
	return name, true
}

// download queues s. The name comes from name when given, otherwise from the
// staged final name. The session is only touched once the job is queued.
func (h *Handler) download(ctx context.Context, chatID int64, target int, s protocol.Stream, name *e.Name) {
	log := h.Log.With("chat_id", chatID, "extractor", s.Extractor, "media_id", s.MediaID)

	var back e.Keyboard
	if target >= 0 {
		back = e.NewKeyboard(e.Button{
			Text: h.Catalog.Button(messages.ButtonBack, nil),
			Data: protocol.Encode(protocol.SelectFormat{EditMessageID: target, Extractor: s.Extractor, MediaID: s.MediaID}),
		})
	}

	if h.Queue.Full() {
		log.Warn("queue is full")
		h.show(ctx, chatID, target, h.Catalog.Text(messages.ErrorQueueFull, nil), back)
		return
	}

	job := e.DownloadJob{
		ID:            uuid.NewString(),
		ChatID:        chatID,
		EditMessageID: target,
		Extractor:     s.Extractor,
		MediaID:       s.MediaID,
		FormatID:      s.FormatID,
		IsVideo:       s.IsVideo,
		Bitrate:       s.Bitrate,
	}
	if name != nil {
		job.Author, job.Title = &name.Author, &name.Title
	} else {
		author, hasAuthor := session.Lookup[string](h.Store, chatID, "rename", "final", "author")
		title, hasTitle := session.Lookup[string](h.Store, chatID, "rename", "final", "title")
		if hasAuthor && hasTitle {
			job.Author, job.Title = &author, &title
		}
	}

	if !h.Queue.Enqueue(job) {
		log.Warn("queue is full")
		h.show(ctx, chatID, target, h.Catalog.Text(messages.ErrorQueueFull, nil), back)
		return
	}

	h.Store.Delete(chatID, "rename")

	log.Info("download queued", "job_id", job.ID, "format_id", s.FormatID, "video", s.IsVideo)
	h.show(ctx, chatID, target, h.Catalog.Text(messages.DownloadStarted, nil), nil)
}

// backToSearch returns a Back button when the search screen lives on target.
func (h *Handler) backToSearch(chatID int64, target int) e.Keyboard {
	stored, ok := session.Lookup[int](h.Store, chatID, "search_result", "edit_message_id")
	if !ok || stored != target {
		return nil
	}
	return e.NewKeyboard(e.Button{
		Text: h.Catalog.Button(messages.ButtonBack, nil),
		Data: protocol.Encode(protocol.Back{EditMessageID: target}),
	})
}
