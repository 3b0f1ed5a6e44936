package bot

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	e "nuclight.org/media-tg-bot/pkg/entities"
	"nuclight.org/media-tg-bot/pkg/logger"
	"nuclight.org/media-tg-bot/pkg/messages"
	"nuclight.org/media-tg-bot/pkg/protocol"
	"nuclight.org/media-tg-bot/pkg/session"
)

type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup e.Keyboard) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup e.Keyboard) error
	AnswerCallback(ctx context.Context, callbackID string) error
}

type JobQueue interface {
	Enqueue(job e.Job) bool
	Full() bool
}

type StreamLister interface {
	GetStreams(ctx context.Context, extractor, id string) (e.StreamSet, error)
}

type History interface {
	RecentDownloads(ctx context.Context, chatID int64, limit int) ([]e.JobRecord, error)
}

type NameSuggester interface {
	SuggestName(ctx context.Context, title, channel string) (e.Name, error)
}

const (
	defaultHistoryLimit = 10
	defaultNameTimeout  = 15 * time.Second
	minQueryLength      = 2
)

// Handler drives the search, format, rename and download conversation.
// Every method is safe to call concurrently for different chats.
type Handler struct {
	Log       logger.Logger
	Store     *session.Store
	Queue     JobQueue
	Extractor StreamLister
	Messenger Messenger
	Catalog   *messages.Catalog

	AudioFormat string
	VideoFormat string

	// optional
	History      History
	HistoryLimit int
	Namer        NameSuggester
	NameTimeout  time.Duration
}

func (h *Handler) HandleCallback(ctx context.Context, cb e.Callback) {
	log := h.Log.With("chat_id", cb.ChatID, "message_id", cb.MessageID)

	defer func() {
		if err := h.Messenger.AnswerCallback(ctx, cb.ID); err != nil {
			log.Warn("failed to answer callback", "error", err)
		}
	}()

	act, err := protocol.Decode(cb.Data, cb.MessageID)
	if err != nil {
		log.Warn("bad callback payload", "data", cb.Data, "error", err)
		if errors.Is(err, protocol.ErrStale) {
			h.send(ctx, cb.ChatID, h.Catalog.Text(messages.ErrorExpired, nil), nil)
		} else {
			h.send(ctx, cb.ChatID, h.Catalog.Error(messages.ErrorCommon, err), nil)
		}
		return
	}

	log.Info("callback", "action", act.Tag(), "user_id", cb.Sender.ID)

	if !protocol.KeepsRename(act) {
		h.Store.Delete(cb.ChatID, "rename")
	}

	switch a := act.(type) {
	case protocol.SelectFormat:
		h.selectFormat(ctx, cb.ChatID, a)
	case protocol.Rename:
		h.rename(ctx, cb.ChatID, a)
	case protocol.RenameThenDownload:
		h.renameThenDownload(ctx, cb.ChatID, a)
	case protocol.Download:
		h.download(ctx, cb.ChatID, a.EditMessageID, a.Stream, nil)
	case protocol.Back:
		h.back(ctx, cb.ChatID, a)
	default:
		log.Error("unhandled action", "action", act.Tag())
	}
}

// HandleText treats text as a manual rename while one is awaited and as a
// search query otherwise.
func (h *Handler) HandleText(ctx context.Context, chatID int64, user e.User, text string) {
	request, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	request = strings.TrimSpace(request)

	if utf8.RuneCountInString(request) < minQueryLength {
		h.Log.Warn("empty message", "chat_id", chatID, "user", user.Name)
		h.send(ctx, chatID, h.Catalog.Text(messages.EmptyMessage, nil), nil)
		return
	}

	if h.awaitingRename(chatID) {
		h.manualRename(ctx, chatID, request)
		return
	}

	h.search(ctx, chatID, user, request)
}

func (h *Handler) HandleCommand(ctx context.Context, chatID int64, user e.User, command string) {
	h.Log.Info("command", "chat_id", chatID, "user", user.Name, "command", command)

	switch command {
	case "start":
		h.send(ctx, chatID, h.Catalog.Text(messages.Start, nil), nil)
		h.send(ctx, chatID, h.Catalog.Text(messages.Help, nil), nil)
	case "history":
		h.history(ctx, chatID)
	default:
		h.send(ctx, chatID, h.Catalog.Text(messages.Help, nil), nil)
	}
}

func (h *Handler) search(ctx context.Context, chatID int64, user e.User, query string) {
	log := h.Log.With("chat_id", chatID)

	if h.Queue.Full() {
		log.Warn("queue is full")
		h.send(ctx, chatID, h.Catalog.Text(messages.ErrorQueueFull, nil), nil)
		return
	}

	msgID, err := h.Messenger.SendMessage(ctx, chatID, h.Catalog.Text(messages.Searching, struct{ Query string }{Query: query}), nil)
	if err != nil || msgID < 0 {
		log.Warn("failed to notify", "error", err)
		h.send(ctx, chatID, h.Catalog.Text(messages.ErrorSend, nil), nil)
		return
	}

	job := e.SearchJob{
		ID:            uuid.NewString(),
		ChatID:        chatID,
		EditMessageID: msgID,
		Query:         query,
	}
	if !h.Queue.Enqueue(job) {
		log.Warn("queue is full")
		h.edit(ctx, chatID, msgID, h.Catalog.Text(messages.ErrorQueueFull, nil), nil)
		return
	}

	log.Info("search queued", "job_id", job.ID, "user", user.Name, "query", query)
}

func (h *Handler) back(ctx context.Context, chatID int64, a protocol.Back) {
	text, _ := session.Lookup[string](h.Store, chatID, "search_result", "text")
	markup, _ := session.Lookup[e.Keyboard](h.Store, chatID, "search_result", "markup")
	target, ok := session.Lookup[int](h.Store, chatID, "search_result", "edit_message_id")

	if text == "" || !ok || target < 0 || target != a.EditMessageID {
		h.send(ctx, chatID, h.Catalog.Text(messages.ErrorExpired, nil), nil)
		return
	}

	h.edit(ctx, chatID, target, text, markup)
}

func (h *Handler) history(ctx context.Context, chatID int64) {
	if h.History == nil {
		h.send(ctx, chatID, h.Catalog.Text(messages.HistoryEmpty, nil), nil)
		return
	}

	limit := h.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	records, err := h.History.RecentDownloads(ctx, chatID, limit)
	if err != nil {
		h.Log.Error("reading history", "chat_id", chatID, "error", err)
		h.send(ctx, chatID, h.Catalog.Error(messages.ErrorCommon, err), nil)
		return
	}
	if len(records) == 0 {
		h.send(ctx, chatID, h.Catalog.Text(messages.HistoryEmpty, nil), nil)
		return
	}

	h.send(ctx, chatID, renderHistory(h.Catalog, records, time.Now()), nil)
}

// show edits target when there is one and sends a new message otherwise.
func (h *Handler) show(ctx context.Context, chatID int64, target int, text string, markup e.Keyboard) {
	if target >= 0 {
		h.edit(ctx, chatID, target, text, markup)
		return
	}
	h.send(ctx, chatID, text, markup)
}

func (h *Handler) send(ctx context.Context, chatID int64, text string, markup e.Keyboard) {
	if _, err := h.Messenger.SendMessage(ctx, chatID, text, markup); err != nil {
		h.Log.Warn("failed to notify", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) edit(ctx context.Context, chatID int64, messageID int, text string, markup e.Keyboard) {
	if err := h.Messenger.EditMessage(ctx, chatID, messageID, text, markup); err != nil {
		h.Log.Warn("failed to notify", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}
