package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	e "nuclight.org/media-tg-bot/pkg/entities"
	"nuclight.org/media-tg-bot/pkg/logger"
	"nuclight.org/media-tg-bot/pkg/messages"
	"nuclight.org/media-tg-bot/pkg/protocol"
	"nuclight.org/media-tg-bot/pkg/session"
)

var ErrDownloadTimeout = errors.New("download timed out")

type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup e.Keyboard) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup e.Keyboard) error
	SendDocument(ctx context.Context, chatID int64, path string) error
}

type Extractor interface {
	Search(ctx context.Context, query string) ([]e.SearchResult, error)
	Download(ctx context.Context, req e.DownloadRequest, onProgress func(e.Progress)) (string, error)
	Cleanup()
}

type SessionStore interface {
	SetAll(chatID int64, entries ...session.Entry)
}

type Journal interface {
	SaveJob(ctx context.Context, rec e.JobRecord) error
	FinishJob(ctx context.Context, id string, status e.JobStatus, errText string) error
}

type Config struct {
	Capacity         int
	ProgressInterval time.Duration
	ProgressBarWidth int
	DownloadTimeout  time.Duration

	AudioFormat string
	VideoFormat string
}

type Deps struct {
	Log       logger.Logger
	Messenger Messenger
	Extractor Extractor
	Sessions  SessionStore
	Catalog   *messages.Catalog

	// optional
	Journal Journal
}

// Queue runs search and download jobs one at a time in a single worker.
type Queue struct {
	cfg Config
	Deps

	jobs chan e.Job
	done chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool

	now func() time.Time
}

func New(cfg Config, deps Deps) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1
	}
	if cfg.ProgressBarWidth <= 0 {
		cfg.ProgressBarWidth = 10
	}

	return &Queue{
		cfg:  cfg,
		Deps: deps,
		jobs: make(chan e.Job, cfg.Capacity),
		done: make(chan struct{}),
		now:  time.Now,
	}
}

// Enqueue adds job without blocking. It reports false when the queue is
// full or stopped.
func (q *Queue) Enqueue(job e.Job) bool {
	if job == nil {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return false
	}

	select {
	case q.jobs <- job:
		q.Log.Debug("job enqueued", "job_id", job.JobID(), "kind", job.Kind(), "chat_id", job.Chat(), "pending", len(q.jobs))
		return true
	default:
		return false
	}
}

func (q *Queue) Full() bool {
	return len(q.jobs) >= cap(q.jobs)
}

func (q *Queue) Len() int {
	return len(q.jobs)
}

// Start launches the worker. Jobs run with the values of ctx but are not
// cancelled with it; the worker exits only through Stop.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(q.done)
		q.loop(ctx)
	}()
}

// Stop rejects new jobs, lets the worker finish the running job and
// everything already queued, and waits for it to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		<-q.doneIfStarted()
		return
	}
	q.stopped = true
	started := q.started
	q.mu.Unlock()

	if !started {
		return
	}

	// nil job is the sentinel
	select {
	case q.jobs <- nil:
	case <-q.done:
	}
	<-q.done
}

func (q *Queue) doneIfStarted() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.started {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return q.done
}

func (q *Queue) loop(ctx context.Context) {
	q.Log.Info("queue worker started", "capacity", cap(q.jobs))
	defer q.Log.Info("queue worker stopped")

	for job := range q.jobs {
		if job == nil {
			return
		}
		q.process(ctx, job)
	}
}

func (q *Queue) process(ctx context.Context, job e.Job) {
	log := q.Log.With("job_id", job.JobID(), "kind", job.Kind(), "chat_id", job.Chat())
	log.Info("job started")

	q.saveJob(ctx, job)

	err := q.runSafe(ctx, job)
	if err == nil {
		log.Info("job done")
		q.finishJob(ctx, job, e.JobStatusDone, "")
		return
	}

	log.Error("job failed", "error", err)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("job_kind", string(job.Kind()))
		scope.SetTag("job_id", job.JobID())
		sentry.CaptureException(err)
	})

	q.finishJob(ctx, job, e.JobStatusFailed, err.Error())
	q.reportFailure(ctx, job, err)
}

func (q *Queue) runSafe(ctx context.Context, job e.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	switch j := job.(type) {
	case e.SearchJob:
		return q.search(ctx, j)
	case e.DownloadJob:
		return q.download(ctx, j)
	default:
		return fmt.Errorf("unknown job type %T", job)
	}
}

func (q *Queue) reportFailure(ctx context.Context, job e.Job, err error) {
	text, markup := q.Catalog.Error(messages.SearchError, err), e.Keyboard(nil)
	if j, ok := job.(e.DownloadJob); ok {
		text, markup = q.Catalog.Error(messages.DownloadError, err), q.backToFormats(j)
	}
	q.show(ctx, job.Chat(), job.Target(), text, markup)
}

// show edits message target or sends a new message when there is none.
func (q *Queue) show(ctx context.Context, chatID int64, target int, text string, markup e.Keyboard) {
	var err error
	if target >= 0 {
		err = q.Messenger.EditMessage(ctx, chatID, target, text, markup)
	} else {
		_, err = q.Messenger.SendMessage(ctx, chatID, text, markup)
	}
	if err != nil {
		q.Log.Warn("failed to notify", "chat_id", chatID, "message_id", target, "error", err)
	}
}

func (q *Queue) backToFormats(j e.DownloadJob) e.Keyboard {
	return e.NewKeyboard(e.Button{
		Text: q.Catalog.Button(messages.ButtonBack, nil),
		Data: protocol.Encode(protocol.SelectFormat{
			EditMessageID: j.EditMessageID,
			Extractor:     j.Extractor,
			MediaID:       j.MediaID,
		}),
	})
}

func (q *Queue) saveJob(ctx context.Context, job e.Job) {
	if q.Journal == nil {
		return
	}

	rec := e.JobRecord{
		ID:        job.JobID(),
		Kind:      job.Kind(),
		ChatID:    job.Chat(),
		Status:    e.JobStatusRunning,
		CreatedAt: q.now(),
	}
	switch j := job.(type) {
	case e.SearchJob:
		rec.Query = j.Query
	case e.DownloadJob:
		rec.Extractor = j.Extractor
		rec.MediaID = j.MediaID
		rec.FormatID = j.FormatID
		rec.Author = j.Author
		rec.Title = j.Title
	}

	if err := q.Journal.SaveJob(ctx, rec); err != nil {
		q.Log.Warn("failed to save job", "job_id", rec.ID, "error", err)
	}
}

func (q *Queue) finishJob(ctx context.Context, job e.Job, status e.JobStatus, errText string) {
	if q.Journal == nil {
		return
	}
	if err := q.Journal.FinishJob(ctx, job.JobID(), status, errText); err != nil {
		q.Log.Warn("failed to finish job", "job_id", job.JobID(), "error", err)
	}
}
