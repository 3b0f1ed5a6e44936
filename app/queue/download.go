package queue

import (
	"context"
	"fmt"
	"time"

	e "nuclight.org/media-tg-bot/pkg/entities"
	"nuclight.org/media-tg-bot/pkg/messages"
)

func (q *Queue) download(ctx context.Context, job e.DownloadJob) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	defer q.Extractor.Cleanup()

	req := e.DownloadRequest{
		Extractor:    job.Extractor,
		MediaID:      job.MediaID,
		FormatID:     job.FormatID,
		IsAudio:      !job.IsVideo,
		TargetFormat: q.cfg.AudioFormat,
		Bitrate:      job.Bitrate,
		Author:       job.Author,
		Title:        job.Title,
	}
	if job.IsVideo {
		req.TargetFormat = q.cfg.VideoFormat
	}

	rep := q.newReporter(job.ChatID, job.EditMessageID)
	started := q.now()

	path, err := q.Extractor.Download(ctx, req, func(p e.Progress) {
		// merged formats restart per-file timers, elapsed is counted for the whole job
		elapsed := q.now().Sub(started)
		p.Elapsed = &elapsed

		if q.cfg.DownloadTimeout > 0 && elapsed > q.cfg.DownloadTimeout {
			cancel(fmt.Errorf("%w (%s > %s)", ErrDownloadTimeout, elapsed.Round(time.Second), q.cfg.DownloadTimeout))
			return
		}
		rep.report(ctx, p, p.Finished)
	})
	if err != nil {
		if cause := context.Cause(ctx); cause != nil && ctx.Err() != nil {
			return cause
		}
		return fmt.Errorf("downloading: %w", err)
	}

	rep.report(ctx, e.Progress{Fraction: 1, Stage: q.Catalog.Text(messages.StageSending, nil)}, true)

	if err := q.Messenger.SendDocument(ctx, job.ChatID, path); err != nil {
		return fmt.Errorf("sending file: %w", err)
	}

	q.show(ctx, job.ChatID, job.EditMessageID, q.Catalog.Text(messages.DownloadFinished, nil), q.backToFormats(job))

	return nil
}
