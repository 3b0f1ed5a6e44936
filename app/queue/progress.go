package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	e "nuclight.org/media-tg-bot/pkg/entities"
	"nuclight.org/media-tg-bot/pkg/messages"
)

const (
	unknownDuration = "-:--:--"
	unknownSpeed    = "-- -/-"
)

// reporter edits one message with download progress, at most once per
// ProgressInterval unless forced.
type reporter struct {
	q         *Queue
	chatID    int64
	messageID int

	sent     bool
	lastSent time.Time
	lastText string
}

func (q *Queue) newReporter(chatID int64, messageID int) *reporter {
	return &reporter{q: q, chatID: chatID, messageID: messageID}
}

func (r *reporter) report(ctx context.Context, p e.Progress, force bool) {
	if r.messageID < 0 {
		return
	}

	now := r.q.now()
	if !force && r.sent && now.Sub(r.lastSent) < r.q.cfg.ProgressInterval {
		return
	}
	r.sent, r.lastSent = true, now

	text := r.q.progressText(p)
	if text == r.lastText {
		return
	}

	if err := r.q.Messenger.EditMessage(ctx, r.chatID, r.messageID, text, nil); err != nil {
		r.q.Log.Warn("failed to edit progress", "chat_id", r.chatID, "message_id", r.messageID, "error", err)
		return
	}
	r.lastText = text
}

func (q *Queue) progressText(p e.Progress) string {
	fraction := min(max(p.Fraction, 0), 1)

	speed := unknownSpeed
	if p.Speed != nil {
		speed = formatSpeed(*p.Speed)
	}

	return q.Catalog.Text(messages.DownloadProgress, struct {
		Bar     string
		Stage   string
		Percent float64
		Speed   string
		Elapsed string
		ETA     string
	}{
		Bar:     q.progressBar(fraction),
		Stage:   p.Stage,
		Percent: fraction * 100,
		Speed:   speed,
		Elapsed: formatDuration(p.Elapsed),
		ETA:     formatDuration(p.ETA),
	})
}

func (q *Queue) progressBar(fraction float64) string {
	width := q.cfg.ProgressBarWidth
	filled := barUnits(fraction, width)

	filledUnit := q.Catalog.Text(messages.ProgressFilled, nil)
	emptyUnit := q.Catalog.Text(messages.ProgressEmpty, nil)

	return strings.Repeat(filledUnit, filled) + strings.Repeat(emptyUnit, width-filled)
}

// barUnits is floor(fraction*width), at least one unit once anything is done.
func barUnits(fraction float64, width int) int {
	n := int(fraction * float64(width))
	if fraction > 0 && n < 1 {
		n = 1
	}
	return min(max(n, 0), width)
}

func formatSpeed(bps float64) string {
	switch {
	case bps > 1024*1024:
		return fmt.Sprintf("%.2f MiB/s", bps/1024/1024)
	case bps > 1024:
		return fmt.Sprintf("%.2f KiB/s", bps/1024)
	default:
		return fmt.Sprintf("%.0f B/s", bps)
	}
}

func formatDuration(d *time.Duration) string {
	if d == nil || *d < 0 {
		return unknownDuration
	}
	total := int(*d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, total/60%60, total%60)
}
