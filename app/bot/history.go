package bot

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	e "nuclight.org/media-tg-bot/pkg/entities"
	"nuclight.org/media-tg-bot/pkg/messages"
)

type historyEntry struct {
	Position  int
	Name      string
	Extractor string
	MediaID   string
	Status    string
	When      string
}

func renderHistory(c *messages.Catalog, records []e.JobRecord, now time.Time) string {
	var b strings.Builder
	b.WriteString(c.Text(messages.HistoryHeader, nil))

	for i, r := range records {
		entry := historyEntry{
			Position:  i + 1,
			Extractor: r.Extractor,
			MediaID:   r.MediaID,
			Status:    string(r.Status),
			When:      humanize.RelTime(r.CreatedAt, now, "ago", "from now"),
		}
		if r.Author != nil && r.Title != nil {
			entry.Name = *r.Author + " - " + *r.Title
		}
		b.WriteString(c.Text(messages.HistoryEntry, entry))
	}

	return strings.TrimSpace(b.String())
}
