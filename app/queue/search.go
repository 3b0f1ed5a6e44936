package queue

import (
	"context"
	"fmt"
	"strings"

	e "nuclight.org/media-tg-bot/pkg/entities"
	"nuclight.org/media-tg-bot/pkg/messages"
	"nuclight.org/media-tg-bot/pkg/protocol"
	"nuclight.org/media-tg-bot/pkg/session"
)

func (q *Queue) search(ctx context.Context, job e.SearchJob) error {
	results, err := q.Extractor.Search(ctx, job.Query)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if len(results) == 0 {
		q.show(ctx, job.ChatID, job.EditMessageID, q.Catalog.Text(messages.SearchNoResults, nil), nil)
		return nil
	}

	var (
		text          strings.Builder
		buttons       []e.Button
		lastExtractor string
	)
	for i, r := range results {
		if i == 0 || r.Extractor != lastExtractor {
			text.WriteString(q.Catalog.Text(messages.SearchHeader, struct{ Name string }{Name: r.ExtractorFullName}))
			lastExtractor = r.Extractor
		}

		text.WriteString(q.Catalog.Text(messages.SearchResult, struct {
			Position int
			Link     string
			Title    string
			Channel  string
			Metadata string
		}{
			Position: i + 1,
			Link:     r.Link,
			Title:    r.Title,
			Channel:  r.Channel,
			Metadata: strings.Join(r.Metadata, " | "),
		}))

		buttons = append(buttons, e.Button{
			Text: q.Catalog.Button(messages.ButtonSearchResult, struct {
				Icon     string
				Position int
				Title    string
			}{
				Icon:     r.ExtractorIcon,
				Position: i + 1,
				Title:    r.Title,
			}),
			Data: protocol.Encode(protocol.SelectFormat{
				EditMessageID: job.EditMessageID,
				Extractor:     r.Extractor,
				MediaID:       r.ID,
			}),
		})
	}
	text.WriteString(q.Catalog.Text(messages.SearchResultSuffix, nil))

	screen := e.Screen{
		Text:          strings.TrimSpace(text.String()),
		Markup:        e.NewKeyboard(buttons...),
		EditMessageID: job.EditMessageID,
	}

	q.Sessions.SetAll(job.ChatID,
		session.At(screen.Text, "search_result", "text"),
		session.At(screen.Markup, "search_result", "markup"),
		session.At(screen.EditMessageID, "search_result", "edit_message_id"),
	)

	q.show(ctx, job.ChatID, job.EditMessageID, screen.Text, screen.Markup)

	return nil
}
