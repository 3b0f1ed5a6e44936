package ai

import (
	"context"
	"fmt"
	"strings"

	e "nuclight.org/media-tg-bot/pkg/entities"
)

const namerPrompt = `You receive the title of an online video or audio track and the name of the channel that uploaded it.
Answer with the performing artist and the clean track title.
Drop decorations such as "(Official Video)", "[HD]", "lyrics" or emojis, keep remix and version tags.
If the artist can not be determined, answer with an empty artist.`

type Completer interface {
	GetJSONCompletion(ctx context.Context, system, user string, rf ResponseFormat, result any) (*Usage, error)
}

// Namer asks a language model for the artist and track of a raw title.
type Namer struct {
	AI Completer
}

func (n *Namer) SuggestName(ctx context.Context, title, channel string) (e.Name, error) {
	user := fmt.Sprintf("Title: %s\nChannel: %s", title, channel)

	var answer TrackName
	if _, err := n.AI.GetJSONCompletion(ctx, namerPrompt, user, TrackNameFormat, &answer); err != nil {
		return e.Name{}, fmt.Errorf("getting completion: %w", err)
	}

	name := e.Name{
		Author: strings.TrimSpace(answer.Artist),
		Title:  strings.TrimSpace(answer.Track),
	}
	if name.Author == "" || name.Title == "" {
		return e.Name{}, fmt.Errorf("incomplete answer: %+v", answer)
	}

	return name, nil
}
