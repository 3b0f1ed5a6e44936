// Package guess splits a raw media title into likely (author, title) pairs.
package guess

import (
	"regexp"
	"strings"

	e "nuclight.org/media-tg-bot/pkg/entities"
)

const Unknown = "Unknown"

var (
	splitRe  = regexp.MustCompile(`^(.+?)\s*[-—:,_]\s*(.+)`)
	spacesRe = regexp.MustCompile(` +`)

	delimiters = strings.NewReplacer("-", " ", "—", " ", ":", " ", "_", " ")
)

// Guess returns candidate names for title uploaded by channel (may be empty),
// the most likely first. The list always ends with (Unknown, title) and
// never holds duplicates.
func Guess(title, channel string) []e.Name {
	var names []e.Name
	add := func(author, track string) {
		n := e.Name{Author: author, Title: track}
		for _, existing := range names {
			if existing == n {
				return
			}
		}
		names = append(names, n)
	}

	channel = strings.TrimSuffix(channel, " - Topic")

	if channel != "" && strings.Contains(strings.ToLower(title), strings.ToLower(channel)) {
		channelRe := regexp.MustCompile("(?i)" + regexp.QuoteMeta(channel))
		track := strings.TrimSpace(channelRe.ReplaceAllString(title, ""))
		track = strings.TrimSpace(delimiters.Replace(track))
		track = strings.TrimSpace(spacesRe.ReplaceAllString(track, " "))
		if track != "" {
			add(channel, track)
		}
	}

	if len(names) == 0 {
		if m := splitRe.FindStringSubmatch(title); m != nil {
			author := strings.TrimSpace(m[1])
			track := strings.TrimSpace(m[2])
			if author != "" && track != "" {
				if words(track) > words(author) {
					add(author, track)
					add(track, author)
				} else {
					add(track, author)
					add(author, track)
				}
			}
		}
	}

	if channel != "" {
		add(channel, title)
	}

	add(Unknown, title)

	return names
}

func words(s string) int {
	return len(strings.Split(s, " "))
}
