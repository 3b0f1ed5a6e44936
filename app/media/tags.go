package media

import (
	"fmt"

	"github.com/bogem/id3v2/v2"
)

// writeTags sets the artist and title frames, keeping the rest of the tag.
func writeTags(path string, author string, title string) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("opening tag: %w", err)
	}
	defer tag.Close()

	tag.SetArtist(author)
	tag.SetTitle(title)

	if err := tag.Save(); err != nil {
		return fmt.Errorf("saving tag: %w", err)
	}
	return nil
}
