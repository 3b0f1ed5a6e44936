package media

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	e "nuclight.org/media-tg-bot/pkg/entities"
)

// RawFormat is one stream as reported by the extractor.
type RawFormat struct {
	FormatID   string
	Filesize   int64
	AudioExt   string
	VideoExt   string
	Width      int
	Height     int
	Resolution string
	ABR        float64
	VBR        float64
	TBR        float64
}

const extractFromVideo = "extract from video"

type candidate struct {
	id         string
	resolution string
	bitrate    float64
	size       int64
}

// Classify picks at most one audio stream and one video stream per
// resolution out of formats.
//
// Formats larger than maxSize or without any usable extension are skipped.
// A format with a video extension is a video stream even if it also carries
// audio. The best audio stream is the one with the highest bitrate; without
// audio streams the median video stream stands in, since audio can be
// extracted from it. Video streams are ordered by bitrate, the first of each
// resolution wins, and its id is joined with the audio id so that silent
// containers still get sound.
func Classify(formats []RawFormat, extractor string, maxSize int64) (audio []e.Stream, video []e.Stream) {
	var audios, videos []candidate

	for _, f := range formats {
		if f.FormatID == "" || (maxSize > 0 && f.Filesize > maxSize) {
			continue
		}

		audioExt := normalizeExt(f.AudioExt)
		videoExt := normalizeExt(f.VideoExt)
		if audioExt == "" && videoExt == "" {
			continue
		}

		if videoExt != "" {
			resolution := resolutionOf(f)
			bitrate := firstPositive(f.VBR, f.TBR)
			if resolution == "" || bitrate <= 0 {
				continue
			}
			videos = append(videos, candidate{id: f.FormatID, resolution: resolution, bitrate: bitrate, size: f.Filesize})
			continue
		}

		bitrate := firstPositive(f.ABR, f.TBR)
		if bitrate <= 0 {
			continue
		}
		audios = append(audios, candidate{id: f.FormatID, bitrate: bitrate, size: f.Filesize})
	}

	byBitrateDesc := func(a, b candidate) int { return cmp.Compare(b.bitrate, a.bitrate) }
	slices.SortStableFunc(audios, byBitrateDesc)
	slices.SortStableFunc(videos, byBitrateDesc)

	switch {
	case len(audios) > 0:
		best := audios[0]
		audio = []e.Stream{{
			Extractor: extractor,
			ID:        best.id,
			Name:      bitrateString(best.bitrate),
			Bitrate:   best.bitrate,
			Size:      best.size,
		}}
	case len(videos) > 0:
		mid := videos[len(videos)/2]
		audio = []e.Stream{{
			Extractor: extractor,
			ID:        mid.id,
			Name:      extractFromVideo,
			Bitrate:   mid.bitrate,
			Size:      mid.size,
		}}
	}

	audioID := ""
	if len(audio) > 0 {
		audioID = audio[0].ID
	}

	seen := make(map[string]struct{})
	for _, v := range videos {
		if _, dup := seen[v.resolution]; dup {
			continue
		}
		seen[v.resolution] = struct{}{}

		id := v.id
		if audioID != "" && audioID != v.id {
			id += "+" + audioID
		}

		name := fmt.Sprintf("%s @ %s", v.resolution, bitrateString(v.bitrate))
		if v.size > 0 {
			name += " · " + humanize.IBytes(uint64(v.size))
		}

		video = append(video, e.Stream{
			Extractor:  extractor,
			ID:         id,
			Name:       name,
			Resolution: v.resolution,
			Bitrate:    v.bitrate,
			Size:       v.size,
		})
	}

	return audio, video
}

// resolutionOf prefers the explicit resolution string over width and height.
func resolutionOf(f RawFormat) string {
	res := strings.TrimSpace(f.Resolution)
	if strings.EqualFold(res, "audio only") {
		return ""
	}
	if res != "" {
		return res
	}
	if f.Width > 0 && f.Height > 0 {
		return fmt.Sprintf("%dx%d", f.Width, f.Height)
	}
	return ""
}

func normalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if strings.EqualFold(ext, "none") {
		return ""
	}
	return ext
}

func firstPositive(values ...float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

// bitrateString formats kbps as 123.4kbps or 1.2Mbps.
func bitrateString(kbps float64) string {
	if kbps < 1000 {
		return fmt.Sprintf("%.1fkbps", kbps)
	}
	return fmt.Sprintf("%.1fMbps", kbps/1000)
}
