package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// rawInfo is the subset of the yt-dlp info dict the bot reads.
type rawInfo struct {
	ID           string  `json:"id"`
	Extractor    string  `json:"extractor"`
	ExtractorKey string  `json:"extractor_key"`
	Title        string  `json:"title"`
	FullTitle    string  `json:"fulltitle"`
	WebpageURL   string  `json:"webpage_url"`
	Channel      string  `json:"channel"`
	Uploader     string  `json:"uploader"`
	Artist       string  `json:"artist"`
	Track        string  `json:"track"`
	IsLive       bool    `json:"is_live"`
	Duration     float64 `json:"duration"`
	ViewCount    float64 `json:"view_count"`
	LikeCount    float64 `json:"like_count"`
	UploadDate   string  `json:"upload_date"`

	Formats []rawFormat `json:"formats"`
}

type rawFormat struct {
	FormatID       string  `json:"format_id"`
	Filesize       float64 `json:"filesize"`
	FilesizeApprox float64 `json:"filesize_approx"`
	AudioExt       string  `json:"audio_ext"`
	VideoExt       string  `json:"video_ext"`
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	Resolution     string  `json:"resolution"`
	ABR            float64 `json:"abr"`
	VBR            float64 `json:"vbr"`
	TBR            float64 `json:"tbr"`
}

// parseInfos decodes the concatenated JSON documents yt-dlp prints with -j.
func parseInfos(r io.Reader) ([]*rawInfo, error) {
	dec := json.NewDecoder(r)

	var infos []*rawInfo
	for {
		info := &rawInfo{}
		err := dec.Decode(info)
		if errors.Is(err, io.EOF) {
			return infos, nil
		}
		if err != nil {
			return infos, fmt.Errorf("decoding info #%d: %w", len(infos)+1, err)
		}
		infos = append(infos, info)
	}
}

func (i *rawInfo) extractorName() string {
	if i.Extractor != "" {
		return i.Extractor
	}
	return strings.ToLower(i.ExtractorKey)
}

func (i *rawInfo) displayTitle() string {
	switch {
	case i.FullTitle != "":
		return i.FullTitle
	case i.Title != "":
		return i.Title
	}
	return "Untitled"
}

func (i *rawInfo) displayChannel() string {
	switch {
	case i.Channel != "":
		return i.Channel
	case i.Uploader != "":
		return i.Uploader
	}
	return "Unknown"
}

func (i *rawInfo) rawFormats() []RawFormat {
	out := make([]RawFormat, 0, len(i.Formats))
	for _, f := range i.Formats {
		size := f.Filesize
		if size <= 0 {
			size = f.FilesizeApprox
		}
		out = append(out, RawFormat{
			FormatID:   f.FormatID,
			Filesize:   int64(size),
			AudioExt:   f.AudioExt,
			VideoExt:   f.VideoExt,
			Width:      int(f.Width),
			Height:     int(f.Height),
			Resolution: f.Resolution,
			ABR:        f.ABR,
			VBR:        f.VBR,
			TBR:        f.TBR,
		})
	}
	return out
}

// metadata returns short human readable facts about the media.
func (i *rawInfo) metadata(now time.Time) []string {
	var out []string
	if i.Duration > 0 {
		out = append(out, formatClock(time.Duration(i.Duration*float64(time.Second))))
	}
	if i.ViewCount > 0 {
		out = append(out, humanize.Comma(int64(i.ViewCount))+" views")
	}
	if i.LikeCount > 0 {
		out = append(out, humanize.Comma(int64(i.LikeCount))+" likes")
	}
	if uploaded, err := time.Parse("20060102", i.UploadDate); err == nil {
		out = append(out, humanize.RelTime(uploaded, now, "ago", "from now"))
	}
	return out
}

func formatClock(d time.Duration) string {
	total := int(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, total/60%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
