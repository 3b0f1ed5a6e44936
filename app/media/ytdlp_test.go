package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lrstanley/go-ytdlp"
	e "nuclight.org/media-tg-bot/pkg/entities"
	"nuclight.org/media-tg-bot/pkg/logger"
)

const sampleInfos = `{"id":"abc","extractor":"youtube","title":"Artist - Song","fulltitle":"Artist - Song (Official)","webpage_url":"https://www.youtube.com/watch?v=abc","channel":"Artist","duration":215,"view_count":1234567,"upload_date":"20240102","formats":[{"format_id":"140","audio_ext":"m4a","video_ext":"none","abr":129.5}]}
{"id":"live","extractor":"youtube","title":"Stream","webpage_url":"https://www.youtube.com/watch?v=live","channel":"Someone","is_live":true,"formats":[{"format_id":"1"}]}
{"id":"noformats","extractor":"youtube","title":"Empty","webpage_url":"https://www.youtube.com/watch?v=noformats","uploader":"Uploader"}
`

func newTestYTDLP(t *testing.T, extract func(ctx context.Context, target string, args string) ([]*rawInfo, error)) *YTDLP {
	t.Helper()

	y, err := NewYTDLP(logger.Discard(), Config{
		Extractors: DefaultExtractors(),
		TempDir:    t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewYTDLP: %v", err)
	}
	y.extract = extract
	y.now = func() time.Time { return time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC) }
	return y
}

func TestParseInfos(t *testing.T) {
	infos, err := parseInfos(strings.NewReader(sampleInfos))
	if err != nil {
		t.Fatalf("parseInfos: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("len(infos) = %d, want 3", len(infos))
	}
	if infos[0].displayTitle() != "Artist - Song (Official)" {
		t.Errorf("title = %q", infos[0].displayTitle())
	}
	if infos[2].displayChannel() != "Uploader" {
		t.Errorf("channel = %q, want uploader fallback", infos[2].displayChannel())
	}

	_, err = parseInfos(strings.NewReader(`{"id":"x"} {broken`))
	if err == nil {
		t.Error("expected error for broken json")
	}
}

func TestSearchFiltersAndCaches(t *testing.T) {
	var targets []string
	y := newTestYTDLP(t, func(_ context.Context, target string, _ string) ([]*rawInfo, error) {
		targets = append(targets, target)
		if strings.HasPrefix(target, "ytsearch") {
			return parseInfos(strings.NewReader(sampleInfos))
		}
		return nil, errors.New("extractor is down")
	})

	results, err := y.Search(context.Background(), "artist song")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	wantTargets := []string{"ytsearch5:artist song", "scsearch3:artist song"}
	if strings.Join(targets, ",") != strings.Join(wantTargets, ",") {
		t.Errorf("targets = %v, want %v", targets, wantTargets)
	}

	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	r := results[0]
	if r.ID != "abc" || r.ExtractorFullName != "YouTube" || r.ExtractorIcon != "🟥" {
		t.Errorf("result = %+v", r)
	}
	wantMeta := []string{"3:35", "1,234,567 views", "1 year ago"}
	if strings.Join(r.Metadata, "|") != strings.Join(wantMeta, "|") {
		t.Errorf("metadata = %v, want %v", r.Metadata, wantMeta)
	}

	// cached now, no extraction needed
	targets = nil
	set, err := y.GetStreams(context.Background(), "youtube", "abc")
	if err != nil {
		t.Fatalf("GetStreams: %v", err)
	}
	if len(targets) != 0 {
		t.Errorf("GetStreams extracted %v, want cache hit", targets)
	}
	if len(set.Audio) != 1 || set.Audio[0].ID != "140" {
		t.Errorf("audio = %v", set.Audio)
	}
	if set.FromMetadata {
		t.Error("FromMetadata = true, want false")
	}
}

func TestSearchLink(t *testing.T) {
	y := newTestYTDLP(t, func(_ context.Context, target string, _ string) ([]*rawInfo, error) {
		if target != "https://example.com/v/1" {
			t.Errorf("target = %q", target)
		}
		return nil, errors.New("unsupported url")
	})

	if _, err := y.Search(context.Background(), "https://example.com/v/1"); err == nil {
		t.Error("expected error for failed link extraction")
	}
}

func TestGetStreamsExpired(t *testing.T) {
	y := newTestYTDLP(t, func(context.Context, string, string) ([]*rawInfo, error) {
		t.Error("extract must not be called")
		return nil, nil
	})

	for _, extractor := range []string{"soundcloud", "Bandcamp", ""} {
		if _, err := y.GetStreams(context.Background(), extractor, "123"); !errors.Is(err, ErrExpired) {
			t.Errorf("GetStreams(%q) error = %v, want ErrExpired", extractor, err)
		}
	}
}

func TestGetStreamsFromMetadata(t *testing.T) {
	y := newTestYTDLP(t, func(_ context.Context, target string, _ string) ([]*rawInfo, error) {
		if target != "https://www.youtube.com/watch?v=xyz" {
			t.Errorf("target = %q", target)
		}
		return []*rawInfo{{
			ID:         "xyz",
			Extractor:  "youtube",
			Title:      "Some upload",
			Channel:    "Some Channel - Topic",
			Artist:     "Real Artist",
			Track:      "Real Track",
			WebpageURL: "https://www.youtube.com/watch?v=xyz",
		}}, nil
	})

	set, err := y.GetStreams(context.Background(), "youtube", "xyz")
	if err != nil {
		t.Fatalf("GetStreams: %v", err)
	}
	if !set.FromMetadata || set.Channel != "Real Artist" || set.Title != "Real Track" {
		t.Errorf("set = %+v, want name from metadata", set)
	}
}

func TestFixID(t *testing.T) {
	y := newTestYTDLP(t, nil)

	tests := []struct {
		extractor, id, want string
	}{
		{extractor: "youtube", id: "abc", want: "https://www.youtube.com/watch?v=abc"},
		{extractor: "vk", id: "-1_2", want: "https://vk.com/vkvideo?z=video-1_2"},
		{extractor: "soundcloud", id: "1", want: ""},
		{extractor: "generic", id: "https://example.com/a", want: "https://example.com/a"},
		{extractor: "", id: "x", want: ""},
	}

	for _, tt := range tests {
		if got := y.fixID(tt.extractor, tt.id); got != tt.want {
			t.Errorf("fixID(%q, %q) = %q, want %q", tt.extractor, tt.id, got, tt.want)
		}
	}

	y.cache.Add(cacheKey("soundcloud", "1"), &rawInfo{WebpageURL: "https://soundcloud.com/a/b"})
	if got := y.fixID("soundcloud", "1"); got != "https://soundcloud.com/a/b" {
		t.Errorf("fixID from cache = %q", got)
	}
}

func TestFindOutput(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"song.webm.part", "song.jpg", "song.mp3", "song.info.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	got, err := findOutput(dir, "mp3")
	if err != nil {
		t.Fatalf("findOutput: %v", err)
	}
	if filepath.Base(got) != "song.mp3" {
		t.Errorf("findOutput = %q, want song.mp3", got)
	}

	if _, err := findOutput(t.TempDir(), "mp3"); err == nil {
		t.Error("expected error for empty dir")
	}
}

func TestCleanupRemovesTempDirs(t *testing.T) {
	y := newTestYTDLP(t, nil)

	dir, err := os.MkdirTemp(y.cfg.TempDir, "media-")
	if err != nil {
		t.Fatal(err)
	}
	y.tempDirs = append(y.tempDirs, dir)

	y.Cleanup()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("temp dir still exists: %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "AC/DC - Back In Black", want: "AC_DC - Back In Black"},
		{in: "What? - Why:", want: "What_ - Why_"},
		{in: "  ", want: "download"},
	}

	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProgressTracker(t *testing.T) {
	var tr progressTracker

	p := tr.convert(ytdlp.ProgressUpdate{TotalBytes: 200, DownloadedBytes: 50})
	if p.Fraction != 0.25 {
		t.Errorf("fraction = %v, want 0.25", p.Fraction)
	}

	p = tr.convert(ytdlp.ProgressUpdate{})
	if p.Fraction != 0.25 {
		t.Errorf("fraction without sizes = %v, want last known 0.25", p.Fraction)
	}
	if p.Elapsed != nil || p.Speed != nil {
		t.Errorf("elapsed/speed set without start time: %+v", p)
	}
}

func TestProgressTrackerElapsedSpansFiles(t *testing.T) {
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	now := start
	tr := progressTracker{started: start, now: func() time.Time { return now }}

	now = start.Add(40 * time.Second)
	p := tr.convert(ytdlp.ProgressUpdate{Filename: "video.f137.mp4", Started: start, TotalBytes: 100, DownloadedBytes: 100, Status: "finished"})
	if p.Elapsed == nil || *p.Elapsed != 40*time.Second || !p.Finished {
		t.Fatalf("first file progress = %+v", p)
	}

	now = start.Add(90 * time.Second)
	p = tr.convert(ytdlp.ProgressUpdate{Filename: "video.f140.m4a", Started: start.Add(80 * time.Second), TotalBytes: 100, DownloadedBytes: 50})
	if p.Elapsed == nil || *p.Elapsed != 90*time.Second {
		t.Errorf("elapsed = %v, want 1m30s since the job started", p.Elapsed)
	}
	if p.Speed == nil || *p.Speed != 5 {
		t.Errorf("speed = %v, want 5 B/s for the second file", p.Speed)
	}
}

func TestDownloadCommandMetadata(t *testing.T) {
	y := newTestYTDLP(t, nil)
	author, title := "Guns N' Roses", "Don't Cry"

	tests := []struct {
		name    string
		req     e.DownloadRequest
		ppa     string
		enabled bool
	}{
		{
			name:    "opus with name",
			req:     e.DownloadRequest{FormatID: "251", IsAudio: true, TargetFormat: "opus", Author: &author, Title: &title},
			ppa:     `Metadata+ffmpeg_o:-metadata 'artist=Guns N'"'"' Roses' -metadata 'title=Don'"'"'t Cry'`,
			enabled: true,
		},
		{
			name:    "mp3 is tagged after download",
			req:     e.DownloadRequest{FormatID: "251", IsAudio: true, TargetFormat: "mp3", Author: &author, Title: &title},
			enabled: true,
		},
		{
			name:    "audio without name",
			req:     e.DownloadRequest{FormatID: "251", IsAudio: true, TargetFormat: "m4a"},
			enabled: true,
		},
		{
			name: "video",
			req:  e.DownloadRequest{FormatID: "137+140", TargetFormat: "mp4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pp := y.downloadCommand(t.TempDir(), tt.req).GetFlagConfig().PostProcessing

			ppa := ""
			if pp.PostProcessorArgs != nil {
				ppa = *pp.PostProcessorArgs
			}
			if ppa != tt.ppa {
				t.Errorf("postprocessor args = %q, want %q", ppa, tt.ppa)
			}

			enabled := pp.EmbedMetadata != nil && *pp.EmbedMetadata
			if enabled != tt.enabled {
				t.Errorf("embed metadata = %v, want %v", enabled, tt.enabled)
			}
		})
	}
}
