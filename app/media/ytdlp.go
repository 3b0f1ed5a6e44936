package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lrstanley/go-ytdlp"
	e "nuclight.org/media-tg-bot/pkg/entities"
	"nuclight.org/media-tg-bot/pkg/logger"
)

// ErrExpired is returned when a media id can no longer be resolved.
var ErrExpired = e.ErrExpired

const infoCacheSize = 100

type Config struct {
	Extractors    []ExtractorConfig
	MaxFileSize   int64
	TempDir       string
	ProgressEvery time.Duration
}

// YTDLP searches and downloads media through the yt-dlp binary.
type YTDLP struct {
	log logger.Logger
	cfg Config

	cache *lru.Cache[string, *rawInfo]

	mu       sync.Mutex
	tempDirs []string

	// extract runs yt-dlp in info mode for target
	extract func(ctx context.Context, target string, extractorArgs string) ([]*rawInfo, error)
	now     func() time.Time
}

func NewYTDLP(log logger.Logger, cfg Config) (*YTDLP, error) {
	cache, err := lru.New[string, *rawInfo](infoCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating info cache: %w", err)
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 500 * time.Millisecond
	}

	y := &YTDLP{
		log:   log,
		cfg:   cfg,
		cache: cache,
		now:   time.Now,
	}
	y.extract = y.runExtract

	return y, nil
}

// Install downloads the yt-dlp binary if it is not available yet.
func Install(ctx context.Context) error {
	if _, err := ytdlp.Install(ctx, nil); err != nil {
		return fmt.Errorf("installing yt-dlp: %w", err)
	}
	return nil
}

// Search looks query up with every enabled extractor that supports searching.
// Links are resolved directly.
func (y *YTDLP) Search(ctx context.Context, query string) ([]e.SearchResult, error) {
	var infos []*rawInfo

	if isLink(query) {
		found, err := y.extract(ctx, query, "")
		if err != nil && len(found) == 0 {
			return nil, fmt.Errorf("extracting %s: %w", query, err)
		}
		infos = found
	} else {
		for _, ex := range y.cfg.Extractors {
			if !ex.Enabled || ex.SearchPrefix == "" {
				continue
			}

			found, err := y.extract(ctx, ex.SearchPrefix+query, ex.Args)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				y.log.Warn("search failed", "extractor", ex.Name, "error", err)
			}
			infos = append(infos, found...)
		}
	}

	now := y.now()
	results := make([]e.SearchResult, 0, len(infos))
	for _, info := range infos {
		title := strings.TrimSpace(info.displayTitle())
		channel := strings.TrimSpace(info.displayChannel())
		extractor := info.extractorName()

		if info.ID == "" || extractor == "" || info.WebpageURL == "" || len(info.Formats) == 0 || info.IsLive || title == "" || channel == "" {
			y.log.Debug("skipping search result", "id", info.ID, "extractor", extractor)
			continue
		}

		y.cache.Add(cacheKey(extractor, info.ID), info)

		fullName, icon := describe(y.cfg.Extractors, extractor)
		results = append(results, e.SearchResult{
			Extractor:         extractor,
			ExtractorIcon:     icon,
			ExtractorFullName: fullName,
			ID:                info.ID,
			Title:             title,
			Channel:           channel,
			Link:              info.WebpageURL,
			Metadata:          info.metadata(now),
		})
	}

	y.log.Info("search finished", "query", query, "found", len(infos), "usable", len(results))

	return results, nil
}

// GetStreams lists the streams of one media item.
func (y *YTDLP) GetStreams(ctx context.Context, extractor string, id string) (e.StreamSet, error) {
	info, err := y.info(ctx, extractor, id)
	if err != nil {
		return e.StreamSet{}, err
	}

	set := e.StreamSet{
		Title:   strings.TrimSpace(info.displayTitle()),
		Channel: strings.TrimSpace(info.displayChannel()),
	}
	if info.Artist != "" && info.Track != "" {
		set.Title, set.Channel, set.FromMetadata = info.Track, info.Artist, true
	}

	set.Audio, set.Video = Classify(info.rawFormats(), extractor, y.cfg.MaxFileSize)

	return set, nil
}

func (y *YTDLP) info(ctx context.Context, extractor string, id string) (*rawInfo, error) {
	key := cacheKey(extractor, id)
	if info, ok := y.cache.Get(key); ok {
		return info, nil
	}

	target := y.fixID(extractor, id)
	if target == "" {
		return nil, ErrExpired
	}

	ex, _ := findExtractor(y.cfg.Extractors, extractor)
	infos, err := y.extract(ctx, target, ex.Args)
	if err != nil && len(infos) == 0 {
		return nil, fmt.Errorf("extracting %s: %w", target, err)
	}
	for _, info := range infos {
		if info.ID != "" {
			y.cache.Add(cacheKey(info.extractorName(), info.ID), info)
		}
	}

	if info, ok := y.cache.Get(key); ok {
		return info, nil
	}
	if len(infos) == 1 {
		return infos[0], nil
	}

	return nil, fmt.Errorf("no info for %s %s", extractor, id)
}

// fixID turns an id into something yt-dlp can resolve, empty when impossible.
func (y *YTDLP) fixID(extractor string, id string) string {
	if extractor == "" || id == "" {
		return ""
	}

	if info, ok := y.cache.Peek(cacheKey(extractor, id)); ok && info.WebpageURL != "" {
		return info.WebpageURL
	}

	switch strings.ToLower(extractor) {
	case "soundcloud", "bandcamp":
		return ""
	case "vk":
		return "https://vk.com/vkvideo?z=video" + id
	case "youtube":
		return "https://www.youtube.com/watch?v=" + id
	}

	return id
}

// Download fetches one stream into a temporary directory and returns the
// path of the final file. Temporary directories live until Cleanup.
func (y *YTDLP) Download(ctx context.Context, req e.DownloadRequest, onProgress func(e.Progress)) (string, error) {
	target := y.fixID(req.Extractor, req.MediaID)
	if target == "" {
		return "", ErrExpired
	}

	dir, err := os.MkdirTemp(y.cfg.TempDir, "media-")
	if err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	y.mu.Lock()
	y.tempDirs = append(y.tempDirs, dir)
	y.mu.Unlock()

	cmd := y.downloadCommand(dir, req)

	tracker := progressTracker{started: y.now(), now: y.now}
	cmd.ProgressFunc(y.cfg.ProgressEvery, func(update ytdlp.ProgressUpdate) {
		if onProgress != nil {
			onProgress(tracker.convert(update))
		}
	})

	y.log.Info("downloading", "target", target, "format", req.FormatID, "audio", req.IsAudio)

	if _, err := cmd.Run(ctx, target); err != nil {
		if cause := context.Cause(ctx); cause != nil {
			return "", cause
		}
		return "", fmt.Errorf("running yt-dlp: %w", err)
	}

	path, err := findOutput(dir, req.TargetFormat)
	if err != nil {
		return "", err
	}

	if req.IsAudio && req.Author != nil && req.Title != nil {
		if isMP3(filepath.Ext(path)) {
			if err := writeTags(path, *req.Author, *req.Title); err != nil {
				y.log.Warn("failed to write tags", "path", path, "error", err)
			}
		}

		renamed := filepath.Join(dir, sanitizeFilename(*req.Author+" - "+*req.Title)+filepath.Ext(path))
		if err := os.Rename(path, renamed); err != nil {
			y.log.Warn("failed to rename file", "path", path, "error", err)
		} else {
			path = renamed
		}
	}

	return path, nil
}

func (y *YTDLP) downloadCommand(dir string, req e.DownloadRequest) *ytdlp.Command {
	cmd := ytdlp.New().
		Format(req.FormatID).
		NoPlaylist().
		NoWarnings().
		ForceOverwrites().
		Output(filepath.Join(dir, "%(title).150B.%(ext)s"))

	if req.IsAudio {
		cmd = cmd.ExtractAudio().AudioFormat(req.TargetFormat).EmbedThumbnail().EmbedMetadata()
		if req.Bitrate != nil && *req.Bitrate > 0 {
			cmd = cmd.AudioQuality(fmt.Sprintf("%.0fK", *req.Bitrate))
		}
		// mp3 frames are rewritten with id3v2 after the download
		if req.Author != nil && req.Title != nil && !isMP3(req.TargetFormat) {
			cmd = cmd.PostProcessorArgs("Metadata+ffmpeg_o:" + metadataArgs(*req.Author, *req.Title))
		}
	} else {
		cmd = cmd.RecodeVideo(req.TargetFormat)
	}

	if ex, ok := findExtractor(y.cfg.Extractors, req.Extractor); ok && ex.Args != "" {
		cmd = cmd.ExtractorArgs(ex.Args)
	}

	return cmd
}

// metadataArgs builds ffmpeg output options overriding artist and title.
// yt-dlp splits postprocessor args with shell rules.
func metadataArgs(author string, title string) string {
	return "-metadata " + shellQuote("artist="+author) + " -metadata " + shellQuote("title="+title)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func isMP3(format string) bool {
	return strings.EqualFold(strings.TrimPrefix(format, "."), "mp3")
}

// Cleanup removes every temporary directory created by Download.
func (y *YTDLP) Cleanup() {
	y.mu.Lock()
	dirs := y.tempDirs
	y.tempDirs = nil
	y.mu.Unlock()

	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			y.log.Warn("failed to remove temp dir", "dir", dir, "error", err)
		}
	}
}

func (y *YTDLP) runExtract(ctx context.Context, target string, extractorArgs string) ([]*rawInfo, error) {
	cmd := ytdlp.New().
		DumpJSON().
		SkipDownload().
		NoWarnings().
		IgnoreErrors()
	if extractorArgs != "" {
		cmd = cmd.ExtractorArgs(extractorArgs)
	}

	res, runErr := cmd.Run(ctx, target)
	if res == nil {
		return nil, runErr
	}

	infos, err := parseInfos(strings.NewReader(res.Stdout))
	if err != nil {
		return infos, err
	}

	return infos, runErr
}

// progressTracker keeps the last known fraction for updates without sizes.
// Elapsed counts from started, speed from the start of the current file.
type progressTracker struct {
	fraction float64
	started  time.Time
	now      func() time.Time
}

func (t *progressTracker) convert(u ytdlp.ProgressUpdate) e.Progress {
	switch {
	case u.TotalBytes > 0:
		t.fraction = float64(u.DownloadedBytes) / float64(u.TotalBytes)
	case u.FragmentCount > 0:
		t.fraction = float64(u.FragmentIndex) / float64(u.FragmentCount)
	}
	t.fraction = min(max(t.fraction, 0), 1)

	p := e.Progress{
		Finished: string(u.Status) == "finished",
		Fraction: t.fraction,
		Stage:    string(u.Status),
	}

	if !t.started.IsZero() && t.now != nil {
		elapsed := t.now().Sub(t.started)
		p.Elapsed = &elapsed
	}

	if !u.Started.IsZero() && t.now != nil {
		if s := t.now().Sub(u.Started).Seconds(); s > 0 && u.DownloadedBytes > 0 {
			speed := float64(u.DownloadedBytes) / s
			p.Speed = &speed
		}
	}

	if eta := u.ETA(); eta > 0 {
		p.ETA = &eta
	}

	return p
}

var skipOutputExt = []string{".part", ".ytdl", ".json", ".jpg", ".jpeg", ".png", ".webp"}

// findOutput picks the downloaded file, preferring the target extension.
func findOutput(dir string, targetFormat string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading download dir: %w", err)
	}

	var (
		best    string
		bestMod time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if slices.Contains(skipOutputExt, ext) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if targetFormat != "" && ext == "."+strings.ToLower(targetFormat) {
			return path, nil
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestMod) {
			best, bestMod = path, info.ModTime()
		}
	}

	if best == "" {
		return "", errors.New("downloaded file not found")
	}
	return best, nil
}

func sanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)

	if runes := []rune(name); len(runes) > 150 {
		name = string(runes[:150])
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "download"
	}
	return name
}

func cacheKey(extractor string, id string) string {
	return strings.ToLower(extractor) + "\x00" + id
}

func isLink(query string) bool {
	return strings.HasPrefix(query, "http://") || strings.HasPrefix(query, "https://")
}
