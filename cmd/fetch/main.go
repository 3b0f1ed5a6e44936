package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"nuclight.org/media-tg-bot/app/media"
	e "nuclight.org/media-tg-bot/pkg/entities"
	"nuclight.org/media-tg-bot/pkg/logger"
)

var opts struct {
	Pick           int    `long:"pick" short:"p" env:"FETCH_PICK" description:"download result number N, only list results if 0"`
	Video          bool   `long:"video" description:"download the best video stream instead of audio"`
	Author         string `long:"author" description:"artist tag for audio downloads"`
	Title          string `long:"title" description:"track tag for audio downloads"`
	OutputDir      string `long:"output" env:"OUTPUT_DIR" default:"./files" description:"output directory for downloaded files"`
	AudioFormat    string `long:"audio-format" env:"AUDIO_FORMAT" default:"mp3" description:"target audio container"`
	VideoFormat    string `long:"video-format" env:"VIDEO_FORMAT" default:"mp4" description:"target video container"`
	MaxFileSize    string `long:"max-file-size" env:"MAX_FILE_SIZE" default:"2GiB" description:"skip streams larger than this"`
	ExtractorsFile string `long:"extractors-file" env:"EXTRACTORS_FILE" description:"toml file with the extractor list"`
	InstallYTDLP   bool   `long:"install-ytdlp" env:"INSTALL_YTDLP" description:"download yt-dlp if it is missing"`
	LogLevel       string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"debug, info, warn or error"`

	Args struct {
		Query []string `positional-arg-name:"query" required:"1"`
	} `positional-args:"yes"`
}

func main() {
	_ = godotenv.Load()

	_, err := flags.Parse(&opts)
	if err != nil {
		os.Exit(1)
	}

	log := logger.NewLogger(logger.Config{Level: opts.LogLevel})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.InstallYTDLP {
		if err := media.Install(ctx); err != nil {
			log.Error("installing yt-dlp", "error", err)
			os.Exit(1)
		}
	}

	maxFileSize, err := humanize.ParseBytes(opts.MaxFileSize)
	if err != nil {
		log.Error("parsing max file size", "error", err)
		os.Exit(1)
	}

	extractors := media.DefaultExtractors()
	if opts.ExtractorsFile != "" {
		extractors, err = media.LoadExtractors(opts.ExtractorsFile)
		if err != nil {
			log.Error("loading extractors", "error", err)
			os.Exit(1)
		}
	}

	ytdlp, err := media.NewYTDLP(log, media.Config{Extractors: extractors, MaxFileSize: int64(maxFileSize)})
	if err != nil {
		log.Error("creating yt-dlp adapter", "error", err)
		os.Exit(1)
	}
	defer ytdlp.Cleanup()

	query := strings.Join(opts.Args.Query, " ")
	results, err := ytdlp.Search(ctx, query)
	if err != nil {
		log.Error("searching", "query", query, "error", err)
		os.Exit(1)
	}

	if opts.Pick <= 0 {
		for i, r := range results {
			fmt.Printf("%2d. [%s] %s - %s\n    %s\n", i+1, r.ExtractorFullName, r.Channel, r.Title, r.Link)
			if len(r.Metadata) > 0 {
				fmt.Printf("    %s\n", strings.Join(r.Metadata, " | "))
			}
		}
		return
	}

	if opts.Pick > len(results) {
		log.Error("no such result", "pick", opts.Pick, "found", len(results))
		os.Exit(1)
	}
	picked := results[opts.Pick-1]

	set, err := ytdlp.GetStreams(ctx, picked.Extractor, picked.ID)
	if err != nil {
		log.Error("getting streams", "error", err)
		os.Exit(1)
	}

	req := e.DownloadRequest{
		Extractor: picked.Extractor,
		MediaID:   picked.ID,
	}
	switch {
	case opts.Video && len(set.Video) > 0:
		req.FormatID = set.Video[0].ID
		req.TargetFormat = opts.VideoFormat
	case !opts.Video && len(set.Audio) > 0:
		best := set.Audio[0]
		req.FormatID = best.ID
		req.IsAudio = true
		req.TargetFormat = opts.AudioFormat
		req.Bitrate = &best.Bitrate
		if opts.Author != "" && opts.Title != "" {
			req.Author, req.Title = &opts.Author, &opts.Title
		} else if set.FromMetadata {
			req.Author, req.Title = &set.Channel, &set.Title
		}
	default:
		log.Error("no suitable stream", "audio", len(set.Audio), "video", len(set.Video))
		os.Exit(1)
	}

	log.Info("downloading", "title", set.Title, "format", req.FormatID)

	path, err := ytdlp.Download(ctx, req, func(p e.Progress) {
		args := []any{"percent", fmt.Sprintf("%.1f", p.Fraction*100)}
		if p.Speed != nil {
			args = append(args, "speed", humanize.IBytes(uint64(*p.Speed))+"/s")
		}
		if p.Stage != "" {
			args = append(args, "stage", p.Stage)
		}
		log.Debug("progress", args...)
	})
	if err != nil {
		log.Error("downloading", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		log.Error("creating output directory", "error", err)
		os.Exit(1)
	}

	dst := filepath.Join(opts.OutputDir, filepath.Base(path))
	if err := copyFile(path, dst); err != nil {
		log.Error("copying file", "error", err)
		os.Exit(1)
	}

	log.Info("done", "path", dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copying: %w", err)
	}

	return out.Close()
}
