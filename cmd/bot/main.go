package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/getsentry/sentry-go"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"nuclight.org/media-tg-bot/app/bot"
	"nuclight.org/media-tg-bot/app/media"
	"nuclight.org/media-tg-bot/app/queue"
	"nuclight.org/media-tg-bot/app/storage"
	"nuclight.org/media-tg-bot/app/telegram"
	"nuclight.org/media-tg-bot/pkg/ai"
	"nuclight.org/media-tg-bot/pkg/logger"
	"nuclight.org/media-tg-bot/pkg/messages"
	"nuclight.org/media-tg-bot/pkg/session"
)

var opts struct {
	TelegramAPIToken   string `long:"telegram-api-token" env:"TELEGRAM_API_TOKEN" required:"true" description:"telegram api token"`
	TelegramWorkersNum int    `long:"telegram-workers-num" env:"TELEGRAM_WORKERS_NUM" default:"5" description:"number of workers for telegram bot"`
	DBPath             string `long:"db-path" env:"DB_PATH" default:"./db/media.sqlite" description:"path to the sqlite job journal"`

	QueueSize        int           `long:"queue-size" env:"QUEUE_SIZE" default:"20" description:"max number of pending jobs"`
	ProgressInterval time.Duration `long:"progress-interval" env:"PROGRESS_INTERVAL" default:"2s" description:"min interval between progress edits"`
	ProgressBarWidth int           `long:"progress-bar-width" env:"PROGRESS_BAR_WIDTH" default:"10" description:"progress bar length"`
	DownloadTimeout  time.Duration `long:"download-timeout" env:"DOWNLOAD_TIMEOUT" default:"20m" description:"abort downloads running longer than this"`
	MaxFileSize      string        `long:"max-file-size" env:"MAX_FILE_SIZE" default:"50MiB" description:"skip streams larger than this"`
	AudioFormat      string        `long:"audio-format" env:"AUDIO_FORMAT" default:"mp3" description:"target audio container"`
	VideoFormat      string        `long:"video-format" env:"VIDEO_FORMAT" default:"mp4" description:"target video container"`
	TempDir          string        `long:"temp-dir" env:"TEMP_DIR" description:"directory for downloads in progress, system temp dir if empty"`

	MessagesFile   string `long:"messages-file" env:"MESSAGES_FILE" description:"toml file overriding bot messages"`
	ExtractorsFile string `long:"extractors-file" env:"EXTRACTORS_FILE" description:"toml file with the extractor list"`
	InstallYTDLP   bool   `long:"install-ytdlp" env:"INSTALL_YTDLP" description:"download yt-dlp if it is missing"`

	SentryDSN   string `long:"sentry-dsn" env:"SENTRY_DSN" description:"sentry dsn, reporting is off if empty"`
	OpenAIKey   string `long:"openai-key" env:"OPENAI_API_KEY" description:"enables ai name suggestions"`
	OpenAIModel string `long:"openai-model" env:"OPENAI_MODEL" description:"model for name suggestions"`

	LogLevel string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"debug, info, warn or error"`
	LogFile  string `long:"log-file" env:"LOG_FILE" description:"also write logs to this rotated file"`
}

var Revision = "dev"

func main() {
	exitCode := 0
	defer func() { os.Exit(exitCode) }()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = os.Stderr.WriteString("loading .env: " + err.Error() + "\n")
		os.Exit(1)
	}

	_, err := flags.Parse(&opts)
	if err != nil {
		os.Exit(1)
	}

	log := logger.NewLogger(logger.Config{Level: opts.LogLevel, File: opts.LogFile})
	log.Info("starting bot", "revision", Revision)

	if opts.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              opts.SentryDSN,
			Release:          Revision,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Error("initializing sentry", "error", err)
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
	}

	maxFileSize, err := humanize.ParseBytes(opts.MaxFileSize)
	if err != nil {
		log.Error("parsing max file size", "value", opts.MaxFileSize, "error", err)
		os.Exit(1)
	}

	catalog := messages.Default()
	if opts.MessagesFile != "" {
		catalog, err = messages.Load(opts.MessagesFile)
		if err != nil {
			log.Error("loading messages", "error", err)
			os.Exit(1)
		}
	}

	extractors := media.DefaultExtractors()
	if opts.ExtractorsFile != "" {
		extractors, err = media.LoadExtractors(opts.ExtractorsFile)
		if err != nil {
			log.Error("loading extractors", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.InstallYTDLP {
		log.Info("installing yt-dlp")
		if err := media.Install(ctx); err != nil {
			log.Error("installing yt-dlp", "error", err)
			os.Exit(1)
		}
	}

	db, err := storage.NewSQLite(ctx, opts.DBPath)
	if err != nil {
		log.Error("creating sqlite3 database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("closing sqlite3 database", "error", err)
		}
	}()

	ytdlp, err := media.NewYTDLP(log, media.Config{
		Extractors:  extractors,
		MaxFileSize: int64(maxFileSize),
		TempDir:     opts.TempDir,
	})
	if err != nil {
		log.Error("creating yt-dlp adapter", "error", err)
		os.Exit(1)
	}

	client := &telegram.Client{
		Log:        log,
		APIToken:   opts.TelegramAPIToken,
		WorkersNum: opts.TelegramWorkersNum,
	}
	if err := client.Connect(); err != nil {
		log.Error("connecting bot", "error", err)
		os.Exit(1)
	}

	store := session.NewStore()

	jobs := queue.New(queue.Config{
		Capacity:         opts.QueueSize,
		ProgressInterval: opts.ProgressInterval,
		ProgressBarWidth: opts.ProgressBarWidth,
		DownloadTimeout:  opts.DownloadTimeout,
		AudioFormat:      opts.AudioFormat,
		VideoFormat:      opts.VideoFormat,
	}, queue.Deps{
		Log:       log,
		Messenger: client,
		Extractor: ytdlp,
		Sessions:  store,
		Catalog:   catalog,
		Journal:   db,
	})

	handler := &bot.Handler{
		Log:         log,
		Store:       store,
		Queue:       jobs,
		Extractor:   ytdlp,
		Messenger:   client,
		Catalog:     catalog,
		AudioFormat: opts.AudioFormat,
		VideoFormat: opts.VideoFormat,
		History:     db,
	}
	if opts.OpenAIKey != "" {
		openai := ai.NewOpenAI(opts.OpenAIKey, &http.Client{Timeout: 30 * time.Second}).WithModel(opts.OpenAIModel)
		handler.Namer = &ai.Namer{AI: openai}
		log.Info("ai name suggestions enabled")
	}
	client.Handler = handler

	g, gctx := errgroup.WithContext(ctx)

	jobs.Start(ctx)

	g.Go(func() error {
		if err := client.Start(gctx); err != nil {
			return fmt.Errorf("starting bot: %w", err)
		}
		client.Wait()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("stopping queue", "pending", jobs.Len())
		jobs.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("bot failed", "error", err)
		exitCode = 1
	}
	ytdlp.Cleanup()

	log.Info("sessions dropped", "count", store.Len())
	log.Info("bot stopped")
}
