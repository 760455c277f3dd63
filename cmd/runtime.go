package cmd

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapleads/mapleads/internal/archive"
	"github.com/mapleads/mapleads/internal/browser"
	"github.com/mapleads/mapleads/internal/config"
	"github.com/mapleads/mapleads/internal/logging"
	"github.com/mapleads/mapleads/internal/metrics"
	"github.com/mapleads/mapleads/internal/notify"
	"github.com/mapleads/mapleads/internal/pipeline"
	"github.com/mapleads/mapleads/internal/progress"
	"github.com/mapleads/mapleads/internal/runlog"
)

// runtime bundles the services a command needs, built once from config.
type runtime struct {
	cfg      config.Config
	logger   *zap.Logger
	runID    string
	session  browser.Session
	runs     runlog.Store
	notifier notify.Notifier
	pubsub   *notify.PubSub
	archiver *archive.Archiver
	tracker  *progress.Tracker
	gcs      *storage.Client
}

// newRuntime loads configuration and wires the command's collaborators.
// Stage commands that never open a page pass needBrowser=false and skip the
// Chrome launch entirely.
func newRuntime(ctx context.Context, needBrowser bool) (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewWithFile(cfg.Logging.Development, cfg.Logging.File)
	if err != nil {
		return nil, err
	}
	metrics.Init()

	rt := &runtime{
		cfg:    cfg,
		logger: logger,
		runID:  uuid.NewString(),
	}
	rt.tracker = progress.NewTracker(rt.runID)

	ok := false
	defer func() {
		if !ok {
			rt.close(ctx)
		}
	}()

	if needBrowser {
		session, err := browser.NewChromeSession(browser.Config{
			Headless:     cfg.Browser.Headless,
			UserAgent:    cfg.Browser.UserAgent,
			WindowWidth:  cfg.Browser.WindowWidth,
			WindowHeight: cfg.Browser.WindowHeight,
			Lang:         cfg.Browser.Lang,
		})
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		rt.session = session
	}

	if cfg.Database.DSN != "" {
		store, err := runlog.NewPostgresStore(ctx, runlog.PostgresConfig{
			DSN:      cfg.Database.DSN,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect run log: %w", err)
		}
		rt.runs = store
	} else {
		rt.runs = runlog.NewMemStore()
	}

	var channels []notify.Notifier
	if cfg.Telegram.BotToken != "" {
		tg, err := notify.NewTelegram(notify.TelegramConfig{
			BotToken: cfg.Telegram.BotToken,
			ChatID:   cfg.Telegram.ChatID,
			Silent:   cfg.Telegram.Silent,
		})
		if err != nil {
			return nil, fmt.Errorf("init telegram notifier: %w", err)
		}
		channels = append(channels, tg)
	}
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.Topic != "" {
		ps, err := notify.NewPubSub(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic)
		if err != nil {
			return nil, fmt.Errorf("init pubsub notifier: %w", err)
		}
		rt.pubsub = ps
		channels = append(channels, ps)
	}
	if len(channels) > 0 {
		rt.notifier = notify.NewMulti(logger, channels...)
	}

	if cfg.Archive.Enabled {
		var store archive.BlobStore
		if cfg.Archive.GCSBucket != "" {
			client, err := storage.NewClient(ctx)
			if err != nil {
				return nil, fmt.Errorf("init gcs client: %w", err)
			}
			rt.gcs = client
			store, err = archive.NewGCSStore(client, cfg.Archive.GCSBucket)
			if err != nil {
				return nil, err
			}
		} else {
			local, err := archive.NewLocalStore(cfg.Archive.LocalDir)
			if err != nil {
				return nil, err
			}
			store = local
		}
		rt.archiver = archive.New(store, logger)
	}

	ok = true
	return rt, nil
}

// newPipeline builds the pipeline over this runtime's collaborators.
func (rt *runtime) newPipeline() (*pipeline.Pipeline, error) {
	return pipeline.New(rt.cfg, pipeline.Options{
		Session:  rt.session,
		Tracker:  rt.tracker,
		Notifier: rt.notifier,
		Runs:     rt.runs,
		Archiver: rt.archiver,
		Logger:   rt.logger,
		RunID:    rt.runID,
	})
}

func (rt *runtime) close(ctx context.Context) {
	if rt.session != nil {
		if err := rt.session.Close(ctx); err != nil {
			rt.logger.Warn("Failed to close browser", zap.Error(err))
		}
	}
	if rt.runs != nil {
		rt.runs.Close()
	}
	if rt.pubsub != nil {
		rt.pubsub.Stop()
	}
	if rt.gcs != nil {
		if err := rt.gcs.Close(); err != nil {
			rt.logger.Warn("Failed to close gcs client", zap.Error(err))
		}
	}
	_ = rt.logger.Sync()
}
