package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/labdesk/internal/docservice"
	"github.com/starford/labdesk/internal/export"
	"github.com/starford/labdesk/internal/grading"
	"github.com/starford/labdesk/internal/index"
	"github.com/starford/labdesk/internal/storage"
	"github.com/starford/labdesk/internal/workspace"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		// Initialize structured JSON logger.
		app.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	slog.SetDefault(app.logger)
	return app, nil
}

// openStore returns the configured storage backend. The fs backend is
// rooted at the inbox directory, which is created if missing.
func openStore(cfg *Config) (storage.Provider, error) {
	switch cfg.Storage.Backend {
	case StorageBackendS3:
		s3 := cfg.Storage.S3
		return storage.NewS3(storage.S3Config{
			Endpoint:  s3.Endpoint,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Bucket:    s3.Bucket,
			Prefix:    s3.Prefix,
			UseSSL:    s3.UseSSL,
		})
	default:
		if err := os.MkdirAll(cfg.Inbox.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create inbox dir: %w", err)
		}
		return storage.NewFS(cfg.Inbox.Path)
	}
}

// components are the long-lived collaborators shared by the HTTP and MCP modes.
type components struct {
	svc   *docservice.Service
	db    *index.DB
	store storage.Provider
}

func (c *components) Close() {
	_ = c.db.Close()
}

// wire opens storage and the index, runs the initial sync and builds the
// document service.
func wire(ctx context.Context, cfg *Config, logger *slog.Logger, notifier docservice.Notifier) (*components, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(ctx, db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	cache, err := workspace.NewCache(cfg.Cache.Size)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	svc, err := docservice.NewService(docservice.Deps{
		Store:   store,
		DB:      db,
		Tracker: workspace.NewTracker(),
		Cache:   cache,
		Grader: grading.NewClient(grading.Config{
			BaseURL:       cfg.Grading.BaseURL,
			Timeout:       cfg.Grading.Timeout,
			SessionCookie: cfg.Grading.SessionCookie,
			Token:         cfg.Grading.Token,
		}),
		Exporter:    export.New(),
		Notifier:    notifier,
		Logger:      logger,
		SubmitLimit: cfg.Grading.SubmitLimit,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &components{svc: svc, db: db, store: store}, nil
}
