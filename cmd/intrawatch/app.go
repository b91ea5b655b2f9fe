package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"intrawatch/internal/config"
	"intrawatch/internal/content"
	"intrawatch/internal/errors"
	"intrawatch/internal/logging"
	"intrawatch/internal/notify"
	"intrawatch/internal/reconcile"
	"intrawatch/internal/snapshot"
	"intrawatch/internal/source"
)

// app holds everything a command needs, built from one config.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	db       *badger.DB
	store    snapshot.Store
	safe     *content.Safe
	source   *source.IntraClient
	notifier notify.Notifier
	driver   *reconcile.Driver
}

func loadConfig() (*config.Config, string, error) {
	path := config.Path(configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, path, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return logger, nil
}

// openStore opens the snapshot store and, when needed, the badger database
// shared with the content safe.
func openStore(cfg *config.Config, needDB bool) (snapshot.Store, *badger.DB, error) {
	var db *badger.DB
	if needDB || cfg.Snapshot.Backend == config.BackendBadger {
		opts := badger.DefaultOptions(filepath.Join(cfg.DataDir, "db"))
		opts.Logger = nil
		var err error
		db, err = badger.Open(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
	}

	if cfg.Snapshot.Backend == config.BackendBadger {
		return snapshot.NewBadgerStore(db, ""), db, nil
	}
	return snapshot.NewFileStore(filepath.Join(cfg.DataDir, "projects.json")), db, nil
}

func newApp(cfg *config.Config, logger *logging.Logger) (*app, error) {
	if !config.ValidAutologin(cfg.Autologin) {
		return nil, errors.ValidationError("autologin must look like https://intra.epitech.eu/auth-<40 hex chars>", nil)
	}

	a := &app{cfg: cfg, logger: logger}

	store, db, err := openStore(cfg, cfg.DownloadContent)
	if err != nil {
		return nil, err
	}
	a.store, a.db = store, db

	if cfg.DownloadContent {
		a.safe, err = content.New(db, content.Options{Root: filepath.Join(cfg.DataDir, "content")})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initializing content safe: %w", err)
		}
	}

	a.source = source.NewIntraClient(cfg.Autologin, &http.Client{Timeout: 30 * time.Second}, logger.Logger)

	a.notifier = notify.Discard{}
	if cfg.NotifyEnabled {
		a.notifier = notify.NewWebhook(notify.WebhookOptions{
			URL:      cfg.Webhook.URL,
			Username: cfg.Webhook.Username,
			Avatar:   cfg.Webhook.Avatar,
			Footer:   "intrawatch - " + version,
		})
	}

	opts := reconcile.Options{
		Store:           a.store,
		Source:          a.source,
		Notifier:        a.notifier,
		Logger:          logger,
		DownloadContent: cfg.DownloadContent,
		DiffTextContent: cfg.DiffTextContent,
		AnnounceSeed:    cfg.AnnounceSeed,
	}
	if a.safe != nil {
		opts.Content = a.safe
	}
	a.driver, err = reconcile.NewDriver(opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// checkAccess verifies the autologin link before the first cycle. A refused
// link is reported through the notifier and stops the process.
func (a *app) checkAccess(ctx context.Context) error {
	err := a.source.CheckAccess(ctx)
	if err == nil {
		return nil
	}
	if errors.IsUnauthorized(err) {
		if nerr := a.notifier.Notify(ctx, notify.MessagePayload(notify.ErrorMessage(err))); nerr != nil {
			a.logger.Warn("sending error notification", zap.Error(nerr))
		}
	}
	return fmt.Errorf("checking intranet access: %w", err)
}

func (a *app) Close() {
	if a.safe != nil {
		a.safe.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("closing database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
