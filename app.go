package main

import (
	"context"
	"os"

	"github.com/mattn/go-isatty"

	"estate-sync/config"
	"estate-sync/scraper/webhook"
	"estate-sync/services"
	"estate-sync/storage"
	"estate-sync/utils"
)

// app holds the components shared by every command.
type app struct {
	cfg     *config.Config
	logger  *utils.Logger
	store   storage.ListingStore
	engine  *services.Engine
	catalog *services.Catalog
	cleaner *services.Cleaner
}

// setup loads configuration and opens the store. A store that cannot be
// opened leaves the engine unavailable instead of failing the command.
func (a *app) setup(ctx context.Context, logLevel string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	a.cfg = cfg

	a.logger = utils.NewLoggerWithOptions(utils.LoggerOptions{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  os.Stderr,
		NoColor: !isatty.IsTerminal(os.Stderr.Fd()),
	})
	a.logger.Info("=== Listing sync starting (store: %s) ===", cfg.StoreDriver)

	store, err := storage.Open(ctx, cfg, a.logger)
	if err != nil {
		a.engine = services.NewUnavailableEngine(err, a.logger)
	} else {
		a.store = store
		a.engine = services.NewEngine(store, a.logger)
	}

	a.catalog = services.NewCatalog(a.engine, a.logger)
	a.cleaner = services.NewCleaner(a.logger, cfg.CollapseDuplicates)
	return nil
}

// syncer returns a Syncer reading from file when set, otherwise from the
// configured webhook. It returns nil when neither is available.
func (a *app) syncer(file string) *services.Syncer {
	var src services.BatchSource
	switch {
	case file != "":
		src = webhook.FileSource{Path: file}
	case a.cfg.WebhookURL != "":
		src = webhook.New(a.cfg.WebhookURL, a.cfg.WebhookTimeout, a.cfg.MaxRetries, a.logger)
	default:
		return nil
	}
	return services.NewSyncer(src, a.cleaner, a.catalog, a.logger)
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close listing store: %v", err)
	}
}
