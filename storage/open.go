package storage

import (
	"context"
	"time"

	"estate-sync/config"
	apperrors "estate-sync/errors"
	"estate-sync/utils"
)

// Open returns the store selected by cfg.StoreDriver. Any failure is
// reported as a ConfigurationError so callers can fall back to a degraded
// engine.
func Open(ctx context.Context, cfg *config.Config, logger *utils.Logger) (ListingStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.StoreDriver {
	case config.DriverMemory:
		return NewMemoryStore(), nil
	case config.DriverSQLite:
		s, err := NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, apperrors.NewConfigurationError("sqlite", "cannot open store", err)
		}
		return s, nil
	default:
		retry := &utils.RetryConfig{
			MaxAttempts: max(cfg.MaxRetries, 1),
			BaseDelay:   time.Second,
			Logger:      logger,
		}
		s, err := NewPostgresStore(ctx, cfg.DSN(), retry)
		if err != nil {
			return nil, apperrors.NewConfigurationError("postgres", "cannot connect", err)
		}
		return s, nil
	}
}
