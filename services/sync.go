package services

import (
	"context"
	"fmt"

	"estate-sync/models"
	"estate-sync/utils"
)

// BatchSource delivers one batch of raw scraped listings.
type BatchSource interface {
	Fetch(ctx context.Context) ([]*models.RawListing, error)
}

// Syncer drives source → cleaner → catalog for one run.
type Syncer struct {
	source  BatchSource
	cleaner *Cleaner
	catalog *Catalog
	logger  *utils.Logger
}

func NewSyncer(source BatchSource, cleaner *Cleaner, catalog *Catalog, logger *utils.Logger) *Syncer {
	return &Syncer{source: source, cleaner: cleaner, catalog: catalog, logger: logger}
}

// Sync fetches a batch and reconciles it. The returned error is the source
// failure or the joined phase errors; the report is nil only when the source
// failed.
func (s *Syncer) Sync(ctx context.Context) (*PassReport, error) {
	raw, err := s.source.Fetch(ctx)
	if err != nil {
		s.logger.Error("[sync] Failed to fetch batch: %v", err)
		s.catalog.SetNotice(fmt.Sprintf("Failed to trigger scraper (%v); showing last known data", err))
		return nil, err
	}
	return s.SyncRaw(ctx, raw)
}

// SyncRaw reconciles an already fetched batch.
func (s *Syncer) SyncRaw(ctx context.Context, raw []*models.RawListing) (*PassReport, error) {
	s.logger.Info("[sync] Received %d raw listings", len(raw))

	listings, skipped := s.cleaner.Clean(raw)
	for _, v := range skipped {
		s.logger.Debug("[sync] Skipped record: %v", v)
	}

	report := s.catalog.Apply(ctx, listings, skipped)
	return report, report.Err()
}
