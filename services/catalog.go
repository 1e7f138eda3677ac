package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "estate-sync/errors"
	"estate-sync/models"
	"estate-sync/utils"
)

// View is what the presentation layer renders.
type View struct {
	Listings []*models.Listing
	Sources  []string
	Notice   string
	LastRun  time.Time
}

// Catalog keeps the last known good copy of the canonical store. Failed
// passes and failed reloads leave it untouched and only update the notice.
type Catalog struct {
	engine *Engine
	logger *utils.Logger

	passMu sync.Mutex // one pass at a time

	mu       sync.RWMutex
	listings []*models.Listing
	notice   string
	lastRun  time.Time
	last     *PassReport
}

func NewCatalog(engine *Engine, logger *utils.Logger) *Catalog {
	return &Catalog{engine: engine, logger: logger}
}

// Refresh reloads the listings from the store.
func (c *Catalog) Refresh(ctx context.Context) error {
	if !c.engine.Available() {
		c.SetNotice(fmt.Sprintf("Listing store unavailable (%v)", c.engine.ConfigErr()))
		return nil
	}

	listings, err := c.engine.Listings(ctx)
	if err != nil {
		c.logger.Error("[catalog] Reload failed, keeping %d cached listings: %v", c.count(), err)
		c.SetNotice(fmt.Sprintf("Could not reload listings (%v); showing last known data", err))
		return err
	}

	c.mu.Lock()
	c.listings = listings
	c.mu.Unlock()
	return nil
}

// Apply runs one pass over batch and, if it succeeded, reloads the store.
// skipped lists the records the cleaner rejected; it only feeds the report.
// Once started, a pass is not cancelled with ctx: stopping after the reset
// would leave every freshness flag cleared and the batch unwritten.
func (c *Catalog) Apply(ctx context.Context, batch []*models.Listing, skipped []*apperrors.ValidationError) *PassReport {
	c.passMu.Lock()
	defer c.passMu.Unlock()

	ctx = context.WithoutCancel(ctx)

	report := c.engine.Run(ctx, batch)
	report.Skipped = skipped

	c.mu.Lock()
	c.lastRun = report.FinishedAt
	c.last = report
	c.mu.Unlock()

	if report.Failed() {
		c.SetNotice(report.Notice())
		return report
	}

	if err := c.Refresh(ctx); err != nil {
		return report
	}
	c.SetNotice(report.Notice())
	return report
}

// SetNotice replaces the one-line notice shown with the listings.
func (c *Catalog) SetNotice(notice string) {
	c.mu.Lock()
	c.notice = notice
	c.mu.Unlock()
}

// Snapshot returns the current view.
func (c *Catalog) Snapshot() View {
	c.mu.RLock()
	defer c.mu.RUnlock()

	listings := make([]*models.Listing, len(c.listings))
	copy(listings, c.listings)
	return View{
		Listings: listings,
		Sources:  ListSources(listings),
		Notice:   c.notice,
		LastRun:  c.lastRun,
	}
}

// LastReport returns the report of the most recent pass, or nil.
func (c *Catalog) LastReport() *PassReport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func (c *Catalog) count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.listings)
}

// Available reports whether the underlying store is usable.
func (c *Catalog) Available() bool {
	return c.engine.Available()
}
