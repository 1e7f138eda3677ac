package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "estate-sync/errors"
	"estate-sync/models"
	"estate-sync/storage"
	"estate-sync/utils"
)

// PassReport describes one reconciliation pass.
type PassReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Received  int
	Skipped   []*apperrors.ValidationError
	Result    Result
	Cleared   int64
	Inserted  int
	Updated   int
	Unchanged int

	// Errors holds one entry per failed phase, in phase order.
	Errors []*apperrors.PersistenceError
	// Unavailable is set when the engine has no usable store.
	Unavailable error
}

// Failed reports whether any phase failed or the store was unavailable.
func (r *PassReport) Failed() bool {
	return r.Unavailable != nil || len(r.Errors) > 0
}

// Err joins the phase errors, or returns nil.
func (r *PassReport) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return apperrors.Join(errs...)
}

// Notice returns a one-line, user-facing summary of the pass.
func (r *PassReport) Notice() string {
	switch {
	case r.Unavailable != nil:
		return fmt.Sprintf("Listing store unavailable (%v); showing last known data", r.Unavailable)
	case len(r.Errors) > 0 && r.Errors[0].Phase == apperrors.PhaseLookup:
		return fmt.Sprintf("Sync failed: %v; showing last known data", r.Errors[0])
	case len(r.Errors) > 0:
		phases := make([]string, len(r.Errors))
		for i, e := range r.Errors {
			phases[i] = string(e.Phase)
		}
		return fmt.Sprintf("Sync partially failed (%v): %v", phases, r.Errors[0].Err)
	case r.Received == 0 && len(r.Skipped) == 0:
		return "Scraper returned no listings"
	default:
		return fmt.Sprintf("Sync complete: %d new, %d updated, %d unchanged, %d skipped",
			r.Inserted, r.Updated, r.Unchanged, len(r.Skipped))
	}
}

// Engine applies reconciliation passes to a ListingStore. It assumes a
// single writer per store.
type Engine struct {
	store     storage.ListingStore
	logger    *utils.Logger
	configErr error
	now       func() time.Time
}

// NewEngine creates an Engine over store. A nil store yields an unavailable
// engine.
func NewEngine(store storage.ListingStore, logger *utils.Logger) *Engine {
	if store == nil {
		return NewUnavailableEngine(apperrors.New("no listing store configured"), logger)
	}
	return &Engine{store: store, logger: logger, now: time.Now}
}

// NewUnavailableEngine creates an Engine whose operations are no-ops that
// return empty results. cause is kept as a ConfigurationError.
func NewUnavailableEngine(cause error, logger *utils.Logger) *Engine {
	var cfgErr *apperrors.ConfigurationError
	if !apperrors.As(cause, &cfgErr) {
		cfgErr = apperrors.NewConfigurationError("store", "", cause)
	}
	logger.Error("[engine] Listing store unavailable, running degraded: %v", cfgErr)
	return &Engine{logger: logger, configErr: cfgErr, now: time.Now}
}

// Available reports whether the engine has a usable store.
func (e *Engine) Available() bool {
	return e.configErr == nil
}

// ConfigErr returns the configuration problem of an unavailable engine.
func (e *Engine) ConfigErr() error {
	return e.configErr
}

// Run executes one pass: reset, lookup, classify, insert, update. A lookup
// failure ends the pass; other phase failures are recorded and the next
// phase is still attempted. Completed phases are never rolled back.
func (e *Engine) Run(ctx context.Context, incoming []*models.Listing) *PassReport {
	report := &PassReport{
		RunID:     uuid.NewString(),
		StartedAt: e.now(),
		Received:  len(incoming),
	}
	defer func() { report.FinishedAt = e.now() }()

	if e.configErr != nil {
		report.Unavailable = e.configErr
		return report
	}

	log := e.logger.With("run_id", report.RunID)
	if len(incoming) == 0 {
		log.Info("[engine] Empty batch, nothing to reconcile")
		return report
	}
	log.Info("[engine] Reconciling %d incoming listings", len(incoming))

	// A non-empty batch always requires the reset, and it must precede
	// any write that sets the flag.
	cleared, err := e.store.ResetFresh(ctx)
	if err != nil {
		e.fail(log, report, apperrors.PhaseReset, err)
	} else {
		report.Cleared = cleared
		log.Debug("[engine] Cleared freshness on %d listings", cleared)
	}

	links := make([]string, 0, len(incoming))
	for _, l := range incoming {
		if l != nil {
			links = append(links, l.Link)
		}
	}
	stored, err := e.store.Lookup(ctx, links)
	if err != nil {
		e.fail(log, report, apperrors.PhaseLookup, err)
		return report
	}

	res := Reconcile(stored, incoming)
	report.Result = res
	report.Unchanged = len(links) - len(res.ToInsert) - len(res.ToUpdate)
	log.Info("[engine] Classified: %d to insert, %d to update, %d unchanged",
		len(res.ToInsert), len(res.ToUpdate), report.Unchanged)

	if len(res.ToInsert) > 0 {
		n, err := e.store.Insert(ctx, res.ToInsert)
		if err != nil {
			e.fail(log, report, apperrors.PhaseInsert, err)
		} else {
			report.Inserted = n
		}
	}

	if len(res.ToUpdate) > 0 {
		n, err := e.store.Update(ctx, res.ToUpdate)
		if err != nil {
			e.fail(log, report, apperrors.PhaseUpdate, err)
		} else {
			report.Updated = n
		}
	}

	if !report.Failed() {
		log.Info("[engine] Pass complete: %d inserted, %d updated", report.Inserted, report.Updated)
	}
	return report
}

func (e *Engine) fail(log *utils.Logger, report *PassReport, phase apperrors.Phase, err error) {
	pe := apperrors.NewPersistenceError(phase, err)
	report.Errors = append(report.Errors, pe)
	log.Error("[engine] %v", pe)
}

// Listings re-reads the canonical store, newest first. An unavailable
// engine returns no listings and no error.
func (e *Engine) Listings(ctx context.Context) ([]*models.Listing, error) {
	if e.configErr != nil {
		return nil, nil
	}
	listings, err := e.store.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch listings: %w", err)
	}
	return listings, nil
}

// Clear deletes every stored listing. It is an administrative operation and
// never part of a pass.
func (e *Engine) Clear(ctx context.Context) error {
	if e.configErr != nil {
		return nil
	}
	if err := e.store.Clear(ctx); err != nil {
		return err
	}
	e.logger.Warn("[engine] Listing store cleared")
	return nil
}
