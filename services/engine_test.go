package services

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "estate-sync/errors"
	"estate-sync/models"
	"estate-sync/storage"
)

// faultyStore wraps a MemoryStore, records the order of calls and fails the
// phases listed in failOn.
type faultyStore struct {
	*storage.MemoryStore

	mu     sync.Mutex
	calls  []string
	failOn map[string]error

	// afterReset runs once ResetFresh has committed.
	afterReset func()
}

func newFaultyStore() *faultyStore {
	return &faultyStore{MemoryStore: storage.NewMemoryStore(), failOn: map[string]error{}}
}

func (f *faultyStore) record(ctx context.Context, op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.failOn[op]
}

func (f *faultyStore) ResetFresh(ctx context.Context) (int64, error) {
	if err := f.record(ctx, "reset"); err != nil {
		return 0, err
	}
	n, err := f.MemoryStore.ResetFresh(ctx)
	if err == nil && f.afterReset != nil {
		f.afterReset()
	}
	return n, err
}

func (f *faultyStore) Lookup(ctx context.Context, links []string) ([]*models.Listing, error) {
	if err := f.record(ctx, "lookup"); err != nil {
		return nil, err
	}
	return f.MemoryStore.Lookup(ctx, links)
}

func (f *faultyStore) Insert(ctx context.Context, listings []*models.Listing) (int, error) {
	if err := f.record(ctx, "insert"); err != nil {
		return 0, err
	}
	return f.MemoryStore.Insert(ctx, listings)
}

func (f *faultyStore) Update(ctx context.Context, listings []*models.Listing) (int, error) {
	if err := f.record(ctx, "update"); err != nil {
		return 0, err
	}
	return f.MemoryStore.Update(ctx, listings)
}

func (f *faultyStore) FetchAll(ctx context.Context) ([]*models.Listing, error) {
	if err := f.record(ctx, "fetch"); err != nil {
		return nil, err
	}
	return f.MemoryStore.FetchAll(ctx)
}

func (f *faultyStore) reset() {
	f.mu.Lock()
	f.calls = nil
	f.failOn = map[string]error{}
	f.afterReset = nil
	f.mu.Unlock()
}

func byLink(t *testing.T, s storage.ListingStore) map[string]*models.Listing {
	t.Helper()
	all, err := s.FetchAll(context.Background())
	require.NoError(t, err)
	out := make(map[string]*models.Listing, len(all))
	for _, l := range all {
		_, dup := out[l.Link]
		require.False(t, dup, "link %s stored twice", l.Link)
		out[l.Link] = l
	}
	return out
}

func TestEngineFirstPassInsertsEverything(t *testing.T) {
	store := newFaultyStore()
	e := NewEngine(store, newTestLogger())

	report := e.Run(context.Background(), []*models.Listing{l("a", "1"), l("b", "2")})

	require.False(t, report.Failed())
	assert.Equal(t, []string{"reset", "lookup", "insert"}, store.calls)
	assert.Equal(t, 2, report.Inserted)
	assert.Zero(t, report.Updated)
	assert.NotEmpty(t, report.RunID)

	got := byLink(t, store)
	require.Len(t, got, 2)
	assert.True(t, got["a"].IsNew)
	assert.True(t, got["b"].IsNew)
}

func TestEngineFreshnessEpoch(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	e := NewEngine(store, newTestLogger())

	first := e.Run(ctx, []*models.Listing{l("a", "1200 sqft"), l("b", "900 sqft"), l("c", "500 sqft")})
	require.False(t, first.Failed())

	second := e.Run(ctx, []*models.Listing{
		l("a", "1,200 Sq.Ft"), // unchanged after normalization
		l("b", "950 sqft"),    // changed
		l("d", "700 sqft"),    // new
	})
	require.False(t, second.Failed())
	assert.Equal(t, int64(3), second.Cleared)
	assert.Equal(t, 1, second.Inserted)
	assert.Equal(t, 1, second.Updated)
	assert.Equal(t, 1, second.Unchanged)

	got := byLink(t, store)
	require.Len(t, got, 4)
	assert.False(t, got["a"].IsNew, "unchanged listing loses the flag")
	assert.Equal(t, "1200 sqft", got["a"].Area, "unchanged listing keeps stored fields")
	assert.True(t, got["b"].IsNew)
	assert.Equal(t, "950 sqft", got["b"].Area)
	assert.False(t, got["c"].IsNew, "listing outside the batch loses the flag")
	assert.True(t, got["d"].IsNew)
}

func TestEngineUpdateKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	e := NewEngine(store, newTestLogger())

	e.Run(ctx, []*models.Listing{l("a", "1")})
	before := byLink(t, store)["a"]

	e.Run(ctx, []*models.Listing{l("a", "2")})
	after := byLink(t, store)["a"]

	assert.Equal(t, before.ID, after.ID)
	assert.True(t, before.CreatedAt.Equal(after.CreatedAt))
	assert.Equal(t, "2", after.Area)
}

func TestEngineEmptyBatchRunsNoPhases(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	e := NewEngine(store, newTestLogger())

	e.Run(ctx, []*models.Listing{l("a", "1")})
	store.reset()

	report := e.Run(ctx, nil)

	assert.False(t, report.Failed())
	assert.Empty(t, store.calls)
	assert.Equal(t, "Scraper returned no listings", report.Notice())
	assert.True(t, byLink(t, store)["a"].IsNew, "empty batch leaves the freshness epoch alone")
}

func TestEngineLookupFailureEndsPass(t *testing.T) {
	store := newFaultyStore()
	store.failOn["lookup"] = apperrors.New("connection reset")
	e := NewEngine(store, newTestLogger())

	report := e.Run(context.Background(), []*models.Listing{l("a", "1")})

	require.True(t, report.Failed())
	assert.Equal(t, []string{"reset", "lookup"}, store.calls)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, apperrors.PhaseLookup, report.Errors[0].Phase)
	assert.Equal(t, apperrors.PhaseLookup, apperrors.PhaseOf(report.Err()))
	assert.True(t, strings.HasPrefix(report.Notice(), "Sync failed"))
	assert.Empty(t, byLink(t, store.MemoryStore))
}

func TestEngineResetFailureContinues(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	e := NewEngine(store, newTestLogger())
	e.Run(ctx, []*models.Listing{l("old", "1")})

	store.reset()
	store.failOn["reset"] = apperrors.New("lock timeout")
	report := e.Run(ctx, []*models.Listing{l("new", "2")})

	assert.Equal(t, []string{"reset", "lookup", "insert"}, store.calls)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, apperrors.PhaseReset, report.Errors[0].Phase)
	assert.Equal(t, 1, report.Inserted)

	got := byLink(t, store.MemoryStore)
	assert.True(t, got["old"].IsNew, "failed reset leaves the previous flag in place")
	assert.True(t, got["new"].IsNew)
}

func TestEngineInsertFailureStillUpdates(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	e := NewEngine(store, newTestLogger())
	e.Run(ctx, []*models.Listing{l("a", "1")})

	store.reset()
	store.failOn["insert"] = apperrors.New("disk full")
	report := e.Run(ctx, []*models.Listing{l("a", "2"), l("b", "3")})

	assert.Equal(t, []string{"reset", "lookup", "insert", "update"}, store.calls)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, apperrors.PhaseInsert, report.Errors[0].Phase)
	assert.Equal(t, 1, report.Updated)
	assert.Contains(t, report.Notice(), "partially failed")

	got := byLink(t, store.MemoryStore)
	assert.Equal(t, "2", got["a"].Area)
	assert.NotContains(t, got, "b")
}

func TestEngineUpdateFailureKeepsInserts(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	e := NewEngine(store, newTestLogger())
	e.Run(ctx, []*models.Listing{l("a", "1")})

	store.reset()
	store.failOn["update"] = apperrors.New("deadlock")
	report := e.Run(ctx, []*models.Listing{l("a", "2"), l("b", "3")})

	require.Len(t, report.Errors, 1)
	assert.Equal(t, apperrors.PhaseUpdate, report.Errors[0].Phase)
	assert.Equal(t, 1, report.Inserted)

	got := byLink(t, store.MemoryStore)
	assert.Equal(t, "1", got["a"].Area)
	assert.Contains(t, got, "b")
}

func TestEngineDuplicateLinksLastWriteWins(t *testing.T) {
	sqlite, err := storage.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "listings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	stores := map[string]storage.ListingStore{
		"memory": storage.NewMemoryStore(),
		"sqlite": sqlite,
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			e := NewEngine(store, newTestLogger())

			report := e.Run(ctx, []*models.Listing{l("x", "1200 sqft"), l("x", "1300 sqft")})
			require.False(t, report.Failed(), "%v", report.Err())

			got := byLink(t, store)
			require.Len(t, got, 1)
			assert.Equal(t, "1300 sqft", got["x"].Area)

			report = e.Run(ctx, []*models.Listing{l("x", "1400 sqft"), l("x", "1,300 sqft")})
			require.False(t, report.Failed(), "%v", report.Err())

			got = byLink(t, store)
			require.Len(t, got, 1)
			assert.Equal(t, "1400 sqft", got["x"].Area)
			assert.True(t, got["x"].IsNew)
		})
	}
}

func TestEngineUnavailable(t *testing.T) {
	ctx := context.Background()
	e := NewUnavailableEngine(apperrors.New("dial tcp: connection refused"), newTestLogger())

	assert.False(t, e.Available())
	assert.True(t, apperrors.IsUnavailable(e.ConfigErr()))

	report := e.Run(ctx, []*models.Listing{l("a", "1")})
	assert.True(t, report.Failed())
	assert.Contains(t, report.Notice(), "unavailable")

	listings, err := e.Listings(ctx)
	assert.NoError(t, err)
	assert.Empty(t, listings)
	assert.NoError(t, e.Clear(ctx))

	assert.False(t, NewEngine(nil, newTestLogger()).Available())
}

func TestEngineListingsFailure(t *testing.T) {
	store := newFaultyStore()
	store.failOn["fetch"] = apperrors.New("broken pipe")
	e := NewEngine(store, newTestLogger())

	_, err := e.Listings(context.Background())
	assert.ErrorContains(t, err, "fetch listings")
}

func TestPassReportNotice(t *testing.T) {
	r := &PassReport{Received: 3, Inserted: 1, Updated: 1, Unchanged: 1,
		Skipped: []*apperrors.ValidationError{apperrors.NewValidationError("link", "", "link is required")}}
	assert.Equal(t, "Sync complete: 1 new, 1 updated, 1 unchanged, 1 skipped", r.Notice())

	r = &PassReport{Skipped: r.Skipped}
	assert.Equal(t, "Sync complete: 0 new, 0 updated, 0 unchanged, 1 skipped", r.Notice())
	assert.NoError(t, r.Err())
}
