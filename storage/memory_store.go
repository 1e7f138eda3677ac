package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"estate-sync/models"
)

// MemoryStore keeps listings in process memory. It backs dry runs and tests
// and follows the same upsert-by-link rules as the SQL stores.
type MemoryStore struct {
	mu     sync.RWMutex
	byLink map[string]*models.Listing
	nextID int64
	now    func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byLink: make(map[string]*models.Listing), now: time.Now}
}

func (m *MemoryStore) ResetFresh(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, l := range m.byLink {
		if l.IsNew {
			l.IsNew = false
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Lookup(_ context.Context, links []string) ([]*models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Listing
	for _, link := range uniqueLinks(links) {
		if l, ok := m.byLink[link]; ok {
			out = append(out, &models.Listing{Link: l.Link, Area: l.Area})
		}
	}
	return out, nil
}

func (m *MemoryStore) Insert(_ context.Context, listings []*models.Listing) (int, error) {
	return m.upsert(listings), nil
}

func (m *MemoryStore) Update(_ context.Context, listings []*models.Listing) (int, error) {
	return m.upsert(listings), nil
}

func (m *MemoryStore) upsert(listings []*models.Listing) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	written := 0
	for i, l := range listings {
		if l == nil {
			continue
		}
		c := l.Clone()
		if prev, ok := m.byLink[c.Link]; ok {
			c.ID = prev.ID
			c.CreatedAt = prev.CreatedAt
		} else {
			m.nextID++
			c.ID = m.nextID
			c.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		}
		m.byLink[c.Link] = c
		written++
	}
	return written
}

func (m *MemoryStore) FetchAll(_ context.Context) ([]*models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Listing, 0, len(m.byLink))
	for _, l := range m.byLink {
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byLink = make(map[string]*models.Listing)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
