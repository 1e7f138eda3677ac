package storage

import (
	"context"

	"estate-sync/models"
)

// ListingStore is the interface any listing backend must satisfy. Its
// methods map one-to-one onto the phases of a reconciliation pass.
type ListingStore interface {
	// ResetFresh clears the freshness flag on every stored listing and
	// returns how many were cleared.
	ResetFresh(ctx context.Context) (int64, error)

	// Lookup returns the stored listings whose link is in links. Only Link
	// and Area are populated.
	Lookup(ctx context.Context, links []string) ([]*models.Listing, error)

	// Insert writes new listings. Writes are keyed on link so a link
	// repeated within one call ends with its last occurrence.
	Insert(ctx context.Context, listings []*models.Listing) (int, error)

	// Update overwrites existing listings keyed on link.
	Update(ctx context.Context, listings []*models.Listing) (int, error)

	// FetchAll returns every stored listing, newest first.
	FetchAll(ctx context.Context) ([]*models.Listing, error)

	// Clear deletes every stored listing. Administrative use only.
	Clear(ctx context.Context) error

	Close() error
}

// ListingExporter is the interface for writing listings out of the store.
type ListingExporter interface {
	Export(listings []*models.Listing) error
	Close() error
}
