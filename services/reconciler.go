package services

import "estate-sync/models"

// Result is the outcome of classifying one incoming batch.
//
// ResetRequired tells the caller to clear every stored freshness flag before
// writing ToInsert and ToUpdate, so that after the writes exactly the
// listings of this pass are fresh.
type Result struct {
	ResetRequired bool
	ToInsert      []*models.Listing
	ToUpdate      []*models.Listing
}

// Changed returns ToInsert followed by ToUpdate.
func (r Result) Changed() []*models.Listing {
	out := make([]*models.Listing, 0, len(r.ToInsert)+len(r.ToUpdate))
	out = append(out, r.ToInsert...)
	return append(out, r.ToUpdate...)
}

// Reconcile classifies incoming listings against the stored set.
//
// A listing whose link is unknown is inserted; a known link whose normalized
// area differs from the stored one is updated; anything else is dropped.
// Results are copies with IsNew set and keep batch order. Duplicate links in
// incoming are each compared against the same stored snapshot, so applying
// the writes in order leaves the last occurrence in the store.
func Reconcile(stored, incoming []*models.Listing) Result {
	var res Result
	if len(incoming) == 0 {
		return res
	}
	res.ResetRequired = true

	wanted := make(map[string]struct{}, len(incoming))
	for _, p := range incoming {
		if p != nil {
			wanted[p.Link] = struct{}{}
		}
	}

	// Only the area matters for change detection.
	areas := make(map[string]string, len(incoming))
	for _, s := range stored {
		if s == nil {
			continue
		}
		if _, ok := wanted[s.Link]; ok {
			areas[s.Link] = s.Area
		}
	}

	for _, p := range incoming {
		if p == nil {
			continue
		}
		prev, known := areas[p.Link]
		switch {
		case !known:
			res.ToInsert = append(res.ToInsert, markFresh(p))
		case Normalize(prev) != Normalize(p.Area):
			res.ToUpdate = append(res.ToUpdate, markFresh(p))
		}
	}
	return res
}

func markFresh(l *models.Listing) *models.Listing {
	c := l.Clone()
	c.IsNew = true
	return c
}
