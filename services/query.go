package services

import (
	"sort"
	"strings"

	apperrors "estate-sync/errors"
	"estate-sync/models"
)

// AllSources is the filter value that matches every listing. The cleaner
// rejects records whose source tag equals it.
const AllSources = "all"

// IsReservedSource reports whether tag collides with the AllSources sentinel.
func IsReservedSource(tag string) bool {
	return strings.EqualFold(strings.TrimSpace(tag), AllSources)
}

// ListSources returns the distinct non-empty source tags, sorted.
func ListSources(listings []*models.Listing) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range listings {
		if l == nil || l.Source == "" {
			continue
		}
		if _, ok := seen[l.Source]; ok {
			continue
		}
		seen[l.Source] = struct{}{}
		out = append(out, l.Source)
	}
	sort.Strings(out)
	return out
}

// FilterBySource returns the listings tagged with source, in store order.
// AllSources (or an empty source) returns listings unchanged.
func FilterBySource(listings []*models.Listing, source string) []*models.Listing {
	if source == "" || source == AllSources {
		return listings
	}
	out := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		if l != nil && l.Source == source {
			out = append(out, l)
		}
	}
	return out
}

// FreshOnly returns the listings flagged fresh, in store order.
func FreshOnly(listings []*models.Listing) []*models.Listing {
	out := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		if l != nil && l.IsNew {
			out = append(out, l)
		}
	}
	return out
}

// Export scopes.
const (
	ScopeAll = "all"
	ScopeNew = "new"
)

// SelectScope returns the listings an export of scope covers.
func SelectScope(listings []*models.Listing, scope string) ([]*models.Listing, error) {
	switch scope {
	case "", ScopeAll:
		return listings, nil
	case ScopeNew:
		return FreshOnly(listings), nil
	default:
		return nil, apperrors.NewValidationError("scope", scope, "scope must be all or new")
	}
}
