package services

import (
	"strings"

	apperrors "estate-sync/errors"
	"estate-sync/models"
	"estate-sync/utils"
)

// Cleaner transforms RawListings from the webhook into Listings ready for
// reconciliation.
type Cleaner struct {
	logger             *utils.Logger
	collapseDuplicates bool
}

// NewCleaner creates a Cleaner. With collapseDuplicates set, a link repeated
// within one batch is kept only once, at the position of its last occurrence.
func NewCleaner(logger *utils.Logger, collapseDuplicates bool) *Cleaner {
	return &Cleaner{logger: logger, collapseDuplicates: collapseDuplicates}
}

// Clean processes raw listings and returns the usable records plus one
// ValidationError per skipped record.
func (c *Cleaner) Clean(raw []*models.RawListing) ([]*models.Listing, []*apperrors.ValidationError) {
	result := make([]*models.Listing, 0, len(raw))
	var skipped []*apperrors.ValidationError
	seen := utils.NewLinkSet()

	for i, r := range raw {
		if r == nil {
			skipped = append(skipped, apperrors.NewValidationError("", i, "empty record"))
			continue
		}

		link := strings.TrimSpace(r.Link.String())
		if link == "" {
			c.logger.Warn("[cleaner] Dropping listing with empty link: %s", r.PropertyName)
			skipped = append(skipped, apperrors.NewValidationError("link", "", "link is required"))
			continue
		}

		source := normaliseText(r.Source.String())
		if IsReservedSource(source) {
			c.logger.Warn("[cleaner] Dropping listing with reserved source tag %q: %s", source, link)
			skipped = append(skipped, apperrors.NewValidationError("source", source, "source tag is reserved"))
			continue
		}

		if !seen.Add(link) {
			c.logger.Warn("[cleaner] Duplicate link in batch: %s", link)
		}

		result = append(result, &models.Listing{
			PropertyName: normaliseText(r.PropertyName.String()),
			Price:        normaliseText(r.Price.String()),
			BHK:          normaliseText(r.BHK.String()),
			Locality:     normaliseText(r.Locality.String()),
			Area:         normaliseText(r.Area.String()),
			Developer:    normaliseText(r.Developer.String()),
			Status:       normaliseText(r.Status.String()),
			RegDate:      normaliseText(r.RegDate.String()),
			Link:         link,
			PropertyType: normaliseText(r.PropertyType.String()),
			City:         normaliseText(r.City.String()),
			Furnishing:   normaliseText(r.Furnishing.String()),
			Fomo:         normaliseText(r.Fomo.String()),
			Source:       source,
		})
	}

	if c.collapseDuplicates && seen.Size() < len(result) {
		result = collapseToLast(result)
	}

	c.logger.Info("[cleaner] Cleaned %d → %d listings (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result, skipped
}

// collapseToLast keeps the last occurrence of every link, in the order those
// last occurrences appear.
func collapseToLast(listings []*models.Listing) []*models.Listing {
	last := make(map[string]int, len(listings))
	for i, l := range listings {
		last[l.Link] = i
	}
	out := make([]*models.Listing, 0, len(last))
	for i, l := range listings {
		if last[l.Link] == i {
			out = append(out, l)
		}
	}
	return out
}
