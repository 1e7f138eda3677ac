package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"estate-sync/models"
	"estate-sync/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate summarises the canonical store.
func (s *InsightService) Generate(listings []*models.Listing) *models.Summary {
	report := &models.Summary{
		BySource:       make(map[string]int),
		FreshBySource:  make(map[string]int),
		ListingsByCity: make(map[string]int),
	}

	if len(listings) == 0 {
		return report
	}

	for _, l := range listings {
		if l == nil {
			continue
		}
		report.TotalListings++
		if l.Source != "" {
			report.BySource[l.Source]++
		}
		if l.IsNew {
			report.FreshListings++
			if l.Source != "" {
				report.FreshBySource[l.Source]++
			}
		}
		if l.City != "" {
			report.ListingsByCity[l.City]++
		}
		if report.NewestListing == nil || l.CreatedAt.After(report.NewestListing.CreatedAt) {
			report.NewestListing = l
		}
	}
	report.Sources = ListSources(listings)

	s.logger.Info("[insights] %d listings from %d sources, %d new or changed",
		report.TotalListings, len(report.Sources), report.FreshListings)
	return report
}

func (s *InsightService) Print(w io.Writer, r *models.Summary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🏠 LISTING STORE SUMMARY\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total listings : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  New / changed  : \033[1;32m%d\033[0m\n", r.FreshListings)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Listings by Source\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Sources) == 0 {
		fmt.Fprintf(w, "  No source data\n")
	} else {
		for _, src := range r.Sources {
			fmt.Fprintf(w, "  %-28s %5d  (%d new)\n", truncate(src, 26), r.BySource[src], r.FreshBySource[src])
		}
	}
	fmt.Fprintln(w)

	if r.NewestListing != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Recently Added\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.NewestListing.PropertyName, 50))
		fmt.Fprintf(w, "  Locality : %s\n", r.NewestListing.Locality)
		fmt.Fprintf(w, "  Area     : %s\n", r.NewestListing.Area)
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\033[1;33m  Listings by City\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ListingsByCity) == 0 {
		fmt.Fprintf(w, "  No city data\n")
	} else {
		type cityCount struct {
			city  string
			count int
		}
		var cities []cityCount
		for city, cnt := range r.ListingsByCity {
			cities = append(cities, cityCount{city, cnt})
		}
		sort.Slice(cities, func(i, j int) bool {
			if cities[i].count != cities[j].count {
				return cities[i].count > cities[j].count
			}
			return cities[i].city < cities[j].city
		})
		for _, cc := range cities {
			bar := strings.Repeat("█", min(cc.count, 40))
			fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(cc.city, 28), bar, cc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

// truncate shortens s to at most max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
