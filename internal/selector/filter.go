package selector

import (
	"sort"

	"github.com/iwvelando/cultist-circle/internal/catalog"
)

// IDSet is a set of item ids.
type IDSet map[string]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...string) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has reports membership; a nil set is empty.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// FilterOptions narrow a catalog to the candidates of one request.
type FilterOptions struct {
	Excluded               IDSet
	Pinned                 IDSet
	Threshold              int64
	MinContributionPercent int64
	Categories             []string
	CandidateLimit         int
}

// Filter returns the eligible candidates. Items are dropped when they have no
// positive cost, are banned from the market, excluded, pinned, or worth less
// than the minimum contribution of the threshold. Category and candidate
// limits are applied last.
func Filter(items []catalog.Item, opts FilterOptions) []catalog.Item {
	candidates := make([]catalog.Item, 0, len(items))
	for _, item := range items {
		switch {
		case item.MarketCost <= 0:
		case item.BannedOnMarket:
		case opts.Excluded.Has(item.ID):
		case opts.Pinned.Has(item.ID):
		case item.BaseValue*100 < opts.Threshold*opts.MinContributionPercent:
		default:
			candidates = append(candidates, item)
		}
	}

	candidates = catalog.FilterByCategories(candidates, opts.Categories)

	if opts.CandidateLimit > 0 {
		sort.SliceStable(candidates, func(a, b int) bool {
			return catalog.RatioLess(candidates[b], candidates[a])
		})
		if len(candidates) > opts.CandidateLimit {
			candidates = candidates[:opts.CandidateLimit]
		}
	}
	return candidates
}

// FilterOptions derives the filter settings of the policy for a threshold.
func (p Policy) FilterOptions(threshold int64, excluded, pinned IDSet, categories []string) FilterOptions {
	return FilterOptions{
		Excluded:               excluded,
		Pinned:                 pinned,
		Threshold:              threshold,
		MinContributionPercent: p.MinContributionPercent,
		Categories:             categories,
		CandidateLimit:         p.CandidateLimit,
	}
}
