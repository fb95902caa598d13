// Package catalog defines market items and the sources that load them.
package catalog

import (
	"sort"
	"strings"
	"time"
)

// Item is a single market catalog entry.
type Item struct {
	ID             string    `json:"uid" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	BaseValue      int64     `json:"basePrice" yaml:"baseValue"`
	MarketCost     int64     `json:"price" yaml:"marketCost"`
	Tags           []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	BannedOnMarket bool      `json:"bannedOnFlea,omitempty" yaml:"bannedOnMarket,omitempty"`
	Updated        time.Time `json:"updated,omitempty" yaml:"updated,omitempty"`
}

// HasTag reports whether the item carries the given category tag.
func (i Item) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Sort orders understood by SortItems.
const (
	SortByName      = "az"
	SortByBaseValue = "base-value"
	SortByRatio     = "ratio"
)

// Snapshot is a catalog fetch result along with the time it was taken.
type Snapshot struct {
	Items     []Item    `json:"data"`
	FetchedAt time.Time `json:"timestamp"`
}

// Index returns the snapshot items keyed by id.
func (s Snapshot) Index() map[string]Item {
	index := make(map[string]Item, len(s.Items))
	for _, item := range s.Items {
		index[item.ID] = item
	}
	return index
}

// FilterByCategories keeps items carrying at least one of the categories.
// An empty category list keeps everything.
func FilterByCategories(items []Item, categories []string) []Item {
	if len(categories) == 0 {
		return items
	}
	wanted := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		wanted[c] = struct{}{}
	}

	filtered := make([]Item, 0, len(items))
	for _, item := range items {
		for _, tag := range item.Tags {
			if _, ok := wanted[tag]; ok {
				filtered = append(filtered, item)
				break
			}
		}
	}
	return filtered
}

// SortItems returns a sorted copy of items. Unknown orders fall back to name
// order.
func SortItems(items []Item, order string) []Item {
	sorted := append([]Item(nil), items...)
	switch order {
	case SortByBaseValue:
		sort.SliceStable(sorted, func(a, b int) bool {
			return sorted[a].BaseValue < sorted[b].BaseValue
		})
	case SortByRatio:
		sort.SliceStable(sorted, func(a, b int) bool {
			return RatioLess(sorted[b], sorted[a])
		})
	default:
		sort.SliceStable(sorted, func(a, b int) bool {
			return strings.ToLower(sorted[a].Name) < strings.ToLower(sorted[b].Name)
		})
	}
	return sorted
}

// RatioLess reports whether a has a lower base-value-to-cost ratio than b.
// Items without a cost rank below every priced item.
func RatioLess(a, b Item) bool {
	if a.MarketCost <= 0 || b.MarketCost <= 0 {
		return a.MarketCost <= 0 && b.MarketCost > 0
	}
	// a.BaseValue/a.MarketCost < b.BaseValue/b.MarketCost without division.
	return a.BaseValue*b.MarketCost < b.BaseValue*a.MarketCost
}
