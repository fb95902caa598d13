// Package testutil provides common utility functions for testing.
package testutil

import (
	"sort"

	"github.com/iwvelando/cultist-circle/internal/catalog"
)

// Item builds a tradeable catalog item.
func Item(id string, baseValue, marketCost int64) catalog.Item {
	return catalog.Item{
		ID:         id,
		Name:       "Item " + id,
		BaseValue:  baseValue,
		MarketCost: marketCost,
	}
}

// FindItem finds an item by id in the items slice.
// Returns a pointer to the item if found, nil otherwise.
func FindItem(items []catalog.Item, id string) *catalog.Item {
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}

// SortedIDs returns the ids of items in lexical order.
func SortedIDs(items []catalog.Item) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	sort.Strings(ids)
	return ids
}
