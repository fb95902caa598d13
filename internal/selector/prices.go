package selector

import (
	"fmt"

	"github.com/iwvelando/cultist-circle/internal/catalog"
)

// EffectiveItem is a catalog item priced for one request.
type EffectiveItem struct {
	catalog.Item
	// Overridden is set when MarketCost came from a user override.
	Overridden bool `json:"overridden,omitempty"`
}

// ResolvePrices applies cost overrides to the candidates.
func ResolvePrices(items []catalog.Item, overrides map[string]int64) []EffectiveItem {
	effective := make([]EffectiveItem, len(items))
	for i, item := range items {
		effective[i] = EffectiveItem{Item: item}
		if cost, ok := overrides[item.ID]; ok {
			effective[i].MarketCost = cost
			effective[i].Overridden = true
		}
	}
	return effective
}

// EffectiveCost returns the override for item when present, else its market
// cost.
func EffectiveCost(item catalog.Item, overrides map[string]int64) int64 {
	if cost, ok := overrides[item.ID]; ok {
		return cost
	}
	return item.MarketCost
}

func validateOverrides(overrides map[string]int64) error {
	for id, cost := range overrides {
		if cost < 0 {
			return fmt.Errorf("%w: override for %s is negative (%d)", ErrInvalidConfiguration, id, cost)
		}
	}
	return nil
}
