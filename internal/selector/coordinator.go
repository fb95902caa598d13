package selector

import (
	"context"
	"errors"
	"fmt"

	"github.com/iwvelando/cultist-circle/internal/catalog"
	"go.uber.org/zap"
)

// Slot is one position of the selection. A pinned slot is left alone by the
// coordinator.
type Slot struct {
	Item   *catalog.Item `json:"item"`
	Pinned bool          `json:"pinned,omitempty"`
}

// ResolveRequest carries the complete caller state for one resolution.
type ResolveRequest struct {
	Slots      []Slot
	Catalog    []catalog.Item
	Excluded   IDSet
	Overrides  map[string]int64
	Threshold  int64
	Categories []string
}

// Resolution is the slot assignment produced by Resolve.
type Resolution struct {
	Slots []Slot `json:"slots"`
	// Overrides only keeps entries for items present in Slots.
	Overrides   map[string]int64 `json:"overrides"`
	Selection   Selection        `json:"selection"`
	PinnedValue int64            `json:"pinnedValue"`
	PinnedCost  int64            `json:"pinnedCost"`
	TotalValue  int64            `json:"totalValue"`
	TotalCost   int64            `json:"totalCost"`
	Candidates  int              `json:"candidates"`
}

// Coordinator splits a request into pinned slots and a residual search.
type Coordinator struct {
	optimizer *Optimizer
	logger    *zap.Logger
}

// NewCoordinator constructs a Coordinator around an Optimizer.
func NewCoordinator(logger *zap.Logger, optimizer *Optimizer) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{optimizer: optimizer, logger: logger}
}

// Resolve fills every non-pinned slot so that the slots together reach the
// threshold. On ErrNoSolution the request slots are not modified.
func (c *Coordinator) Resolve(ctx context.Context, req ResolveRequest) (Resolution, error) {
	policy := c.optimizer.Policy()
	if req.Threshold < 0 {
		return Resolution{}, fmt.Errorf("%w: threshold must be non-negative, got %d", ErrInvalidConfiguration, req.Threshold)
	}
	if len(req.Slots) == 0 || len(req.Slots) > policy.MaxSlots {
		return Resolution{}, fmt.Errorf("%w: expected 1 to %d slots, got %d", ErrInvalidConfiguration, policy.MaxSlots, len(req.Slots))
	}
	if err := validateOverrides(req.Overrides); err != nil {
		return Resolution{}, err
	}

	var pinnedValue, pinnedCost int64
	pinned := make(IDSet)
	remainingSlots := 0
	for i, slot := range req.Slots {
		if !slot.Pinned {
			remainingSlots++
			continue
		}
		// An empty pinned slot holds its place without contributing.
		if slot.Item == nil {
			continue
		}
		if pinned.Has(slot.Item.ID) {
			return Resolution{}, fmt.Errorf("%w: item %s is pinned in more than one slot (slot %d)", ErrInvalidConfiguration, slot.Item.ID, i)
		}
		pinned[slot.Item.ID] = struct{}{}
		pinnedValue += slot.Item.BaseValue
		pinnedCost += EffectiveCost(*slot.Item, req.Overrides)
	}

	remainingThreshold := req.Threshold - pinnedValue
	if remainingThreshold < 0 {
		remainingThreshold = 0
	}
	if err := policy.CheckValueAxis(remainingThreshold, policy.Slack); err != nil {
		return Resolution{}, err
	}

	var selection Selection
	candidates := 0
	if remainingSlots == 0 {
		if pinnedValue < req.Threshold {
			return Resolution{}, fmt.Errorf("all slots are pinned and fall %d short: %w", req.Threshold-pinnedValue, ErrNoSolution)
		}
		selection = Selection{Items: []EffectiveItem{}}
	} else {
		pool := Filter(req.Catalog, policy.FilterOptions(remainingThreshold, req.Excluded, pinned, req.Categories))
		candidates = len(pool)

		var err error
		selection, err = c.optimizer.Solve(ctx, Request{
			Candidates: ResolvePrices(pool, req.Overrides),
			Threshold:  remainingThreshold,
			MaxItems:   remainingSlots,
			Slack:      policy.Slack,
		})
		if err != nil {
			if errors.Is(err, ErrNoSolution) {
				c.logger.Info("no combination meets the remaining threshold",
					zap.String("op", "selector.Coordinator.Resolve"),
					zap.Int64("remainingThreshold", remainingThreshold),
					zap.Int("remainingSlots", remainingSlots),
					zap.Int("candidates", candidates),
				)
				return Resolution{}, fmt.Errorf("remaining threshold %d with %d slots: %w", remainingThreshold, remainingSlots, ErrNoSolution)
			}
			return Resolution{}, err
		}
	}

	catalogCosts := make(map[string]int64, len(req.Catalog))
	for _, item := range req.Catalog {
		catalogCosts[item.ID] = item.MarketCost
	}

	slots := make([]Slot, len(req.Slots))
	next := 0
	for i, slot := range req.Slots {
		if slot.Pinned {
			slots[i] = slot
			continue
		}
		if next < len(selection.Items) {
			// Slots hold catalog records; the override stays in the override map.
			item := selection.Items[next].Item
			if cost, ok := catalogCosts[item.ID]; ok {
				item.MarketCost = cost
			}
			slots[i].Item = &item
			next++
		}
	}

	overrides := make(map[string]int64)
	for _, slot := range slots {
		if slot.Item == nil {
			continue
		}
		if cost, ok := req.Overrides[slot.Item.ID]; ok {
			overrides[slot.Item.ID] = cost
		}
	}

	res := Resolution{
		Slots:       slots,
		Overrides:   overrides,
		Selection:   selection,
		PinnedValue: pinnedValue,
		PinnedCost:  pinnedCost,
		TotalValue:  pinnedValue + selection.TotalValue,
		TotalCost:   pinnedCost + selection.TotalCost,
		Candidates:  candidates,
	}

	c.logger.Debug("slots resolved",
		zap.String("op", "selector.Coordinator.Resolve"),
		zap.Int("pinned", len(pinned)),
		zap.Int("selected", len(selection.Items)),
		zap.Int64("totalValue", res.TotalValue),
		zap.Int64("totalCost", res.TotalCost),
	)
	return res, nil
}
