package selector

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/iwvelando/cultist-circle/internal/catalog"
	"github.com/iwvelando/cultist-circle/pkg/testutil"
	"go.uber.org/zap"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	return NewCoordinator(zap.NewNop(), newTestOptimizer(t, DefaultPolicy(), fixedRand(0)))
}

func itemPtr(item catalog.Item) *catalog.Item {
	return &item
}

func slotIDs(slots []Slot) []string {
	ids := make([]string, len(slots))
	for i, slot := range slots {
		if slot.Item != nil {
			ids[i] = slot.Item.ID
		}
	}
	return ids
}

func coordinatorCatalog() []catalog.Item {
	return []catalog.Item{
		testutil.Item("a", 200000, 5000),
		testutil.Item("b", 150000, 4000),
		testutil.Item("c", 50000, 1000),
		testutil.Item("d", 100000, 9000),
	}
}

func TestResolveKeepsPinnedSlots(t *testing.T) {
	coord := newTestCoordinator(t)
	items := coordinatorCatalog()

	pinned := items[3]
	req := ResolveRequest{
		Slots: []Slot{
			{},
			{Item: itemPtr(pinned), Pinned: true},
			{Item: itemPtr(items[2])},
		},
		Catalog:   items,
		Threshold: 350000,
	}

	res, err := coord.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if res.Slots[1].Item == nil || res.Slots[1].Item.ID != "d" || !res.Slots[1].Pinned {
		t.Fatalf("pinned slot changed: %+v", res.Slots[1])
	}
	// 250000 remaining over two slots: only a+c lands inside the slack window.
	got := []string{res.Slots[0].Item.ID, res.Slots[2].Item.ID}
	sort.Strings(got)
	if diff := cmp.Diff([]string{"a", "c"}, got); diff != "" {
		t.Fatalf("unexpected fill (-want +got):\n%s", diff)
	}
	if res.PinnedValue != 100000 || res.PinnedCost != 9000 {
		t.Fatalf("unexpected pinned totals %d/%d", res.PinnedValue, res.PinnedCost)
	}
	if res.TotalValue < req.Threshold {
		t.Fatalf("total value %d below threshold", res.TotalValue)
	}
	if res.TotalCost != 15000 {
		t.Fatalf("expected total cost 15000, got %d", res.TotalCost)
	}
	if req.Slots[0].Item != nil {
		t.Fatalf("request slots were modified")
	}
}

func TestResolveNeverSelectsPinnedOrExcludedItems(t *testing.T) {
	coord := newTestCoordinator(t)
	items := coordinatorCatalog()

	res, err := coord.Resolve(context.Background(), ResolveRequest{
		Slots:     []Slot{{Item: itemPtr(items[0]), Pinned: true}, {}, {}},
		Catalog:   items,
		Excluded:  NewIDSet("c"),
		Threshold: 450000,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	counts := make(map[string]int)
	for _, slot := range res.Slots {
		if slot.Item != nil {
			counts[slot.Item.ID]++
		}
	}
	if counts["a"] != 1 {
		t.Fatalf("pinned item should appear exactly once, got %d", counts["a"])
	}
	if counts["c"] != 0 {
		t.Fatalf("excluded item selected: %v", slotIDs(res.Slots))
	}
}

func TestResolveNoSolutionLeavesStateUntouched(t *testing.T) {
	coord := newTestCoordinator(t)
	items := coordinatorCatalog()

	req := ResolveRequest{
		Slots:     []Slot{{Item: itemPtr(items[2]), Pinned: true}, {Item: itemPtr(items[3])}},
		Catalog:   items,
		Excluded:  NewIDSet("a", "b", "d"),
		Threshold: 400000,
	}
	res, err := coord.Resolve(context.Background(), req)
	if !errors.Is(err, ErrNoSolution) {
		t.Fatalf("expected ErrNoSolution, got %v", err)
	}
	if res.Slots != nil {
		t.Fatalf("expected no slots on failure, got %v", slotIDs(res.Slots))
	}
	if req.Slots[1].Item == nil || req.Slots[1].Item.ID != "d" {
		t.Fatalf("request slots were modified: %v", slotIDs(req.Slots))
	}
}

func TestResolveAllSlotsPinned(t *testing.T) {
	coord := newTestCoordinator(t)
	items := coordinatorCatalog()
	slots := []Slot{
		{Item: itemPtr(items[0]), Pinned: true},
		{Item: itemPtr(items[1]), Pinned: true},
	}

	res, err := coord.Resolve(context.Background(), ResolveRequest{Slots: slots, Catalog: items, Threshold: 350000})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, slotIDs(res.Slots)); diff != "" {
		t.Fatalf("unexpected slots (-want +got):\n%s", diff)
	}
	if res.TotalCost != 9000 {
		t.Fatalf("expected cost 9000, got %d", res.TotalCost)
	}

	_, err = coord.Resolve(context.Background(), ResolveRequest{Slots: slots, Catalog: items, Threshold: 350001})
	if !errors.Is(err, ErrNoSolution) {
		t.Fatalf("expected ErrNoSolution for short pinned set, got %v", err)
	}
}

func TestResolvePinnedAlreadyMeetsThreshold(t *testing.T) {
	coord := newTestCoordinator(t)
	items := coordinatorCatalog()

	res, err := coord.Resolve(context.Background(), ResolveRequest{
		Slots:     []Slot{{Item: itemPtr(items[0]), Pinned: true}, {Item: itemPtr(items[3])}},
		Catalog:   items,
		Overrides: map[string]int64{"d": 1},
		Threshold: 150000,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Slots[1].Item != nil {
		t.Fatalf("expected the open slot to be cleared, got %s", res.Slots[1].Item.ID)
	}
	if len(res.Overrides) != 0 {
		t.Fatalf("expected overrides of unselected items to be dropped, got %v", res.Overrides)
	}
}

func TestResolveOverrides(t *testing.T) {
	coord := newTestCoordinator(t)
	items := coordinatorCatalog()

	res, err := coord.Resolve(context.Background(), ResolveRequest{
		Slots:     []Slot{{}, {}},
		Catalog:   items,
		Overrides: map[string]int64{"d": 10, "b": 3},
		Threshold: 300000,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	// a+b overshoots the slack window, so a+d is the only fit.
	got := slotIDs(res.Slots)
	sort.Strings(got)
	if diff := cmp.Diff([]string{"a", "d"}, got); diff != "" {
		t.Fatalf("unexpected slots (-want +got):\n%s", diff)
	}
	if res.TotalCost != 5010 {
		t.Fatalf("expected override-priced total 5010, got %d", res.TotalCost)
	}
	if diff := cmp.Diff(map[string]int64{"d": 10}, res.Overrides); diff != "" {
		t.Fatalf("unexpected overrides (-want +got):\n%s", diff)
	}
	for _, slot := range res.Slots {
		if slot.Item.ID == "d" && slot.Item.MarketCost != 9000 {
			t.Fatalf("slot should carry the catalog cost, got %d", slot.Item.MarketCost)
		}
	}
}

func TestResolveEmptyPinnedSlotIsNotFilled(t *testing.T) {
	coord := newTestCoordinator(t)
	items := coordinatorCatalog()

	res, err := coord.Resolve(context.Background(), ResolveRequest{
		Slots:     []Slot{{Pinned: true}, {}},
		Catalog:   items,
		Threshold: 200000,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Slots[0].Item != nil || !res.Slots[0].Pinned {
		t.Fatalf("empty pinned slot changed: %+v", res.Slots[0])
	}
	if res.Slots[1].Item == nil || res.Slots[1].Item.ID != "a" {
		t.Fatalf("expected a in the open slot, got %v", slotIDs(res.Slots))
	}
}

func TestResolveInvalidRequests(t *testing.T) {
	coord := newTestCoordinator(t)
	items := coordinatorCatalog()

	tests := []struct {
		name string
		req  ResolveRequest
	}{
		{name: "negative threshold", req: ResolveRequest{Slots: []Slot{{}}, Threshold: -1}},
		{name: "no slots", req: ResolveRequest{Threshold: 1}},
		{name: "threshold at int64 limit", req: ResolveRequest{Slots: make([]Slot, 5), Catalog: items, Threshold: math.MaxInt64}},
		{name: "too many slots", req: ResolveRequest{Slots: make([]Slot, 6), Threshold: 1}},
		{name: "negative override", req: ResolveRequest{Slots: []Slot{{}}, Threshold: 1, Overrides: map[string]int64{"a": -1}}},
		{
			name: "duplicate pin",
			req: ResolveRequest{
				Slots:     []Slot{{Item: itemPtr(items[0]), Pinned: true}, {Item: itemPtr(items[0]), Pinned: true}},
				Threshold: 1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := coord.Resolve(context.Background(), tt.req); !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}
