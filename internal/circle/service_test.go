package circle

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/iwvelando/cultist-circle/internal/catalog"
	"github.com/iwvelando/cultist-circle/internal/selector"
	"github.com/iwvelando/cultist-circle/pkg/testutil"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

var fetchedAt = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

type fakeCatalog struct {
	items []catalog.Item
	err   error
}

func (f fakeCatalog) Snapshot(context.Context) (catalog.Snapshot, error) {
	if f.err != nil {
		return catalog.Snapshot{}, f.err
	}
	return catalog.Snapshot{Items: f.items, FetchedAt: fetchedAt}, nil
}

func (f fakeCatalog) NextRefresh(snapshot catalog.Snapshot) time.Time {
	return snapshot.FetchedAt.Add(catalog.DefaultCacheTTL)
}

type fakeProvider map[string]Catalog

func (p fakeProvider) Mode(mode string) (Catalog, bool) {
	c, ok := p[mode]
	return c, ok
}

func testItems() []catalog.Item {
	return []catalog.Item{
		testutil.Item("a", 200000, 5000),
		testutil.Item("b", 150000, 4000),
		testutil.Item("c", 50000, 1000),
		testutil.Item("d", 100000, 9000),
	}
}

func newTestService(t *testing.T, provider CatalogProvider) *Service {
	t.Helper()
	optimizer, err := selector.NewOptimizer(zap.NewNop(), selector.DefaultPolicy(), selector.NewRand(7))
	if err != nil {
		t.Fatalf("NewOptimizer() error = %v", err)
	}
	return NewService(zap.NewNop(), provider, selector.NewCoordinator(zap.NewNop(), optimizer), Defaults{
		Mode:      catalog.ModePVE,
		Threshold: 350000,
		MaxItems:  2,
	})
}

func responseIDs(resp Response) []string {
	var ids []string
	for _, slot := range resp.Slots {
		if slot.Item != nil {
			ids = append(ids, slot.Item.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func TestResolveUsesDefaults(t *testing.T) {
	svc := newTestService(t, fakeProvider{catalog.ModePVE: fakeCatalog{items: testItems()}})

	before := promtest.ToFloat64(resolveTotal.WithLabelValues(catalog.ModePVE, "ok"))
	resp, err := svc.Resolve(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if diff := cmp.Diff([]string{"a", "b"}, responseIDs(resp)); diff != "" {
		t.Fatalf("unexpected selection (-want +got):\n%s", diff)
	}
	if resp.Mode != catalog.ModePVE || resp.Threshold != 350000 {
		t.Errorf("unexpected mode/threshold %s/%d", resp.Mode, resp.Threshold)
	}
	if !resp.ThresholdMet || resp.Remaining != 0 || resp.TotalCost != 9000 {
		t.Errorf("unexpected totals %+v", resp)
	}
	if !resp.FetchedAt.Equal(fetchedAt) || !resp.NextRefresh.Equal(fetchedAt.Add(5*time.Minute)) {
		t.Errorf("unexpected snapshot times %v/%v", resp.FetchedAt, resp.NextRefresh)
	}
	if got := promtest.ToFloat64(resolveTotal.WithLabelValues(catalog.ModePVE, "ok")); got != before+1 {
		t.Errorf("expected ok counter to increase, got %v -> %v", before, got)
	}
	if got := promtest.ToFloat64(catalogItems.WithLabelValues(catalog.ModePVE)); got != 4 {
		t.Errorf("expected catalog gauge 4, got %v", got)
	}
}

func TestResolveWithPinnedSlotsAndOverrides(t *testing.T) {
	svc := newTestService(t, fakeProvider{catalog.ModePVP: fakeCatalog{items: testItems()}})
	threshold := int64(300000)

	resp, err := svc.Resolve(context.Background(), Request{
		Mode:      catalog.ModePVP,
		Threshold: &threshold,
		Slots: []SlotRequest{
			{ID: "a", Pinned: true},
			{ID: "stale-id"},
		},
		Excluded:  []string{"b"},
		Overrides: map[string]int64{"d": 10, "c": 1},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if resp.Slots[0].Item.ID != "a" || !resp.Slots[0].Pinned {
		t.Fatalf("pinned slot changed: %+v", resp.Slots[0])
	}
	if resp.Slots[1].Item == nil || resp.Slots[1].Item.ID != "d" {
		t.Fatalf("expected d in the open slot, got %v", responseIDs(resp))
	}
	if diff := cmp.Diff(map[string]int64{"d": 10}, resp.Overrides); diff != "" {
		t.Errorf("unexpected overrides (-want +got):\n%s", diff)
	}
	if resp.TotalCost != 5010 || resp.TotalValue != 300000 {
		t.Errorf("unexpected totals %d/%d", resp.TotalValue, resp.TotalCost)
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name     string
		provider fakeProvider
		req      Request
		wantErr  error
		status   int
		outcome  string
	}{
		{
			name:     "unknown mode",
			provider: fakeProvider{},
			req:      Request{Mode: "arena"},
			wantErr:  selector.ErrInvalidConfiguration,
			status:   http.StatusBadRequest,
			outcome:  "invalid",
		},
		{
			name:     "catalog failure",
			provider: fakeProvider{catalog.ModePVE: fakeCatalog{err: catalog.ErrUpstream}},
			wantErr:  ErrCatalog,
			status:   http.StatusBadGateway,
			outcome:  "catalog_error",
		},
		{
			name:     "unknown pinned item",
			provider: fakeProvider{catalog.ModePVE: fakeCatalog{items: testItems()}},
			req:      Request{Slots: []SlotRequest{{ID: "zzz", Pinned: true}, {}}},
			wantErr:  selector.ErrInvalidConfiguration,
			status:   http.StatusBadRequest,
			outcome:  "invalid",
		},
		{
			name:     "threshold at int64 limit",
			provider: fakeProvider{catalog.ModePVE: fakeCatalog{items: testItems()}},
			req:      Request{Threshold: int64Ptr(math.MaxInt64)},
			wantErr:  selector.ErrInvalidConfiguration,
			status:   http.StatusBadRequest,
			outcome:  "invalid",
		},
		{
			name:     "unreachable threshold",
			provider: fakeProvider{catalog.ModePVE: fakeCatalog{items: testItems()}},
			req:      Request{Slots: []SlotRequest{{}}},
			wantErr:  selector.ErrNoSolution,
			status:   http.StatusUnprocessableEntity,
			outcome:  "no_solution",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, tt.provider)
			_, err := svc.Resolve(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if got := StatusCode(err); got != tt.status {
				t.Errorf("StatusCode() = %d, want %d", got, tt.status)
			}
			if got := outcomeLabel(err); got != tt.outcome {
				t.Errorf("outcomeLabel() = %s, want %s", got, tt.outcome)
			}
		})
	}
}

func TestResolveCatalogFailureKeepsCause(t *testing.T) {
	svc := newTestService(t, fakeProvider{catalog.ModePVE: fakeCatalog{err: catalog.ErrUpstream}})
	_, err := svc.Resolve(context.Background(), Request{})
	if !errors.Is(err, catalog.ErrUpstream) {
		t.Fatalf("expected the upstream cause to be preserved, got %v", err)
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: nil, want: http.StatusOK},
		{err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.want {
			t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestItems(t *testing.T) {
	items := testItems()
	items[2].Tags = []string{"jewelry"}
	items[3].Tags = []string{"jewelry"}
	svc := newTestService(t, fakeProvider{catalog.ModePVE: fakeCatalog{items: items}})

	res, err := svc.Items(context.Background(), "", catalog.SortByBaseValue, []string{"jewelry"})
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	ids := make([]string, len(res.Items))
	for i, item := range res.Items {
		ids[i] = item.ID
	}
	if diff := cmp.Diff([]string{"c", "d"}, ids); diff != "" {
		t.Fatalf("unexpected items (-want +got):\n%s", diff)
	}
	if res.Mode != catalog.ModePVE {
		t.Errorf("expected default mode, got %s", res.Mode)
	}
}
