// Package circle resolves cultist circle requests against live catalogs.
package circle

import (
	"context"
	"fmt"
	"time"

	"github.com/iwvelando/cultist-circle/internal/catalog"
	"github.com/iwvelando/cultist-circle/internal/selector"
	"go.uber.org/zap"
)

// Catalog serves cached snapshots for one game mode.
type Catalog interface {
	Snapshot(ctx context.Context) (catalog.Snapshot, error)
	NextRefresh(snapshot catalog.Snapshot) time.Time
}

// CatalogProvider looks catalogs up by game mode.
type CatalogProvider interface {
	Mode(mode string) (Catalog, bool)
}

// Defaults fill request fields the caller left out.
type Defaults struct {
	Mode       string
	Threshold  int64
	MaxItems   int
	Categories []string
}

// SlotRequest names the item currently in a slot. An empty ID is an empty
// slot.
type SlotRequest struct {
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	Pinned bool   `json:"pinned,omitempty" yaml:"pinned,omitempty"`
}

// Request is one resolve call as received from a surface.
type Request struct {
	Mode       string           `json:"mode,omitempty" yaml:"mode,omitempty"`
	Threshold  *int64           `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Slots      []SlotRequest    `json:"slots,omitempty" yaml:"slots,omitempty"`
	Excluded   []string         `json:"excluded,omitempty" yaml:"excluded,omitempty"`
	Overrides  map[string]int64 `json:"overrides,omitempty" yaml:"overrides,omitempty"`
	Categories []string         `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// Response is the resolved circle.
type Response struct {
	Mode         string           `json:"mode"`
	Slots        []selector.Slot  `json:"slots"`
	Overrides    map[string]int64 `json:"overrides"`
	Threshold    int64            `json:"threshold"`
	TotalValue   int64            `json:"totalValue"`
	TotalCost    int64            `json:"totalCost"`
	ThresholdMet bool             `json:"thresholdMet"`
	Remaining    int64            `json:"remaining"`
	Candidates   int              `json:"candidates"`
	FetchedAt    time.Time        `json:"fetchedAt"`
	NextRefresh  time.Time        `json:"nextRefresh"`
}

// Service resolves requests for every configured game mode.
type Service struct {
	catalogs    CatalogProvider
	coordinator *selector.Coordinator
	defaults    Defaults
	logger      *zap.Logger
}

// NewService constructs a Service.
func NewService(logger *zap.Logger, catalogs CatalogProvider, coordinator *selector.Coordinator, defaults Defaults) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.Mode == "" {
		defaults.Mode = catalog.ModePVE
	}
	return &Service{
		catalogs:    catalogs,
		coordinator: coordinator,
		defaults:    defaults,
		logger:      logger,
	}
}

func (s *Service) snapshot(ctx context.Context, mode string) (catalog.Snapshot, Catalog, error) {
	if mode == "" {
		mode = s.defaults.Mode
	}
	cat, ok := s.catalogs.Mode(mode)
	if !ok {
		return catalog.Snapshot{}, nil, fmt.Errorf("%w: unknown game mode %q", selector.ErrInvalidConfiguration, mode)
	}
	snapshot, err := cat.Snapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return catalog.Snapshot{}, nil, ctx.Err()
		}
		return catalog.Snapshot{}, nil, fmt.Errorf("%w: %w", ErrCatalog, err)
	}
	catalogItems.WithLabelValues(mode).Set(float64(len(snapshot.Items)))
	return snapshot, cat, nil
}

// Resolve loads the catalog for the request's mode and fills its open slots.
func (s *Service) Resolve(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	mode := req.Mode
	if mode == "" {
		mode = s.defaults.Mode
	}

	resp, err := s.resolve(ctx, mode, req)
	s.record(mode, start, err)
	return resp, err
}

// prepared is a request bound to a catalog snapshot, ready for the
// coordinator.
type prepared struct {
	mode     string
	resolve  selector.ResolveRequest
	snapshot catalog.Snapshot
	catalog  Catalog
}

func (s *Service) prepare(ctx context.Context, mode string, req Request) (prepared, error) {
	threshold := s.defaults.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	categories := req.Categories
	if len(categories) == 0 {
		categories = s.defaults.Categories
	}

	snapshot, cat, err := s.snapshot(ctx, mode)
	if err != nil {
		return prepared{}, err
	}

	slots, err := s.buildSlots(snapshot.Index(), req.Slots)
	if err != nil {
		return prepared{}, err
	}

	return prepared{
		mode: mode,
		resolve: selector.ResolveRequest{
			Slots:      slots,
			Catalog:    snapshot.Items,
			Excluded:   selector.NewIDSet(req.Excluded...),
			Overrides:  req.Overrides,
			Threshold:  threshold,
			Categories: categories,
		},
		snapshot: snapshot,
		catalog:  cat,
	}, nil
}

func (s *Service) respond(p prepared, res selector.Resolution) Response {
	candidatePool.Observe(float64(res.Candidates))

	threshold := p.resolve.Threshold
	remaining := threshold - res.TotalValue
	if remaining < 0 {
		remaining = 0
	}
	resp := Response{
		Mode:         p.mode,
		Slots:        res.Slots,
		Overrides:    res.Overrides,
		Threshold:    threshold,
		TotalValue:   res.TotalValue,
		TotalCost:    res.TotalCost,
		ThresholdMet: res.TotalValue >= threshold,
		Remaining:    remaining,
		Candidates:   res.Candidates,
		FetchedAt:    p.snapshot.FetchedAt,
		NextRefresh:  p.catalog.NextRefresh(p.snapshot),
	}

	s.logger.Debug("resolved circle",
		zap.String("op", "circle.Service.respond"),
		zap.String("mode", p.mode),
		zap.Int64("threshold", threshold),
		zap.Int64("totalValue", resp.TotalValue),
		zap.Int64("totalCost", resp.TotalCost),
		zap.Int("candidates", resp.Candidates),
	)
	return resp
}

func (s *Service) resolve(ctx context.Context, mode string, req Request) (Response, error) {
	p, err := s.prepare(ctx, mode, req)
	if err != nil {
		return Response{}, err
	}
	res, err := s.coordinator.Resolve(ctx, p.resolve)
	if err != nil {
		return Response{}, err
	}
	return s.respond(p, res), nil
}

func (s *Service) record(mode string, start time.Time, err error) {
	outcome := outcomeLabel(err)
	resolveTotal.WithLabelValues(mode, outcome).Inc()
	resolveLatency.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Info("resolve failed",
			zap.String("op", "circle.Service.Resolve"),
			zap.String("mode", mode),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	}
}

// buildSlots maps requested ids onto catalog items. Unknown ids in open slots
// are dropped since those slots get refilled anyway; a pinned unknown id is an
// error.
func (s *Service) buildSlots(index map[string]catalog.Item, requested []SlotRequest) ([]selector.Slot, error) {
	if len(requested) == 0 {
		return make([]selector.Slot, s.defaults.MaxItems), nil
	}

	slots := make([]selector.Slot, len(requested))
	for i, r := range requested {
		slots[i].Pinned = r.Pinned
		if r.ID == "" {
			continue
		}
		item, ok := index[r.ID]
		if !ok {
			if r.Pinned {
				return nil, fmt.Errorf("%w: pinned item %q is not in the catalog", selector.ErrInvalidConfiguration, r.ID)
			}
			s.logger.Debug("dropping unknown item from open slot",
				zap.String("op", "circle.Service.buildSlots"),
				zap.String("id", r.ID),
			)
			continue
		}
		slots[i].Item = &item
	}
	return slots, nil
}

// ItemsResult is a sorted catalog listing.
type ItemsResult struct {
	Mode        string         `json:"mode"`
	Items       []catalog.Item `json:"items"`
	FetchedAt   time.Time      `json:"fetchedAt"`
	NextRefresh time.Time      `json:"nextRefresh"`
}

// Items lists the catalog for mode restricted to categories and sorted by
// order.
func (s *Service) Items(ctx context.Context, mode, order string, categories []string) (ItemsResult, error) {
	if mode == "" {
		mode = s.defaults.Mode
	}
	snapshot, cat, err := s.snapshot(ctx, mode)
	if err != nil {
		return ItemsResult{}, err
	}
	items := catalog.SortItems(catalog.FilterByCategories(snapshot.Items, categories), order)
	return ItemsResult{
		Mode:        mode,
		Items:       items,
		FetchedAt:   snapshot.FetchedAt,
		NextRefresh: cat.NextRefresh(snapshot),
	}, nil
}
