package selector

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/iwvelando/cultist-circle/internal/catalog"
	"go.uber.org/zap"
)

// Request is one residual search over already filtered, priced candidates.
type Request struct {
	Candidates []EffectiveItem
	Threshold  int64
	MaxItems   int
	Slack      int64
}

// Optimizer finds near-cheapest selections meeting a threshold.
type Optimizer struct {
	policy Policy
	rand   Rand
	logger *zap.Logger
}

// NewOptimizer constructs an Optimizer. A nil rnd gets a randomly seeded
// source.
func NewOptimizer(logger *zap.Logger, policy Policy, rnd Rand) (*Optimizer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy.Normalize()
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if rnd == nil {
		rnd = NewRand(rand.Uint64())
	}
	return &Optimizer{policy: policy, rand: rnd, logger: logger}, nil
}

// Policy returns the normalized policy in use.
func (o *Optimizer) Policy() Policy {
	return o.policy
}

// Optimize filters the raw candidates, applies the price overrides and picks
// one of the cheapest selections of at most maxItems items whose base value
// reaches threshold.
func (o *Optimizer) Optimize(ctx context.Context, candidates []catalog.Item, threshold int64, maxItems int, overrides map[string]int64) (Selection, error) {
	if err := validateOverrides(overrides); err != nil {
		return Selection{}, err
	}
	if err := o.policy.CheckValueAxis(threshold, o.policy.Slack); err != nil {
		return Selection{}, err
	}
	filtered := Filter(candidates, o.policy.FilterOptions(threshold, nil, nil, nil))
	return o.Solve(ctx, Request{
		Candidates: ResolvePrices(filtered, overrides),
		Threshold:  threshold,
		MaxItems:   maxItems,
		Slack:      o.policy.Slack,
	})
}

// Solve runs the search on prepared candidates.
func (o *Optimizer) Solve(ctx context.Context, req Request) (Selection, error) {
	if err := o.validate(req); err != nil {
		return Selection{}, err
	}
	if req.Threshold == 0 {
		return Selection{Items: []EffectiveItem{}}, nil
	}
	if req.MaxItems == 0 || len(req.Candidates) == 0 {
		return Selection{}, ErrNoSolution
	}

	candidates := append([]EffectiveItem(nil), req.Candidates...)
	if o.policy.Shuffle {
		shuffle(candidates, o.rand)
	}

	start := time.Now()
	table, err := BuildTable(ctx, candidates, req.Threshold, req.MaxItems, req.Slack)
	if err != nil {
		return Selection{}, err
	}
	selection, err := Pick(table, o.policy.TopChoices, o.rand)

	o.logger.Debug("search finished",
		zap.String("op", "selector.Optimizer.Solve"),
		zap.Int("candidates", len(candidates)),
		zap.Int64("threshold", req.Threshold),
		zap.Int("maxItems", req.MaxItems),
		zap.Int("pathNodes", len(table.nodes)),
		zap.Duration("duration", time.Since(start)),
		zap.Bool("solved", err == nil),
	)
	return selection, err
}

func (o *Optimizer) validate(req Request) error {
	if req.Threshold < 0 {
		return fmt.Errorf("%w: threshold must be non-negative, got %d", ErrInvalidConfiguration, req.Threshold)
	}
	if req.MaxItems < 0 {
		return fmt.Errorf("%w: maxItems must be non-negative, got %d", ErrInvalidConfiguration, req.MaxItems)
	}
	if req.MaxItems > o.policy.MaxSlots {
		return fmt.Errorf("%w: maxItems %d exceeds the %d available slots", ErrInvalidConfiguration, req.MaxItems, o.policy.MaxSlots)
	}
	if req.Slack < 0 {
		return fmt.Errorf("%w: slack must be non-negative, got %d", ErrInvalidConfiguration, req.Slack)
	}
	if err := o.policy.CheckValueAxis(req.Threshold, req.Slack); err != nil {
		return err
	}

	seen := make(IDSet, len(req.Candidates))
	for _, item := range req.Candidates {
		if seen.Has(item.ID) {
			return fmt.Errorf("%w: duplicate candidate %s", ErrInvalidConfiguration, item.ID)
		}
		seen[item.ID] = struct{}{}
		if item.MarketCost < 0 || item.BaseValue < 0 {
			return fmt.Errorf("%w: candidate %s has a negative value or cost", ErrInvalidConfiguration, item.ID)
		}
	}
	return nil
}
