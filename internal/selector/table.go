package selector

import (
	"context"
	"fmt"
	"math"
)

const unreachable = math.MaxInt64

// pathNode links one chosen candidate to the path it extended. Nodes are
// never modified once appended, so a cell keeps a valid path even after the
// predecessor cell improves. Cells are overwritten in place, which is why
// paths cannot be rebuilt from the final table alone.
//
// The arena grows by one node per cell improvement. Over shuffled candidates
// that stays near K*V*log(N); a sorted adversarial order without shuffling can
// reach N*K*V nodes.
type pathNode struct {
	item int32
	prev int32
}

// Table is the completed cost table of one search: for every item count c
// and exact value sum v, the cheapest cost of c distinct candidates.
type Table struct {
	items     []EffectiveItem
	threshold int64
	ceiling   int64
	maxItems  int

	cost  [][]int64
	node  [][]int32
	nodes []pathNode
}

// Cell addresses a reachable table entry.
type Cell struct {
	Count int
	Value int64
	Cost  int64
}

// BuildTable runs the bounded-cardinality knapsack over items. The value axis
// spans [0, threshold+slack]. The context is checked between candidates.
func BuildTable(ctx context.Context, items []EffectiveItem, threshold int64, maxItems int, slack int64) (*Table, error) {
	if threshold < 0 || slack < 0 || threshold > math.MaxInt32-slack {
		return nil, fmt.Errorf("%w: value axis for threshold %d and slack %d is out of range",
			ErrInvalidConfiguration, threshold, slack)
	}
	ceiling := threshold + slack
	width := int(ceiling) + 1

	t := &Table{
		items:     items,
		threshold: threshold,
		ceiling:   ceiling,
		maxItems:  maxItems,
		cost:      make([][]int64, maxItems+1),
		node:      make([][]int32, maxItems+1),
	}
	for c := 0; c <= maxItems; c++ {
		t.cost[c] = make([]int64, width)
		t.node[c] = make([]int32, width)
		for v := range t.cost[c] {
			t.cost[c][v] = unreachable
			t.node[c][v] = -1
		}
	}
	t.cost[0][0] = 0

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		base := item.BaseValue
		if base > ceiling {
			continue
		}
		// Counts run downwards so row c-1 still excludes candidate i.
		for c := maxItems; c >= 1; c-- {
			prevCost, prevNode := t.cost[c-1], t.node[c-1]
			curCost, curNode := t.cost[c], t.node[c]
			for v := base; v <= ceiling; v++ {
				pc := prevCost[v-base]
				if pc == unreachable {
					continue
				}
				if next := pc + item.MarketCost; next < curCost[v] {
					curCost[v] = next
					t.nodes = append(t.nodes, pathNode{item: int32(i), prev: prevNode[v-base]})
					curNode[v] = int32(len(t.nodes) - 1)
				}
			}
		}
	}
	return t, nil
}

// Cost returns the cheapest cost of count items summing to value.
func (t *Table) Cost(count int, value int64) (int64, bool) {
	if count < 0 || count > t.maxItems || value < 0 || value > t.ceiling {
		return 0, false
	}
	cost := t.cost[count][value]
	return cost, cost != unreachable
}

// FeasibleCells lists every reachable cell with at least one item whose value
// lies in [threshold, threshold+slack], by count then value.
func (t *Table) FeasibleCells() []Cell {
	var cells []Cell
	for c := 1; c <= t.maxItems; c++ {
		for v := t.threshold; v <= t.ceiling; v++ {
			if cost := t.cost[c][v]; cost != unreachable {
				cells = append(cells, Cell{Count: c, Value: v, Cost: cost})
			}
		}
	}
	return cells
}

// Items rebuilds the candidates behind a cell, in candidate order.
func (t *Table) Items(cell Cell) []EffectiveItem {
	if cell.Count <= 0 || cell.Count > t.maxItems || cell.Value < 0 || cell.Value > t.ceiling {
		return nil
	}
	var picked []EffectiveItem
	for n := t.node[cell.Count][cell.Value]; n >= 0; n = t.nodes[n].prev {
		picked = append(picked, t.items[t.nodes[n].item])
	}
	for l, r := 0, len(picked)-1; l < r; l, r = l+1, r-1 {
		picked[l], picked[r] = picked[r], picked[l]
	}
	return picked
}
