package selector

import (
	"math/rand/v2"
	"sort"
	"sync"
)

// Rand is the random source of the selector. *rand.Rand from math/rand/v2
// satisfies it.
type Rand interface {
	IntN(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// NewRand returns a seeded random source that is safe for concurrent use.
func NewRand(seed uint64) Rand {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Selection is a set of items meeting the threshold.
type Selection struct {
	Items      []EffectiveItem `json:"items"`
	TotalValue int64           `json:"totalValue"`
	TotalCost  int64           `json:"totalCost"`
}

// IDs lists the ids of the selected items.
func (s Selection) IDs() []string {
	ids := make([]string, len(s.Items))
	for i, item := range s.Items {
		ids[i] = item.ID
	}
	return ids
}

// Cheapest returns up to n feasible cells with the lowest cost. Cells with
// equal cost keep table order.
func Cheapest(t *Table, n int) []Cell {
	cells := t.FeasibleCells()
	sort.SliceStable(cells, func(a, b int) bool {
		return cells[a].Cost < cells[b].Cost
	})
	if len(cells) > n {
		cells = cells[:n]
	}
	return cells
}

// Pick draws one of the topChoices cheapest feasible cells uniformly and
// rebuilds its items.
func Pick(t *Table, topChoices int, rnd Rand) (Selection, error) {
	top := Cheapest(t, topChoices)
	if len(top) == 0 {
		return Selection{}, ErrNoSolution
	}
	cell := top[rnd.IntN(len(top))]

	items := t.Items(cell)
	return Selection{
		Items:      items,
		TotalValue: cell.Value,
		TotalCost:  cell.Cost,
	}, nil
}

func shuffle(items []EffectiveItem, rnd Rand) {
	for i := len(items) - 1; i > 0; i-- {
		j := rnd.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}
