// Package strategy implements the pluggable exploration policies that pick
// the next (state, action) pair to expand (spec.md §4.5): BFS, DFS, Random,
// CoverageGuided, and Weighted.
package strategy

import (
	"math/rand"

	"venomqa.dev/venomqa/stategraph"
)

// Pair is one unexpanded (state, action) candidate in the frontier.
type Pair struct {
	State  stategraph.StateID
	Action string
}

// Frontier holds pending (state, action) pairs in discovery/insertion order.
// Strategies pick from and remove elements of it; the scheduler appends to
// it as new states are discovered and their precondition-satisfied actions
// are enqueued.
type Frontier struct {
	pairs []Pair
}

// NewFrontier creates an empty Frontier.
func NewFrontier() *Frontier { return &Frontier{} }

// Enqueue appends pairs in order.
func (f *Frontier) Enqueue(pairs ...Pair) {
	f.pairs = append(f.pairs, pairs...)
}

// Len reports how many pairs remain.
func (f *Frontier) Len() int { return len(f.pairs) }

func (f *Frontier) removeAt(i int) Pair {
	p := f.pairs[i]
	f.pairs = append(f.pairs[:i], f.pairs[i+1:]...)
	return p
}

// Strategy picks the next (state, action) to expand, or reports exhaustion.
type Strategy interface {
	Pick(g *stategraph.Graph, f *Frontier) (Pair, bool)
}

// BFS expands the frontier first-in-first-out.
type BFS struct{}

func (BFS) Pick(_ *stategraph.Graph, f *Frontier) (Pair, bool) {
	if f.Len() == 0 {
		return Pair{}, false
	}
	return f.removeAt(0), true
}

// DFS expands the frontier last-in-first-out. Required whenever any adapter
// in the world declares StackOnlyRollback (spec.md §4.1, §4.5).
type DFS struct{}

func (DFS) Pick(_ *stategraph.Graph, f *Frontier) (Pair, bool) {
	if f.Len() == 0 {
		return Pair{}, false
	}
	return f.removeAt(f.Len() - 1), true
}

// Random picks uniformly from the frontier, seeded for reproducibility
// (spec.md §4.5, §8.1 property 1: determinism under fixed seed).
type Random struct {
	rng *rand.Rand
}

// NewRandom builds a Random strategy seeded with seed.
func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (s *Random) Pick(_ *stategraph.Graph, f *Frontier) (Pair, bool) {
	if f.Len() == 0 {
		return Pair{}, false
	}
	i := s.rng.Intn(f.Len())
	return f.removeAt(i), true
}

// CoverageGuided prioritizes the (state, action) pair whose action has
// fired fewest times globally, breaking ties by state novelty (fewest
// visits at that state), then by insertion order.
type CoverageGuided struct{}

func (CoverageGuided) Pick(g *stategraph.Graph, f *Frontier) (Pair, bool) {
	if f.Len() == 0 {
		return Pair{}, false
	}
	best := 0
	for i := 1; i < f.Len(); i++ {
		if less := lessCoverage(g, f.pairs[i], f.pairs[best]); less {
			best = i
		}
	}
	return f.removeAt(best), true
}

func lessCoverage(g *stategraph.Graph, a, b Pair) bool {
	fa, fb := g.ActionFireCount(a.Action), g.ActionFireCount(b.Action)
	if fa != fb {
		return fa < fb
	}
	va, vb := g.Visits(a.State), g.Visits(b.State)
	return va < vb
}

// Weighted picks proportional to each action's declared weight among the
// frontier's pairs. An action with no entry in Weights defaults to weight 1.
type Weighted struct {
	Weights map[string]float64
	rng     *rand.Rand
}

// NewWeighted builds a Weighted strategy seeded with seed.
func NewWeighted(weights map[string]float64, seed int64) *Weighted {
	return &Weighted{Weights: weights, rng: rand.New(rand.NewSource(seed))}
}

func (s *Weighted) weight(action string) float64 {
	if w, ok := s.Weights[action]; ok {
		return w
	}
	return 1
}

func (s *Weighted) Pick(_ *stategraph.Graph, f *Frontier) (Pair, bool) {
	if f.Len() == 0 {
		return Pair{}, false
	}
	total := 0.0
	for _, p := range f.pairs {
		total += s.weight(p.Action)
	}
	if total <= 0 {
		return f.removeAt(0), true
	}
	r := s.rng.Float64() * total
	acc := 0.0
	for i, p := range f.pairs {
		acc += s.weight(p.Action)
		if r < acc {
			return f.removeAt(i), true
		}
	}
	return f.removeAt(f.Len() - 1), true
}
