// Package stategraph implements Graph: the directed multigraph of
// (state, action) → state transitions recorded during exploration
// (spec.md §3, §4.4). It owns all state and transition records; World only
// holds the live, mutable context and adapters.
package stategraph

import (
	"time"

	"venomqa.dev/venomqa/fingerprint"
	"venomqa.dev/venomqa/world"
)

// StateID aliases fingerprint.StateID for readability within this package.
type StateID = fingerprint.StateID

// InvariantResult records one invariant's outcome on a single transition.
type InvariantResult struct {
	InvariantName string
	Passed        bool
	Message       string
}

// ResponseSummary is the small, bounded slice of a ResponseView kept on a
// Transition — never the full body (spec.md §6.4: "body excerpt bounded to
// 4 KiB").
type ResponseSummary struct {
	Status      int
	BodyExcerpt string
}

// Transition is one recorded (state, action) → state edge.
type Transition struct {
	FromState        StateID
	ActionName       string
	ToState          StateID
	Success          bool
	ElapsedMs        int64
	Response         ResponseSummary
	InvariantResults []InvariantResult
	Timestamp        time.Time
}

// key identifies a transition for dedup, per spec.md §4.4: "two transitions
// with identical (from, action, to) are stored once; counts tracked
// separately."
type key struct {
	from   StateID
	action string
	to     StateID
}

// node is one graph vertex: a discovered state, its checkpoint token, and
// which declared actions remain unexplored from it.
type node struct {
	id        StateID
	summary   map[string]interface{}
	token     *world.Token
	explored  map[string]bool // action name -> explored
	declared  []string        // actions whose preconditions were satisfied at discovery time
	visits    int
}

// Graph is the exploration state graph. Not safe for concurrent use — it is
// owned by exactly one scheduler loop (spec.md §5: single-threaded
// cooperative scheduler).
type Graph struct {
	nodes       map[StateID]*node
	transitions map[key]*Transition
	counts      map[key]int
	adjacency   map[StateID][]key // outgoing edges, in insertion order
	initial     StateID
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		nodes:       make(map[StateID]*node),
		transitions: make(map[key]*Transition),
		counts:      make(map[key]int),
		adjacency:   make(map[StateID][]key),
	}
}

// AddState registers a newly discovered state with its fingerprint
// observation summary. A no-op if the state already exists.
func (g *Graph) AddState(id StateID, summary map[string]interface{}) {
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &node{id: id, summary: summary, explored: make(map[string]bool)}
}

// SetInitialState records which state ShortestPath treats as the
// exploration root; the scheduler calls this once, right after discovering
// the initial state.
func (g *Graph) SetInitialState(id StateID) { g.initial = id }

// InitialState returns the state recorded via SetInitialState.
func (g *Graph) InitialState() StateID { return g.initial }

// HasState reports whether id has been discovered.
func (g *Graph) HasState(id StateID) bool {
	_, ok := g.nodes[id]
	return ok
}

// SetToken stores the checkpoint token that restores the world to id.
func (g *Graph) SetToken(id StateID, tok *world.Token) {
	if n, ok := g.nodes[id]; ok {
		n.token = tok
	}
}

// Token returns the checkpoint token for id, or nil if unknown.
func (g *Graph) Token(id StateID) *world.Token {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return n.token
}

// SetDeclaredActions records which actions are eligible at id (their
// preconditions are satisfied on at least one path reaching it), seeding
// the node's unexplored index (spec.md §4.4).
func (g *Graph) SetDeclaredActions(id StateID, actions []string) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	n.declared = append([]string(nil), actions...)
}

// AddTransition records t, deduplicating by (from, action, to); repeat
// observations of the same edge only increment its count.
func (g *Graph) AddTransition(t Transition) {
	k := key{from: t.FromState, action: t.ActionName, to: t.ToState}
	if _, exists := g.transitions[k]; !exists {
		cp := t
		g.transitions[k] = &cp
		g.adjacency[t.FromState] = append(g.adjacency[t.FromState], k)
	}
	g.counts[k]++
	if n, ok := g.nodes[t.FromState]; ok {
		n.visits++
	}
}

// TransitionCount returns how many times (from, action, to) was observed.
func (g *Graph) TransitionCount(from StateID, action string, to StateID) int {
	return g.counts[key{from: from, action: action, to: to}]
}

// ActionFireCount returns how many times action has fired anywhere in the
// graph, used by the CoverageGuided strategy to prioritize under-fired
// actions (spec.md §4.5).
func (g *Graph) ActionFireCount(action string) int {
	total := 0
	for k, n := range g.counts {
		if k.action == action {
			total += n
		}
	}
	return total
}

// MarkExplored flags action as explored at state, removing it from
// UnexploredAt's result.
func (g *Graph) MarkExplored(state StateID, action string) {
	if n, ok := g.nodes[state]; ok {
		n.explored[action] = true
	}
}

// UnexploredAt returns declared actions at state not yet marked explored, in
// declaration order.
func (g *Graph) UnexploredAt(state StateID) []string {
	n, ok := g.nodes[state]
	if !ok {
		return nil
	}
	var out []string
	for _, a := range n.declared {
		if !n.explored[a] {
			out = append(out, a)
		}
	}
	return out
}

// Visits returns how many outgoing transitions have fired from state, used
// by the CoverageGuided strategy's state-novelty tiebreak.
func (g *Graph) Visits(state StateID) int {
	if n, ok := g.nodes[state]; ok {
		return n.visits
	}
	return 0
}

// StateCount returns the number of discovered states.
func (g *Graph) StateCount() int { return len(g.nodes) }

// TransitionsFrom returns the distinct outgoing transitions recorded at
// state, in discovery order.
func (g *Graph) TransitionsFrom(state StateID) []Transition {
	keys := g.adjacency[state]
	out := make([]Transition, 0, len(keys))
	for _, k := range keys {
		out = append(out, *g.transitions[k])
	}
	return out
}

// ShortestPath returns the shortest sequence of transitions from `from` to
// `to`, BFS over the recorded edges, or nil if unreachable. Ties are broken
// by discovery order (stable, since adjacency lists preserve insertion
// order).
func (g *Graph) ShortestPath(from, to StateID) []Transition {
	if from == to {
		return nil
	}
	type frame struct {
		state StateID
		path  []Transition
	}
	visited := map[StateID]bool{from: true}
	queue := []frame{{state: from}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, k := range g.adjacency[cur.state] {
			t := g.transitions[k]
			if visited[t.ToState] {
				continue
			}
			path := append(append([]Transition(nil), cur.path...), *t)
			if t.ToState == to {
				return path
			}
			visited[t.ToState] = true
			queue = append(queue, frame{state: t.ToState, path: path})
		}
	}
	return nil
}
