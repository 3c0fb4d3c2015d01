package topsort

import "strings"

// CycleError reports a sort that stalled with edges left over. The
// residual always contains at least one directed cycle; Cycle spells one
// of them out as a closed walk.
type CycleError struct {
	// Edges is the residual the sort could not peel, sorted by source
	// then sink, in the graph's original orientation regardless of the
	// sort direction.
	Edges []Edge

	// Cycle is a closed walk through the residual: consecutive entries
	// are joined by residual edges and the last entry repeats the first.
	// The walk is chosen deterministically, always starting at the
	// smallest node of the residual's cyclic core and stepping to the
	// smallest successor. It is one witness, not necessarily the
	// shortest cycle.
	Cycle []string
}

func (e *CycleError) Error() string {
	return "topsort: cycle detected: " + strings.Join(e.Cycle, " -> ")
}

// Unwrap makes errors.Is(err, ErrCycleDetected) see through the report.
func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// NewCycleError builds the report for a non-empty residual edge set.
// Storage backends call this with the rows their working table could not
// drain, so every implementation produces the identical report for the
// same graph.
func NewCycleError(residual []Edge) *CycleError {
	edges := make([]Edge, len(residual))
	copy(edges, residual)
	sortEdges(edges)
	return &CycleError{Edges: edges, Cycle: witnessCycle(edges)}
}

// witnessCycle extracts one deterministic closed walk from a residual
// known to contain a cycle.
func witnessCycle(residual []Edge) []string {
	// Trim to the cyclic core. The residual may carry chains hanging off
	// its cycles, edges whose source nothing points at or whose sink
	// points at nothing; dropping them repeatedly leaves only edges
	// where every source is also a sink and vice versa.
	core := make(map[Edge]struct{}, len(residual))
	for _, e := range residual {
		core[e] = struct{}{}
	}
	for {
		sources := make(map[string]struct{}, len(core))
		sinks := make(map[string]struct{}, len(core))
		for e := range core {
			sources[e.Source] = struct{}{}
			sinks[e.Sink] = struct{}{}
		}
		trimmed := false
		for e := range core {
			if _, ok := sinks[e.Source]; !ok {
				delete(core, e)
				trimmed = true
				continue
			}
			if _, ok := sources[e.Sink]; !ok {
				delete(core, e)
				trimmed = true
			}
		}
		if !trimmed {
			break
		}
	}

	// Map every core source to its smallest sink, then walk from the
	// smallest node until one repeats; the repeated node closes the
	// cycle. Every sink in the core is also a source, so the walk never
	// dead-ends.
	next := make(map[string]string, len(core))
	for e := range core {
		if sink, ok := next[e.Source]; !ok || e.Sink < sink {
			next[e.Source] = e.Sink
		}
	}
	start, found := "", false
	for node := range next {
		if !found || node < start {
			start, found = node, true
		}
	}
	seen := make(map[string]int, len(next))
	var walk []string
	for node := start; ; node = next[node] {
		if at, ok := seen[node]; ok {
			return append(walk[at:], node)
		}
		seen[node] = len(walk)
		walk = append(walk, node)
	}
}
