package topsort

import (
	"maps"
	"slices"
)

// Sort is a single-pass cursor over the generations of one topological
// ordering. It peels a private copy of the edge set taken when the sort
// began, so later mutation of the DAG and other concurrent sorts are
// invisible to it.
//
// Next advances to the following generation; Generation returns it; Err
// reports, after Next has returned false, whether iteration stopped on a
// cycle rather than on exhaustion. Abandoning the cursor early is safe.
type Sort struct {
	working map[Edge]struct{}
	reverse bool
	ready   map[string]struct{}
	gen     []string
	err     error
	done    bool
	started bool
}

// SortForward begins a forward generational sort, optionally restricted
// to the subgraph reachable from starts and leading into endpoints (nil
// slices mean no restriction). The first generation holds the nodes with
// no incoming edge; each later one holds the nodes released by removing
// the previous generation's outgoing edges.
func (d *DAG) SortForward(starts, endpoints []string) *Sort {
	return newSort(d.edges, starts, endpoints, false)
}

// SortReverse is SortForward with the edge direction inverted: sinks
// come out before their sources. The starts and endpoints filters keep
// their forward meaning, selecting the same subgraph either way.
func (d *DAG) SortReverse(starts, endpoints []string) *Sort {
	return newSort(d.edges, starts, endpoints, true)
}

func newSort(edges map[Edge]struct{}, starts, endpoints []string, reverse bool) *Sort {
	return &Sort{working: restrict(edges, starts, endpoints), reverse: reverse}
}

// tail and head give the peel orientation. A forward sort consumes an
// edge from tail Source to head Sink; a reverse sort swaps them. The
// working set always stores edges in their original orientation.
func (s *Sort) tail(e Edge) string {
	if s.reverse {
		return e.Sink
	}
	return e.Source
}

func (s *Sort) head(e Edge) string {
	if s.reverse {
		return e.Source
	}
	return e.Sink
}

// Next advances the cursor. It returns false once no generation remains,
// either because the working set is exhausted or because the remainder
// is cyclic; Err tells the two apart.
func (s *Sort) Next() bool {
	if s.done {
		return false
	}
	var ready map[string]struct{}
	if !s.started {
		s.started = true
		ready = s.initial()
	} else {
		ready = s.peel()
	}
	if len(ready) == 0 {
		s.done = true
		s.ready = nil
		s.gen = nil
		if len(s.working) > 0 {
			s.err = NewCycleError(s.residual())
		}
		return false
	}
	s.ready = ready
	s.gen = slices.Sorted(maps.Keys(ready))
	return true
}

// Generation returns the generation the last successful Next advanced
// to, as a sorted slice of nodes.
func (s *Sort) Generation() []string { return s.gen }

// Err returns nil after a clean exhaustion, or the *CycleError that
// stopped iteration. It is meaningful once Next has returned false.
func (s *Sort) Err() error { return s.err }

// Close abandons the sort. It exists so *Sort satisfies Generations;
// an in-memory cursor has nothing to release.
func (s *Sort) Close() error {
	s.done = true
	return nil
}

// Collect drains the cursor and returns every remaining generation. On a
// cycle, the generations yielded before the failure are returned
// together with the error.
func (s *Sort) Collect() ([][]string, error) {
	return Collect(s)
}

// initial finds the nodes that head no edge at all: they open the order.
func (s *Sort) initial() map[string]struct{} {
	heads := make(map[string]struct{}, len(s.working))
	for e := range s.working {
		heads[s.head(e)] = struct{}{}
	}
	ready := make(map[string]struct{})
	for e := range s.working {
		t := s.tail(e)
		if _, ok := heads[t]; !ok {
			ready[t] = struct{}{}
		}
	}
	return ready
}

// peel removes the edges leaving the current generation and collects the
// nodes those removals released. Only heads of just-removed edges can
// become ready, and one qualifies exactly when no surviving edge still
// points at it.
func (s *Sort) peel() map[string]struct{} {
	var removed []Edge
	for e := range s.working {
		if _, ok := s.ready[s.tail(e)]; ok {
			removed = append(removed, e)
		}
	}
	for _, e := range removed {
		delete(s.working, e)
	}
	ready := make(map[string]struct{})
	for _, e := range removed {
		if h := s.head(e); !s.headed(h) {
			ready[h] = struct{}{}
		}
	}
	return ready
}

// headed reports whether any surviving edge still points at node.
func (s *Sort) headed(node string) bool {
	for e := range s.working {
		if s.head(e) == node {
			return true
		}
	}
	return false
}

// residual snapshots the unpeelable remainder in original orientation.
func (s *Sort) residual() []Edge {
	out := slices.Collect(maps.Keys(s.working))
	sortEdges(out)
	return out
}
