// Package topsort models a directed graph as a bare set of (source, sink)
// edges and computes topological orderings over it in generations: each
// generation is the set of nodes whose predecessors have all appeared in
// earlier generations, so the members of one generation carry no ordering
// among themselves.
//
// Sorts are lazy cursors in the style of database rows:
//
//	d := topsort.New(
//		topsort.Edge{Source: "a", Sink: "b"},
//		topsort.Edge{Source: "b", Sink: "c"},
//	)
//	s := d.SortForward(nil, nil)
//	for s.Next() {
//		fmt.Println(s.Generation())
//	}
//	if err := s.Err(); err != nil {
//		// Generations already yielded remain a valid prefix; err is a
//		// *CycleError describing the part that could not be ordered.
//	}
//
// Cycles are tolerated in the edge set itself and surface only when a
// sort runs out of peelable nodes.
package topsort

import (
	"maps"
	"slices"
	"strings"
)

// Edge is a directed connection between two nodes: Source must be
// ordered before Sink.
type Edge struct {
	Source string `json:"source"`
	Sink   string `json:"sink"`
}

// DAG is a mutable set of directed edges. A node exists exactly as long
// as some edge names it; there are no standalone nodes. Acyclicity is
// not enforced on mutation, only observed when a sort runs.
//
// The zero value is not usable; call New.
type DAG struct {
	edges map[Edge]struct{}
}

// New returns a DAG holding the given edges. Duplicates collapse.
func New(edges ...Edge) *DAG {
	d := &DAG{edges: make(map[Edge]struct{}, len(edges))}
	for _, e := range edges {
		d.edges[e] = struct{}{}
	}
	return d
}

// Add inserts the edge (source, sink). Adding a present edge is a no-op.
func (d *DAG) Add(source, sink string) {
	d.edges[Edge{Source: source, Sink: sink}] = struct{}{}
}

// Remove deletes the edge (source, sink). Removing an absent edge is a
// no-op.
func (d *DAG) Remove(source, sink string) {
	delete(d.edges, Edge{Source: source, Sink: sink})
}

// Contains reports whether the edge (source, sink) is present.
func (d *DAG) Contains(source, sink string) bool {
	_, ok := d.edges[Edge{Source: source, Sink: sink}]
	return ok
}

// Len returns the number of edges.
func (d *DAG) Len() int { return len(d.edges) }

// Edges returns a snapshot of all edges, sorted by source then sink.
func (d *DAG) Edges() []Edge {
	out := slices.Collect(maps.Keys(d.edges))
	sortEdges(out)
	return out
}

// Nodes returns every node named by at least one edge, sorted.
func (d *DAG) Nodes() []string {
	nodes := make(map[string]struct{}, len(d.edges))
	for e := range d.edges {
		nodes[e.Source] = struct{}{}
		nodes[e.Sink] = struct{}{}
	}
	return slices.Sorted(maps.Keys(nodes))
}

// EdgesFrom returns the edges leaving any of the given nodes, sorted.
func (d *DAG) EdgesFrom(nodes ...string) []Edge {
	from := toSet(nodes)
	var out []Edge
	for e := range d.edges {
		if _, ok := from[e.Source]; ok {
			out = append(out, e)
		}
	}
	sortEdges(out)
	return out
}

// EdgesTo returns the edges arriving at any of the given nodes, sorted.
func (d *DAG) EdgesTo(nodes ...string) []Edge {
	to := toSet(nodes)
	var out []Edge
	for e := range d.edges {
		if _, ok := to[e.Sink]; ok {
			out = append(out, e)
		}
	}
	sortEdges(out)
	return out
}

func toSet(nodes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		set[n] = struct{}{}
	}
	return set
}

func sortEdges(edges []Edge) {
	slices.SortFunc(edges, func(a, b Edge) int {
		if c := strings.Compare(a.Source, b.Source); c != 0 {
			return c
		}
		return strings.Compare(a.Sink, b.Sink)
	})
}
