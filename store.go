package topsort

import (
	"context"
	"errors"
)

// ErrCycleDetected is wrapped by every *CycleError, so callers can test
// errors.Is(err, ErrCycleDetected) without caring which backend sorted.
var ErrCycleDetected = errors.New("topsort: cycle detected, graph is not acyclic")

// Generations is a single-pass stream of topological generations. Both
// the in-memory *Sort and the store cursors satisfy it.
//
// Close releases whatever the cursor holds (for stores, a transaction
// and its working table) and must be called even after Next returns
// false. Closing early abandons the rest of the sort.
type Generations interface {
	Next() bool
	Generation() []string
	Err() error
	Close() error
}

// Store keeps an edge set in an external relational store and mirrors
// the observable behavior of DAG over it: the same mutations, the same
// generations in the same order, and the same cycle reports. The backing
// table and its two node columns are chosen at construction.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Edges
	Add(ctx context.Context, source, sink string) error
	Remove(ctx context.Context, source, sink string) error
	Contains(ctx context.Context, source, sink string) (bool, error)
	Nodes(ctx context.Context) ([]string, error)
	Edges(ctx context.Context) ([]Edge, error)
	Len(ctx context.Context) (int, error)

	// Sorts
	SortForward(ctx context.Context, starts, endpoints []string) (Generations, error)
	SortReverse(ctx context.Context, starts, endpoints []string) (Generations, error)
}

// Collect drains g, closes it, and returns every remaining generation.
// On a cycle the generations yielded before the failure are returned
// together with the error.
func Collect(g Generations) ([][]string, error) {
	var gens [][]string
	for g.Next() {
		gens = append(gens, g.Generation())
	}
	err := g.Err()
	if cerr := g.Close(); err == nil {
		err = cerr
	}
	return gens, err
}
