package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/meikuraledutech/topsort"
	"github.com/meikuraledutech/topsort/sqlite"
)

func main() {
	ctx := context.Background()

	// ── In-memory: a small build graph ────────────────────────────────
	d := topsort.New(
		topsort.Edge{Source: "a", Sink: "b"},
		topsort.Edge{Source: "b", Sink: "d"},
		topsort.Edge{Source: "a", Sink: "c"},
		topsort.Edge{Source: "c", Sink: "d"},
	)
	fmt.Printf("graph: %d edges over nodes %v\n", d.Len(), d.Nodes())

	fmt.Println("\nforward generations:")
	s := d.SortForward(nil, nil)
	for s.Next() {
		printGen(s.Generation())
	}
	if err := s.Err(); err != nil {
		log.Fatalf("sort: %v", err)
	}

	// ── Restricting to a subgraph ─────────────────────────────────────
	gens, err := d.SortForward([]string{"c"}, nil).Collect()
	if err != nil {
		log.Fatalf("sort from c: %v", err)
	}
	fmt.Println("\neverything downstream of c:")
	for _, gen := range gens {
		printGen(gen)
	}

	gens, err = d.SortForward(nil, []string{"b"}).Collect()
	if err != nil {
		log.Fatalf("sort into b: %v", err)
	}
	fmt.Println("\neverything leading into b:")
	for _, gen := range gens {
		printGen(gen)
	}

	// ── Reverse order ─────────────────────────────────────────────────
	gens, err = d.SortReverse(nil, nil).Collect()
	if err != nil {
		log.Fatalf("reverse sort: %v", err)
	}
	fmt.Println("\nreverse generations:")
	for _, gen := range gens {
		printGen(gen)
	}

	// ── Cycles surface when sorting, not when adding ──────────────────
	d.Add("d", "c")
	gens, err = d.SortForward(nil, nil).Collect()
	fmt.Println("\nafter adding d -> c:")
	for _, gen := range gens {
		printGen(gen)
	}
	var cerr *topsort.CycleError
	if errors.As(err, &cerr) {
		fmt.Printf("stuck: %v\n", cerr)
		fmt.Printf("residual edges: %v\n", cerr.Edges)
	}
	d.Remove("d", "c")

	// ── The same graph through the SQLite store ───────────────────────
	dir, err := os.MkdirTemp("", "topsort-example")
	if err != nil {
		log.Fatalf("tempdir: %v", err)
	}
	defer os.RemoveAll(dir)

	var store topsort.Store
	db, err := sqlite.Open(filepath.Join(dir, "example.db"), "edges", "source", "sink")
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer db.Close()
	store = db

	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	for _, e := range d.Edges() {
		if err := store.Add(ctx, e.Source, e.Sink); err != nil {
			log.Fatalf("add: %v", err)
		}
	}

	g, err := store.SortForward(ctx, nil, nil)
	if err != nil {
		log.Fatalf("store sort: %v", err)
	}
	stored, err := topsort.Collect(g)
	if err != nil {
		log.Fatalf("store sort: %v", err)
	}
	fmt.Println("\nsame generations out of sqlite:")
	for _, gen := range stored {
		printGen(gen)
	}
}

func printGen(gen []string) {
	fmt.Printf("  {%s}\n", strings.Join(gen, ", "))
}
