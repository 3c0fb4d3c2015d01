package postgres_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/topsort"
	"github.com/meikuraledutech/topsort/postgres"
)

// openStore connects using TEST_DATABASE_URL and provisions a uniquely
// named table, dropped again when the test ends. The whole package is
// skipped when the variable is unset.
func openStore(t *testing.T) *postgres.PGDAG {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	table := "topsort_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s := postgres.New(pool, table, "source", "sink")
	require.NoError(t, s.CreateSchema(ctx))
	t.Cleanup(func() { _ = s.DropSchema(context.Background()) })
	return s
}

// diamondEdges is the graph a→b, b→d, a→c, c→d.
var diamondEdges = []topsort.Edge{
	{Source: "a", Sink: "b"},
	{Source: "b", Sink: "d"},
	{Source: "a", Sink: "c"},
	{Source: "c", Sink: "d"},
}

func addAll(t *testing.T, s *postgres.PGDAG, edges []topsort.Edge) {
	t.Helper()
	ctx := context.Background()
	for _, e := range edges {
		require.NoError(t, s.Add(ctx, e.Source, e.Sink))
	}
}

// TestStore_AddRemoveContains verifies membership plus idempotent Add
// and Remove against the real table.
func TestStore_AddRemoveContains(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.Add(ctx, "a", "b"))
	require.NoError(t, s.Add(ctx, "a", "b"))

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err := s.Contains(ctx, "a", "b")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Remove(ctx, "never", "added"))
	require.NoError(t, s.Remove(ctx, "a", "b"))
	ok, err = s.Contains(ctx, "a", "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestStore_NodesAndEdges checks the sorted snapshots.
func TestStore_NodesAndEdges(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	addAll(t, s, diamondEdges)

	nodes, err := s.Nodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, nodes)

	edges, err := s.Edges(ctx)
	require.NoError(t, err)
	assert.Equal(t, []topsort.Edge{
		{Source: "a", Sink: "b"},
		{Source: "a", Sink: "c"},
		{Source: "b", Sink: "d"},
		{Source: "c", Sink: "d"},
	}, edges)
}

// TestStore_SortMatchesMemory runs the same graphs and restrictions
// through the store and the in-memory engine and demands identical
// generations and identical cycle reports.
func TestStore_SortMatchesMemory(t *testing.T) {
	cyclic := append([]topsort.Edge{{Source: "d", Sink: "c"}}, diamondEdges...)

	cases := []struct {
		name              string
		edges             []topsort.Edge
		reverse           bool
		starts, endpoints []string
	}{
		{name: "forward", edges: diamondEdges},
		{name: "reverse", edges: diamondEdges, reverse: true},
		{name: "starts", edges: diamondEdges, starts: []string{"c"}},
		{name: "endpoints", edges: diamondEdges, endpoints: []string{"b"}},
		{name: "disjoint filters", edges: diamondEdges, starts: []string{"c"}, endpoints: []string{"c"}},
		{name: "unknown filter node", edges: diamondEdges, starts: []string{"ghost"}},
		{name: "cycle", edges: cyclic},
		{name: "cycle reverse", edges: cyclic, reverse: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			s := openStore(t)
			addAll(t, s, tc.edges)

			d := topsort.New(tc.edges...)
			var want [][]string
			var wantErr error
			var got [][]string
			var gotErr error
			if tc.reverse {
				want, wantErr = d.SortReverse(tc.starts, tc.endpoints).Collect()
				g, err := s.SortReverse(ctx, tc.starts, tc.endpoints)
				require.NoError(t, err)
				got, gotErr = topsort.Collect(g)
			} else {
				want, wantErr = d.SortForward(tc.starts, tc.endpoints).Collect()
				g, err := s.SortForward(ctx, tc.starts, tc.endpoints)
				require.NoError(t, err)
				got, gotErr = topsort.Collect(g)
			}

			assert.Equal(t, want, got)
			if wantErr == nil {
				assert.NoError(t, gotErr)
				return
			}
			require.Error(t, gotErr)
			assert.ErrorIs(t, gotErr, topsort.ErrCycleDetected)

			var wantCycle, gotCycle *topsort.CycleError
			require.ErrorAs(t, wantErr, &wantCycle)
			require.ErrorAs(t, gotErr, &gotCycle)
			assert.Equal(t, wantCycle.Edges, gotCycle.Edges)
			assert.Equal(t, wantCycle.Cycle, gotCycle.Cycle)
		})
	}
}

// TestStore_SequentialSorts checks one sort leaves nothing behind for
// the next.
func TestStore_SequentialSorts(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	addAll(t, s, diamondEdges)

	for range 3 {
		g, err := s.SortForward(ctx, nil, nil)
		require.NoError(t, err)
		gens, err := topsort.Collect(g)
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"a"}, {"b", "c"}, {"d"}}, gens)
	}
}

// TestStore_AbandonedSort closes a cursor mid-way and checks the table
// and later sorts are unharmed.
func TestStore_AbandonedSort(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	addAll(t, s, diamondEdges)

	g, err := s.SortForward(ctx, nil, nil)
	require.NoError(t, err)
	require.True(t, g.Next())
	require.NoError(t, g.Close())
	assert.False(t, g.Next())

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	g, err = s.SortForward(ctx, nil, nil)
	require.NoError(t, err)
	gens, err := topsort.Collect(g)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b", "c"}, {"d"}}, gens)
}

// TestStore_WritesDuringSortInvisible checks REPEATABLE READ keeps a
// running sort on its snapshot.
func TestStore_WritesDuringSortInvisible(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	addAll(t, s, diamondEdges)

	g, err := s.SortForward(ctx, nil, nil)
	require.NoError(t, err)
	require.True(t, g.Next())

	require.NoError(t, s.Add(ctx, "d", "e"))

	gens, err := topsort.Collect(g)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"b", "c"}, {"d"}}, gens)
}
