package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/meikuraledutech/topsort"
)

// SortForward streams the forward generations of the stored graph,
// optionally restricted by starts and endpoints. The cursor owns a
// transaction pinned to one connection, which gives it a stable view of
// the table and a home for its temporary working table; Close must be
// called to release it.
func (s *SQLiteDAG) SortForward(ctx context.Context, starts, endpoints []string) (topsort.Generations, error) {
	return s.sort(ctx, starts, endpoints, false)
}

// SortReverse streams the generations of the inverted graph. The starts
// and endpoints filters keep their forward meaning.
func (s *SQLiteDAG) SortReverse(ctx context.Context, starts, endpoints []string) (topsort.Generations, error) {
	return s.sort(ctx, starts, endpoints, true)
}

func (s *SQLiteDAG) sort(ctx context.Context, starts, endpoints []string, reverse bool) (topsort.Generations, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("topsort: begin sort: %w", err)
	}
	c := &cursor{ctx: ctx, tx: tx, reverse: reverse}
	if err := c.fill(s, starts, endpoints); err != nil {
		tx.Rollback()
		return nil, err
	}
	return c, nil
}

// cursor peels generations out of a per-sort working table, the same
// scheme as the postgres backend: real edge rows carry leaf = 0, every
// distinct sink gets a (sink, NULL, leaf = 1) row so nodes without
// outgoing edges still appear in the source column, and a node is ready
// when no leaf = 0 row points at it.
type cursor struct {
	ctx     context.Context
	tx      *sql.Tx
	reverse bool
	gen     []string
	err     error
	done    bool
	closed  bool
}

// fill creates the working table and copies the relation in, swapped
// when sorting in reverse. Temporary tables are per connection, so an
// abandoned sort may have left one behind on this pooled connection;
// drop it first.
func (c *cursor) fill(s *SQLiteDAG, starts, endpoints []string) error {
	if _, err := c.tx.ExecContext(c.ctx, `DROP TABLE IF EXISTS temp.topsort_working`); err != nil {
		return fmt.Errorf("topsort: drop stale working table: %w", err)
	}
	_, err := c.tx.ExecContext(c.ctx, `
CREATE TEMPORARY TABLE topsort_working (
    source TEXT NOT NULL,
    sink   TEXT,
    leaf   INT NOT NULL DEFAULT 0
)`)
	if err != nil {
		return fmt.Errorf("topsort: create working table: %w", err)
	}

	first, second := ident(s.source), ident(s.sink)
	if c.reverse {
		first, second = second, first
	}

	var (
		ctes  []string
		conds []string
		args  []any
	)
	if len(starts) > 0 {
		ctes = append(ctes, fmt.Sprintf(
			`fwd (node) AS (VALUES %s UNION SELECT g.%s FROM %s g JOIN fwd ON g.%s = fwd.node)`,
			placeholders(len(starts)), ident(s.sink), ident(s.table), ident(s.source)))
		for _, n := range starts {
			args = append(args, n)
		}
		conds = append(conds, fmt.Sprintf(`%s IN (SELECT node FROM fwd)`, ident(s.source)))
	}
	if len(endpoints) > 0 {
		ctes = append(ctes, fmt.Sprintf(
			`bwd (node) AS (VALUES %s UNION SELECT g.%s FROM %s g JOIN bwd ON g.%s = bwd.node)`,
			placeholders(len(endpoints)), ident(s.source), ident(s.table), ident(s.sink)))
		for _, n := range endpoints {
			args = append(args, n)
		}
		conds = append(conds, fmt.Sprintf(`%s IN (SELECT node FROM bwd)`, ident(s.sink)))
	}

	var q strings.Builder
	if len(ctes) > 0 {
		q.WriteString("WITH RECURSIVE " + strings.Join(ctes, ", ") + " ")
	}
	fmt.Fprintf(&q, "INSERT INTO topsort_working (source, sink) SELECT %s, %s FROM %s",
		first, second, ident(s.table))
	if len(conds) > 0 {
		q.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	if _, err := c.tx.ExecContext(c.ctx, q.String(), args...); err != nil {
		return fmt.Errorf("topsort: fill working table: %w", err)
	}

	_, err = c.tx.ExecContext(c.ctx, `
INSERT INTO topsort_working (source, leaf)
SELECT DISTINCT sink, 1 FROM topsort_working WHERE leaf = 0`)
	if err != nil {
		return fmt.Errorf("topsort: fill leaf rows: %w", err)
	}
	return nil
}

// Next advances to the following generation. It returns false once none
// remains; Err tells exhaustion from a cycle.
func (c *cursor) Next() bool {
	if c.done || c.closed {
		return false
	}
	gen, err := c.advance()
	if err == nil && len(gen) == 0 {
		err = c.stalled()
	}
	if err != nil || len(gen) == 0 {
		c.done = true
		c.gen = nil
		c.err = err
		return false
	}
	c.gen = gen
	return true
}

// Generation returns the generation the last successful Next advanced
// to, as a sorted slice of nodes.
func (c *cursor) Generation() []string { return c.gen }

// Err returns nil after a clean exhaustion, or the error that stopped
// iteration, a *topsort.CycleError when the remainder was cyclic.
func (c *cursor) Err() error { return c.err }

// Close abandons the sort. Rolling the transaction back also removes
// the working table. Calling Close again is a no-op.
func (c *cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.done = true
	if err := c.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("topsort: close sort: %w", err)
	}
	return nil
}

// advance selects the ready nodes and deletes their rows, real and leaf
// alike.
func (c *cursor) advance() ([]string, error) {
	rows, err := c.tx.QueryContext(c.ctx, `
SELECT DISTINCT source FROM topsort_working
WHERE source NOT IN (SELECT sink FROM topsort_working WHERE leaf = 0)
ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("topsort: query generation: %w", err)
	}
	defer rows.Close()

	var gen []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("topsort: scan generation: %w", err)
		}
		gen = append(gen, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("topsort: rows generation: %w", err)
	}
	if len(gen) == 0 {
		return nil, nil
	}

	_, err = c.tx.ExecContext(c.ctx, `
DELETE FROM topsort_working
WHERE source NOT IN (SELECT sink FROM topsort_working WHERE leaf = 0)`)
	if err != nil {
		return nil, fmt.Errorf("topsort: delete generation: %w", err)
	}
	return gen, nil
}

// stalled reads whatever leaf = 0 rows remain; any at all mean the graph
// was cyclic. Rows are flipped back to stored orientation for a reverse
// sort before building the report.
func (c *cursor) stalled() error {
	rows, err := c.tx.QueryContext(c.ctx,
		`SELECT source, sink FROM topsort_working WHERE leaf = 0 ORDER BY 1, 2`)
	if err != nil {
		return fmt.Errorf("topsort: query residual: %w", err)
	}
	defer rows.Close()

	var residual []topsort.Edge
	for rows.Next() {
		var e topsort.Edge
		if err := rows.Scan(&e.Source, &e.Sink); err != nil {
			return fmt.Errorf("topsort: scan residual: %w", err)
		}
		if c.reverse {
			e.Source, e.Sink = e.Sink, e.Source
		}
		residual = append(residual, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("topsort: rows residual: %w", err)
	}
	if len(residual) == 0 {
		return nil
	}
	return topsort.NewCycleError(residual)
}

// placeholders renders n single-column VALUES rows: (?),(?),...
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("(?),", n), ",")
}
