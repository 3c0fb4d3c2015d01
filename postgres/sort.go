package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/meikuraledutech/topsort"
)

// SortForward streams the forward generations of the stored graph,
// optionally restricted by starts and endpoints. The cursor owns a
// REPEATABLE READ transaction, so concurrent writers are invisible to a
// running sort; Close must be called to release it.
func (s *PGDAG) SortForward(ctx context.Context, starts, endpoints []string) (topsort.Generations, error) {
	return s.sort(ctx, starts, endpoints, false)
}

// SortReverse streams the generations of the inverted graph. The starts
// and endpoints filters keep their forward meaning.
func (s *PGDAG) SortReverse(ctx context.Context, starts, endpoints []string) (topsort.Generations, error) {
	return s.sort(ctx, starts, endpoints, true)
}

func (s *PGDAG) sort(ctx context.Context, starts, endpoints []string, reverse bool) (topsort.Generations, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("topsort: begin sort: %w", err)
	}
	c := &cursor{ctx: ctx, tx: tx, reverse: reverse}
	if err := c.fill(s, starts, endpoints); err != nil {
		tx.Rollback(ctx)
		return nil, err
	}
	return c, nil
}

// cursor peels generations out of a per-sort working table. Real edge
// rows carry leaf = 0; every distinct sink also gets a (sink, NULL,
// leaf = 1) row so nodes without outgoing edges still appear in the
// source column. A node is ready when no leaf = 0 row points at it; each
// step yields the ready nodes and deletes their rows.
type cursor struct {
	ctx     context.Context
	tx      pgx.Tx
	reverse bool
	gen     []string
	err     error
	done    bool
	closed  bool
}

const workingDDL = `
CREATE TEMPORARY TABLE topsort_working (
    source TEXT NOT NULL,
    sink   TEXT,
    leaf   INT NOT NULL DEFAULT 0
) ON COMMIT DROP;
`

// fill copies the relation into the working table, swapped when sorting
// in reverse. The filter closures are recursive CTEs over the stored
// orientation either way.
func (c *cursor) fill(s *PGDAG, starts, endpoints []string) error {
	if _, err := c.tx.Exec(c.ctx, workingDDL); err != nil {
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
		args = append(args, starts)
		ctes = append(ctes, fmt.Sprintf(
			`fwd (node) AS (SELECT unnest($%d::text[]) UNION SELECT g.%s FROM %s g JOIN fwd ON g.%s = fwd.node)`,
			len(args), ident(s.sink), ident(s.table), ident(s.source)))
		conds = append(conds, fmt.Sprintf(`%s IN (SELECT node FROM fwd)`, ident(s.source)))
	}
	if len(endpoints) > 0 {
		args = append(args, endpoints)
		ctes = append(ctes, fmt.Sprintf(
			`bwd (node) AS (SELECT unnest($%d::text[]) UNION SELECT g.%s FROM %s g JOIN bwd ON g.%s = bwd.node)`,
			len(args), ident(s.source), ident(s.table), ident(s.sink)))
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
	if _, err := c.tx.Exec(c.ctx, q.String(), args...); err != nil {
		return fmt.Errorf("topsort: fill working table: %w", err)
	}

	_, err := c.tx.Exec(c.ctx, `
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

// Close abandons the sort and releases its transaction. Calling it again
// is a no-op.
func (c *cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.done = true
	if err := c.tx.Rollback(c.ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("topsort: close sort: %w", err)
	}
	return nil
}

// advance selects the ready nodes and deletes their rows, real and leaf
// alike.
func (c *cursor) advance() ([]string, error) {
	rows, err := c.tx.Query(c.ctx, `
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

	_, err = c.tx.Exec(c.ctx, `
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
	rows, err := c.tx.Query(c.ctx,
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
