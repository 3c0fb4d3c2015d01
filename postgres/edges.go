package postgres

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/topsort"
)

// Add inserts the edge (source, sink). Inserting a present edge is a
// no-op.
func (s *PGDAG) Add(ctx context.Context, source, sink string) error {
	_, err := s.db.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			ident(s.table), ident(s.source), ident(s.sink)),
		source, sink,
	)
	if err != nil {
		return fmt.Errorf("topsort: insert edge: %w", err)
	}
	return nil
}

// Remove deletes the edge (source, sink). No error if it was absent.
func (s *PGDAG) Remove(ctx context.Context, source, sink string) error {
	_, err := s.db.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2`,
			ident(s.table), ident(s.source), ident(s.sink)),
		source, sink,
	)
	if err != nil {
		return fmt.Errorf("topsort: delete edge: %w", err)
	}
	return nil
}

// Contains reports whether the edge (source, sink) is stored.
func (s *PGDAG) Contains(ctx context.Context, source, sink string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1 AND %s = $2)`,
			ident(s.table), ident(s.source), ident(s.sink)),
		source, sink,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("topsort: check edge: %w", err)
	}
	return ok, nil
}

// Nodes returns every node named by at least one edge, sorted.
func (s *PGDAG) Nodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx,
		fmt.Sprintf(`SELECT %[2]s AS node FROM %[1]s UNION SELECT %[3]s FROM %[1]s ORDER BY node`,
			ident(s.table), ident(s.source), ident(s.sink)))
	if err != nil {
		return nil, fmt.Errorf("topsort: query nodes: %w", err)
	}
	defer rows.Close()

	nodes := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("topsort: scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("topsort: rows nodes: %w", err)
	}

	return nodes, nil
}

// Edges returns all stored edges, sorted by source then sink.
// Returns an empty slice (not nil) if none are stored.
func (s *PGDAG) Edges(ctx context.Context) ([]topsort.Edge, error) {
	rows, err := s.db.Query(ctx,
		fmt.Sprintf(`SELECT %s, %s FROM %s ORDER BY 1, 2`,
			ident(s.source), ident(s.sink), ident(s.table)))
	if err != nil {
		return nil, fmt.Errorf("topsort: query edges: %w", err)
	}
	defer rows.Close()

	edges := []topsort.Edge{}
	for rows.Next() {
		var e topsort.Edge
		if err := rows.Scan(&e.Source, &e.Sink); err != nil {
			return nil, fmt.Errorf("topsort: scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("topsort: rows edges: %w", err)
	}

	return edges, nil
}

// Len returns the number of stored edges.
func (s *PGDAG) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s`, ident(s.table))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("topsort: count edges: %w", err)
	}
	return n, nil
}
