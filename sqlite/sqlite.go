// Package sqlite implements topsort.Store on an embedded SQLite
// database via the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/meikuraledutech/topsort"
)

// SQLiteDAG implements topsort.Store on a single SQLite relation of
// (source, sink) rows. The table and its two columns are named at
// construction; identifiers are quoted into every statement while node
// values always travel as bind parameters.
type SQLiteDAG struct {
	db     *sql.DB
	table  string
	source string
	sink   string
}

// New wraps an already-open database handle.
func New(db *sql.DB, table, source, sink string) *SQLiteDAG {
	return &SQLiteDAG{db: db, table: table, source: source, sink: sink}
}

// Open opens or creates the database at path and returns a SQLiteDAG
// over it. WAL mode is enabled, and lock contention waits up to 5s
// instead of failing immediately.
func Open(path, table, source, sink string) (*SQLiteDAG, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("topsort: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("topsort: ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("topsort: enable WAL: %w", err)
	}
	db.Exec("PRAGMA busy_timeout=5000")

	return &SQLiteDAG{db: db, table: table, source: source, sink: sink}, nil
}

// Close closes the underlying database handle.
func (s *SQLiteDAG) Close() error {
	return s.db.Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS %[1]s (
    %[2]s TEXT NOT NULL,
    %[3]s TEXT NOT NULL,
    UNIQUE (%[2]s, %[3]s) ON CONFLICT REPLACE
);

CREATE INDEX IF NOT EXISTS %[4]s ON %[1]s (%[3]s);
`

// CreateSchema creates the edge table and its sink index if they don't
// exist.
func (s *SQLiteDAG) CreateSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(schemaSQL,
		ident(s.table), ident(s.source), ident(s.sink), ident(s.table+"_"+s.sink+"_idx")))
	return err
}

// DropSchema drops the edge table.
func (s *SQLiteDAG) DropSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, ident(s.table)))
	return err
}

// Add inserts the edge (source, sink). The unique constraint's REPLACE
// action makes inserting a present edge a no-op.
func (s *SQLiteDAG) Add(ctx context.Context, source, sink string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES (?, ?)`,
			ident(s.table), ident(s.source), ident(s.sink)),
		source, sink,
	)
	if err != nil {
		return fmt.Errorf("topsort: insert edge: %w", err)
	}
	return nil
}

// Remove deletes the edge (source, sink). No error if it was absent.
func (s *SQLiteDAG) Remove(ctx context.Context, source, sink string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = ? AND %s = ?`,
			ident(s.table), ident(s.source), ident(s.sink)),
		source, sink,
	)
	if err != nil {
		return fmt.Errorf("topsort: delete edge: %w", err)
	}
	return nil
}

// Contains reports whether the edge (source, sink) is stored.
func (s *SQLiteDAG) Contains(ctx context.Context, source, sink string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = ? AND %s = ?)`,
			ident(s.table), ident(s.source), ident(s.sink)),
		source, sink,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("topsort: check edge: %w", err)
	}
	return n != 0, nil
}

// Nodes returns every node named by at least one edge, sorted.
func (s *SQLiteDAG) Nodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
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
func (s *SQLiteDAG) Edges(ctx context.Context) ([]topsort.Edge, error) {
	rows, err := s.db.QueryContext(ctx,
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
func (s *SQLiteDAG) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s`, ident(s.table))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("topsort: count edges: %w", err)
	}
	return n, nil
}

// ident double-quotes a SQL identifier, escaping embedded quotes.
func ident(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
