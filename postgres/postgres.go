package postgres

import (
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGDAG implements topsort.Store on a single PostgreSQL relation of
// (source, sink) rows. The table and its two columns are named at
// construction; identifiers are quoted into every statement while node
// values always travel as bind parameters.
type PGDAG struct {
	db     *pgxpool.Pool
	table  string
	source string
	sink   string
}

// New creates a PGDAG over table, whose source and sink columns hold
// each edge's endpoints.
func New(db *pgxpool.Pool, table, source, sink string) *PGDAG {
	return &PGDAG{db: db, table: table, source: source, sink: sink}
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
