package postgres

import (
	"context"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS %[1]s (
    %[2]s TEXT NOT NULL,
    %[3]s TEXT NOT NULL,
    UNIQUE (%[2]s, %[3]s)
);

CREATE INDEX IF NOT EXISTS %[4]s ON %[1]s (%[3]s);
`

// CreateSchema creates the edge table and its sink index if they don't
// exist.
func (s *PGDAG) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(schemaSQL,
		ident(s.table), ident(s.source), ident(s.sink), ident(s.table+"_"+s.sink+"_idx")))
	return err
}

// DropSchema drops the edge table.
func (s *PGDAG) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, ident(s.table)))
	return err
}
