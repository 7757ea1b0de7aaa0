// Package sqlite is the embedded relational backing store: one database
// file per working tree, reached through database/sql and the pure-Go
// ncruces/go-sqlite3 driver (no cgo), holding the nodes/edges/events/
// knowledge/knowledge_log tables described in spec §3 and §6.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLiteStorage is the concrete storage.Storage implementation.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// New opens (creating if necessary) the database file at path, sets the
// durability pragmas spec §6 assumes (WAL + synchronous=FULL so daily
// backup snapshots are self-contained), and runs every idempotent additive
// migration.
func New(ctx context.Context, path string) (*SQLiteStorage, error) {
	dsn := path
	if dsn != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)", path)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// The WAL/journaling pragmas below are not DSN-settable on every
	// driver version, so they are also applied explicitly post-open.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=10000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %s: %w", p, err)
		}
	}
	// Up to eight pooled connections: RunInTransaction holds one as its
	// dedicated connection while reads through s.db use the others, which
	// see the shared file's committed state via WAL. A ":memory:" database
	// is private to each connection, so the others do not see its tables.
	db.SetMaxOpenConns(8)

	s := &SQLiteStorage{db: db, path: path}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
