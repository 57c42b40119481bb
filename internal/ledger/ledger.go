// Package ledger records completed asset derivations in SQLite so that an
// unchanged source image is not re-processed on the next derive run.
package ledger

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS derivations (
	folder          TEXT PRIMARY KEY,
	source_checksum TEXT NOT NULL,
	mode            TEXT NOT NULL,
	width           INTEGER NOT NULL DEFAULT 0,
	height          INTEGER NOT NULL DEFAULT 0,
	variants        TEXT NOT NULL DEFAULT '[]',
	derived_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store is the subset of ledger operations the deriver depends on.
type Store interface {
	Get(ctx context.Context, folder string) (Entry, bool, error)
	Put(ctx context.Context, e Entry) error
}

var _ Store = (*DB)(nil)

// DB wraps a sql.DB with ledger operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the ledger database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
