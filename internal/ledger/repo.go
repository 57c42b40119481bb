package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/starford/galdr/internal/models"
)

// Entry is one completed derivation.
type Entry struct {
	Folder         string
	SourceChecksum string
	Mode           string
	Width          int
	Height         int
	Variants       []models.Variant
	DerivedAt      time.Time
}

// Put inserts or replaces the entry for e.Folder.
func (db *DB) Put(ctx context.Context, e Entry) error {
	variants, err := json.Marshal(e.Variants)
	if err != nil {
		return fmt.Errorf("ledger: encode variants: %w", err)
	}
	if e.Variants == nil {
		variants = []byte("[]")
	}
	if e.DerivedAt.IsZero() {
		e.DerivedAt = time.Now().UTC()
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO derivations (folder, source_checksum, mode, width, height, variants, derived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(folder) DO UPDATE SET
			source_checksum = excluded.source_checksum,
			mode            = excluded.mode,
			width           = excluded.width,
			height          = excluded.height,
			variants        = excluded.variants,
			derived_at      = excluded.derived_at
	`, e.Folder, e.SourceChecksum, e.Mode, e.Width, e.Height, string(variants), e.DerivedAt)
	if err != nil {
		return fmt.Errorf("ledger: put %s: %w", e.Folder, err)
	}
	return nil
}

// Get returns the entry for folder. The bool is false when none exists.
func (db *DB) Get(ctx context.Context, folder string) (Entry, bool, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT folder, source_checksum, mode, width, height, variants, derived_at
		FROM derivations WHERE folder = ?`, folder)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("ledger: get %s: %w", folder, err)
	}
	return e, true, nil
}

// Delete removes the entry for folder. Deleting a missing entry is not an error.
func (db *DB) Delete(ctx context.Context, folder string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM derivations WHERE folder = ?`, folder); err != nil {
		return fmt.Errorf("ledger: delete %s: %w", folder, err)
	}
	return nil
}

// All returns every entry ordered by folder.
func (db *DB) All(ctx context.Context) ([]Entry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT folder, source_checksum, mode, width, height, variants, derived_at
		FROM derivations ORDER BY folder`)
	if err != nil {
		return nil, fmt.Errorf("ledger: all: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries whose folder is not in keep and returns how many
// were removed.
func (db *DB) Prune(ctx context.Context, keep map[string]struct{}) (int, error) {
	entries, err := db.All(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if _, ok := keep[e.Folder]; ok {
			continue
		}
		if err := db.Delete(ctx, e.Folder); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e        Entry
		variants string
	)
	if err := s.Scan(&e.Folder, &e.SourceChecksum, &e.Mode, &e.Width, &e.Height, &variants, &e.DerivedAt); err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal([]byte(variants), &e.Variants); err != nil {
		return Entry{}, fmt.Errorf("decode variants: %w", err)
	}
	return e, nil
}
