// Package storage persists the last good snapshot in SQLite so a restart can
// serve real figures immediately instead of waiting on the upstream
// spreadsheet.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"homeledger/internal/feed"

	_ "modernc.org/sqlite"
)

// keepSnapshots bounds how much history Save retains.
const keepSnapshots = 10

type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(dbPath string) (*SnapshotStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save appends the bundle as the newest snapshot and prunes old rows.
func (s *SnapshotStore) Save(ctx context.Context, b *feed.Bundle) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	fetchedAt := b.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (fetched_at, payload) VALUES (?, ?)`,
		fetchedAt.UTC().Format(time.RFC3339), string(payload)); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY id DESC LIMIT ?
		)`, keepSnapshots); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot persisted",
		"fetched_at", fetchedAt,
		"bytes", len(payload))
	return nil
}

// LoadLatest returns the most recent snapshot, or nil when none is stored.
func (s *SnapshotStore) LoadLatest(ctx context.Context) (*feed.Bundle, error) {
	var (
		fetchedAt string
		payload   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT fetched_at, payload FROM snapshots ORDER BY id DESC LIMIT 1`).
		Scan(&fetchedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}

	var b feed.Bundle
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if b.FetchedAt.IsZero() {
		if t, err := time.Parse(time.RFC3339, fetchedAt); err == nil {
			b.FetchedAt = t
		}
	}
	return &b, nil
}
