package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"homeledger/internal/feed"
	"homeledger/internal/rows"
)

func newTestStore(t *testing.T) *SnapshotStore {
	t.Helper()
	s, err := NewSnapshotStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSnapshotStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSnapshotStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest() on empty store error = %v", err)
	}
	if got != nil {
		t.Fatalf("LoadLatest() on empty store = %+v, want nil", got)
	}

	b := &feed.Bundle{
		Accounts: []rows.Row{
			{"Account Name": "Joint (Commonwealth)", "Current Balance": 123.45},
		},
		FetchedAt: time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC),
	}
	if err := s.Save(ctx, b); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err = s.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	if got == nil {
		t.Fatal("LoadLatest() = nil after save")
	}
	if len(got.Accounts) != 1 || got.Accounts[0].Float("Current Balance") != 123.45 {
		t.Errorf("accounts = %+v, want the saved row", got.Accounts)
	}
	if !got.FetchedAt.Equal(b.FetchedAt) {
		t.Errorf("FetchedAt = %v, want %v", got.FetchedAt, b.FetchedAt)
	}
}

func TestSnapshotStore_LatestWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		b := &feed.Bundle{
			Dashboard: []rows.Row{{"Metric": "Seq", "Value": float64(i)}},
			FetchedAt: time.Now(),
		}
		if err := s.Save(ctx, b); err != nil {
			t.Fatalf("Save(%d) error = %v", i, err)
		}
	}

	got, err := s.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	if v := rows.DashboardMetric(got.Dashboard, "Seq"); v != 3 {
		t.Errorf("latest snapshot seq = %v, want 3", v)
	}
}

func TestSnapshotStore_PrunesHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < keepSnapshots+5; i++ {
		if err := s.Save(ctx, &feed.Bundle{FetchedAt: time.Now()}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&count); err != nil {
		t.Fatalf("count query error = %v", err)
	}
	if count != keepSnapshots {
		t.Errorf("retained %d snapshots, want %d", count, keepSnapshots)
	}
}
