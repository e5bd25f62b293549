package roster

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestSnapshotStore_SaveLoad(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	path := filepath.Join(t.TempDir(), "events.json")
	store := NewSnapshotStore(path, testLoc, logger)

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, testLoc)
	to := time.Date(2025, 1, 31, 0, 0, 0, 0, testLoc)

	if err := store.Save(from, to, testEvents()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(snap.Events) != 3 {
		t.Fatalf("snapshot events = %d, want 3", len(snap.Events))
	}
	if snap.From != "2025-01-01" || snap.To != "2025-01-31" {
		t.Errorf("snapshot range = %s..%s, want 2025-01-01..2025-01-31", snap.From, snap.To)
	}

	// Raw rows must survive the round trip untouched.
	want := testEvents()[1].Data()
	if snap.Events[1] != want {
		t.Errorf("round-tripped row = %+v, want %+v", snap.Events[1], want)
	}
}

func TestSnapshotStore_EventsFiltersRange(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	path := filepath.Join(t.TempDir(), "events.json")
	store := NewSnapshotStore(path, testLoc, logger)

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, testLoc)
	to := time.Date(2025, 1, 31, 0, 0, 0, 0, testLoc)
	if err := store.Save(from, to, testEvents()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Only the Jan 13-14 leave and the Jan 13 half day overlap this window.
	events, err := store.Events(context.Background(),
		time.Date(2025, 1, 10, 0, 0, 0, 0, testLoc),
		time.Date(2025, 1, 20, 0, 0, 0, 0, testLoc))
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if len(events) != 2 {
		t.Errorf("events = %d, want 2", len(events))
	}
}

func TestSnapshotStore_LoadMissingFile(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	store := NewSnapshotStore(filepath.Join(t.TempDir(), "missing.json"), testLoc, logger)

	if _, err := store.Load(); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}
