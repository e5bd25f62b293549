package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jupiterbjy/gotigris/internal/tigris"
	"go.uber.org/zap"
)

// Snapshot is the on-disk form of a fetched event set. Raw rows are stored
// verbatim so a snapshot survives round trips unchanged.
type Snapshot struct {
	SavedAt string             `json:"saved_at"`
	From    string             `json:"from"`
	To      string             `json:"to"`
	Events  []tigris.EventData `json:"events"`
}

// SnapshotStore saves and loads event snapshots as a JSON file.
type SnapshotStore struct {
	path   string
	loc    *time.Location
	logger *zap.Logger
}

// NewSnapshotStore creates a snapshot store for the given file path.
func NewSnapshotStore(path string, loc *time.Location, logger *zap.Logger) *SnapshotStore {
	if loc == nil {
		loc = time.Local
	}
	return &SnapshotStore{
		path:   path,
		loc:    loc,
		logger: logger,
	}
}

// Save writes the events to the snapshot file.
func (s *SnapshotStore) Save(from, to time.Time, events []*tigris.Event) error {
	snap := Snapshot{
		SavedAt: time.Now().Format(time.RFC3339),
		From:    from.Format("2006-01-02"),
		To:      to.Format("2006-01-02"),
		Events:  make([]tigris.EventData, 0, len(events)),
	}
	for _, ev := range events {
		snap.Events = append(snap.Events, ev.Data())
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}

	s.logger.Info("Snapshot saved",
		zap.String("path", s.path),
		zap.Int("events", len(snap.Events)))

	return nil
}

// Load reads the snapshot file.
func (s *SnapshotStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot file: %w", err)
	}

	s.logger.Info("Snapshot loaded",
		zap.String("path", s.path),
		zap.String("saved_at", snap.SavedAt),
		zap.Int("events", len(snap.Events)))

	return &snap, nil
}

// Events implements Source from the last saved snapshot, filtered to the
// events overlapping [from, to]. Rows whose dates cannot be parsed are
// skipped with a warning.
func (s *SnapshotStore) Events(ctx context.Context, from, to time.Time) ([]*tigris.Event, error) {
	snap, err := s.Load()
	if err != nil {
		return nil, err
	}

	var events []*tigris.Event
	for _, data := range snap.Events {
		ev := tigris.NewEvent(data, s.loc)

		start, err := ev.Start()
		if err != nil {
			s.logger.Warn("Skipping snapshot row with bad start date",
				zap.String("event", ev.String()),
				zap.Error(err))
			continue
		}
		end, err := ev.End()
		if err != nil {
			s.logger.Warn("Skipping snapshot row with bad end date",
				zap.String("event", ev.String()),
				zap.Error(err))
			continue
		}

		if end.Before(from) || start.After(to) {
			continue
		}

		events = append(events, ev)
	}

	return events, nil
}
