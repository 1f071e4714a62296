package memory

import (
	"context"
	"testing"

	"github.com/jarlboard/server/internal/persistence"
)

func TestSaveSnapshotInsertsOnVersionOne(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.SaveSnapshot(ctx, "g1", []byte("state1"), 1, "lobby"); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.LoadSnapshot(ctx, "g1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got.State) != "state1" || got.Version != 1 || got.Status != "lobby" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestSaveSnapshotRejectsDuplicateInsert(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.SaveSnapshot(ctx, "g1", []byte("state1"), 1, "lobby"); err != nil {
		t.Fatalf("save: %v", err)
	}
	err := s.SaveSnapshot(ctx, "g1", []byte("state1b"), 1, "lobby")
	if _, ok := err.(*persistence.VersionConflictError); !ok {
		t.Fatalf("expected VersionConflictError, got %v", err)
	}
}

func TestSaveSnapshotUpdatesSequentialVersion(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.SaveSnapshot(ctx, "g1", []byte("v1"), 1, "lobby"); err != nil {
		t.Fatalf("save v1: %v", err)
	}
	if err := s.SaveSnapshot(ctx, "g1", []byte("v2"), 2, "setup"); err != nil {
		t.Fatalf("save v2: %v", err)
	}

	got, err := s.LoadSnapshot(ctx, "g1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got.State) != "v2" || got.Version != 2 || got.Status != "setup" {
		t.Fatalf("unexpected snapshot after update: %+v", got)
	}
}

func TestSaveSnapshotRejectsStaleVersion(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.SaveSnapshot(ctx, "g1", []byte("v1"), 1, "lobby"); err != nil {
		t.Fatalf("save v1: %v", err)
	}
	err := s.SaveSnapshot(ctx, "g1", []byte("v3"), 3, "setup")
	if _, ok := err.(*persistence.VersionConflictError); !ok {
		t.Fatalf("expected VersionConflictError for skipped version, got %v", err)
	}
}

func TestLoadSnapshotNotFound(t *testing.T) {
	s := New()
	_, err := s.LoadSnapshot(context.Background(), "missing")
	if err != persistence.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadActiveSnapshotsExcludesEnded(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.SaveSnapshot(ctx, "g1", []byte("a"), 1, "playing")
	s.SaveSnapshot(ctx, "g2", []byte("b"), 1, "ended")
	s.SaveSnapshot(ctx, "g3", []byte("c"), 1, "lobby")

	active, err := s.LoadActiveSnapshots(ctx)
	if err != nil {
		t.Fatalf("load active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active snapshots, got %d", len(active))
	}
	for _, snap := range active {
		if snap.Status == "ended" {
			t.Fatalf("ended snapshot leaked into active set: %+v", snap)
		}
	}
}

func TestSaveAndLoadEventsOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.SaveEvent(ctx, "g1", "PIECE_MOVED", []byte("e1")); err != nil {
		t.Fatalf("save event 1: %v", err)
	}
	if err := s.SaveEvent(ctx, "g1", "TURN_ADVANCED", []byte("e2")); err != nil {
		t.Fatalf("save event 2: %v", err)
	}
	if err := s.SaveEvent(ctx, "g2", "PIECE_MOVED", []byte("other game")); err != nil {
		t.Fatalf("save event for other game: %v", err)
	}

	events, err := s.LoadEvents(ctx, "g1")
	if err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events for g1, got %d", len(events))
	}
	if events[0].EventType != "PIECE_MOVED" || events[1].EventType != "TURN_ADVANCED" {
		t.Fatalf("events out of order: %+v", events)
	}
	if events[0].EventID >= events[1].EventID {
		t.Fatalf("expected increasing event IDs, got %d then %d", events[0].EventID, events[1].EventID)
	}
}

func TestLoadEventsEmptyForUnknownGame(t *testing.T) {
	s := New()
	events, err := s.LoadEvents(context.Background(), "nope")
	if err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}
