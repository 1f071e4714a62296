// Package persistence defines the durable-storage port the game manager
// depends on (spec §6): opaque versioned snapshots plus an append-only
// event log. The manager never depends on a concrete store, only this
// interface — concrete stores live in persistence/postgres and
// persistence/memory.
package persistence

import (
	"context"
	"errors"
	"time"
)

// Snapshot is one persisted row for a game: the machine's top-level state
// name plus the entire serialized GameContext, opaque to this package.
type Snapshot struct {
	GameID    string
	State     []byte // opaque serialized GameContext
	Version   int64
	Status    string // machine top-level state name
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StoredEvent is one row of the append-only per-game event log.
type StoredEvent struct {
	EventID   int64
	GameID    string
	EventType string
	Data      []byte // opaque serialized rules.Event
	CreatedAt time.Time
}

// VersionConflictError is raised by SaveSnapshot when the expected prior
// version does not match what is stored — an optimistic-lock failure.
type VersionConflictError struct {
	GameID          string
	ExpectedVersion int64
}

func (e *VersionConflictError) Error() string {
	return "persistence: version conflict for game " + e.GameID
}

// DatabaseUnavailableError wraps a transient store failure so callers can
// distinguish "the store rejected this write" from "the store is down".
type DatabaseUnavailableError struct {
	Op  string
	Err error
}

func (e *DatabaseUnavailableError) Error() string {
	return "persistence: " + e.Op + " unavailable: " + e.Err.Error()
}

func (e *DatabaseUnavailableError) Unwrap() error { return e.Err }

// ErrNotFound is returned by LoadSnapshot when no row exists for a gameId.
var ErrNotFound = errors.New("persistence: snapshot not found")

// Store is the full persistence port: saveSnapshot/loadSnapshot/
// loadActiveSnapshots/saveEvent/loadEvents from spec §6, named per Go
// exported-method convention.
type Store interface {
	// SaveSnapshot inserts when version == 1, else updates the row
	// currently at version-1. A stale version returns *VersionConflictError.
	SaveSnapshot(ctx context.Context, gameID string, state []byte, version int64, status string) error
	// LoadSnapshot returns the stored row, or ErrNotFound.
	LoadSnapshot(ctx context.Context, gameID string) (*Snapshot, error)
	// LoadActiveSnapshots returns all snapshots whose status != "ended",
	// ordered by CreatedAt ascending.
	LoadActiveSnapshots(ctx context.Context) ([]*Snapshot, error)
	// SaveEvent appends one event row.
	SaveEvent(ctx context.Context, gameID string, eventType string, data []byte) error
	// LoadEvents returns every event for gameID ordered by
	// (CreatedAt ASC, EventID ASC).
	LoadEvents(ctx context.Context, gameID string) ([]*StoredEvent, error)
}
