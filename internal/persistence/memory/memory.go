// Package memory implements persistence.Store entirely in process memory.
// It satisfies the same port as persistence/postgres, so the manager and
// rules core exercise identically regardless of backing store — used by
// tests and by cmd/selfplay.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jarlboard/server/internal/persistence"
)

type snapshotRow struct {
	state     []byte
	version   int64
	status    string
	createdAt time.Time
	updatedAt time.Time
}

// Store is an in-memory, mutex-protected persistence.Store.
type Store struct {
	mu        sync.Mutex
	snapshots map[string]*snapshotRow
	events    map[string][]*persistence.StoredEvent
	nextEvent int64
}

// New creates an empty in-memory Store.
func New() *Store {
	return &Store{
		snapshots: make(map[string]*snapshotRow),
		events:    make(map[string][]*persistence.StoredEvent),
	}
}

// SaveSnapshot implements persistence.Store.
func (s *Store) SaveSnapshot(_ context.Context, gameID string, state []byte, version int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	existing, ok := s.snapshots[gameID]

	if version == 1 {
		if ok {
			return &persistence.VersionConflictError{GameID: gameID, ExpectedVersion: version}
		}
		s.snapshots[gameID] = &snapshotRow{state: state, version: version, status: status, createdAt: now, updatedAt: now}
		return nil
	}

	if !ok || existing.version != version-1 {
		return &persistence.VersionConflictError{GameID: gameID, ExpectedVersion: version}
	}
	existing.state = state
	existing.version = version
	existing.status = status
	existing.updatedAt = now
	return nil
}

// LoadSnapshot implements persistence.Store.
func (s *Store) LoadSnapshot(_ context.Context, gameID string) (*persistence.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.snapshots[gameID]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return toSnapshot(gameID, row), nil
}

// LoadActiveSnapshots implements persistence.Store.
func (s *Store) LoadActiveSnapshots(_ context.Context) ([]*persistence.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*persistence.Snapshot
	for gameID, row := range s.snapshots {
		if row.status == "ended" {
			continue
		}
		out = append(out, toSnapshot(gameID, row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// SaveEvent implements persistence.Store.
func (s *Store) SaveEvent(_ context.Context, gameID string, eventType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEvent++
	s.events[gameID] = append(s.events[gameID], &persistence.StoredEvent{
		EventID:   s.nextEvent,
		GameID:    gameID,
		EventType: eventType,
		Data:      data,
		CreatedAt: time.Now(),
	})
	return nil
}

// LoadEvents implements persistence.Store.
func (s *Store) LoadEvents(_ context.Context, gameID string) ([]*persistence.StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := append([]*persistence.StoredEvent(nil), s.events[gameID]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].EventID < out[j].EventID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func toSnapshot(gameID string, row *snapshotRow) *persistence.Snapshot {
	return &persistence.Snapshot{
		GameID:    gameID,
		State:     row.state,
		Version:   row.version,
		Status:    row.status,
		CreatedAt: row.createdAt,
		UpdatedAt: row.updatedAt,
	}
}
