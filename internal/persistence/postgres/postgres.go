// Package postgres implements persistence.Store against a Postgres
// database via lib/pq, following the parameterized-query / error-wrapping
// conventions of the repository package this module was adapted from.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/jarlboard/server/internal/persistence"
)

const pqUniqueViolation = "23505"

// Store is a lib/pq-backed persistence.Store.
type Store struct {
	db *sql.DB
}

// New wraps an open *sql.DB as a persistence.Store. Callers are expected to
// have already run the schema migration creating the snapshots and events
// tables.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveSnapshot implements persistence.Store. version == 1 inserts a new
// row; any later version updates the row currently at version-1, and a
// zero-row update means another writer raced us — reported as a
// VersionConflictError rather than silently dropping the write.
func (s *Store) SaveSnapshot(ctx context.Context, gameID string, state []byte, version int64, status string) error {
	if version == 1 {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO game_snapshots (game_id, state, version, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, now(), now())`,
			gameID, state, version, status,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return &persistence.VersionConflictError{GameID: gameID, ExpectedVersion: version}
			}
			return &persistence.DatabaseUnavailableError{Op: "save snapshot", Err: err}
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE game_snapshots SET state = $1, version = $2, status = $3, updated_at = now()
		 WHERE game_id = $4 AND version = $5`,
		state, version, status, gameID, version-1,
	)
	if err != nil {
		return &persistence.DatabaseUnavailableError{Op: "save snapshot", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save snapshot: rows affected: %w", err)
	}
	if n == 0 {
		return &persistence.VersionConflictError{GameID: gameID, ExpectedVersion: version}
	}
	return nil
}

// LoadSnapshot implements persistence.Store.
func (s *Store) LoadSnapshot(ctx context.Context, gameID string) (*persistence.Snapshot, error) {
	var snap persistence.Snapshot
	snap.GameID = gameID
	err := s.db.QueryRowContext(ctx,
		`SELECT state, version, status, created_at, updated_at
		 FROM game_snapshots WHERE game_id = $1`, gameID,
	).Scan(&snap.State, &snap.Version, &snap.Status, &snap.CreatedAt, &snap.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return &snap, nil
}

// LoadActiveSnapshots implements persistence.Store.
func (s *Store) LoadActiveSnapshots(ctx context.Context) ([]*persistence.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT game_id, state, version, status, created_at, updated_at
		 FROM game_snapshots WHERE status != 'ended'
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("load active snapshots: %w", err)
	}
	defer rows.Close()

	var out []*persistence.Snapshot
	for rows.Next() {
		var snap persistence.Snapshot
		if err := rows.Scan(&snap.GameID, &snap.State, &snap.Version, &snap.Status, &snap.CreatedAt, &snap.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, &snap)
	}
	return out, rows.Err()
}

// SaveEvent implements persistence.Store.
func (s *Store) SaveEvent(ctx context.Context, gameID string, eventType string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO game_events (game_id, event_type, data, created_at) VALUES ($1, $2, $3, now())`,
		gameID, eventType, data,
	)
	if err != nil {
		return &persistence.DatabaseUnavailableError{Op: "save event", Err: err}
	}
	return nil
}

// LoadEvents implements persistence.Store.
func (s *Store) LoadEvents(ctx context.Context, gameID string) ([]*persistence.StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, game_id, event_type, data, created_at
		 FROM game_events WHERE game_id = $1
		 ORDER BY created_at ASC, id ASC`, gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var out []*persistence.StoredEvent
	for rows.Next() {
		var ev persistence.StoredEvent
		if err := rows.Scan(&ev.EventID, &ev.GameID, &ev.EventType, &ev.Data, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation, raised when two writers race to insert the first snapshot for
// the same game.
func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && string(pqErr.Code) == pqUniqueViolation
}
