package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore keeps states in the device_states table.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore wraps an open, migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// Get returns the stored state for path.
func (s *SQLiteStore) Get(ctx context.Context, path string) (string, bool, error) {
	var state string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM device_states WHERE path = ?`, path).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying state %s: %w", path, err)
	}
	return state, true, nil
}

// Set upserts the state for path.
func (s *SQLiteStore) Set(ctx context.Context, path, state string) error {
	query := `
		INSERT INTO device_states (path, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, path, state, s.now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("storing state %s: %w", path, err)
	}
	return nil
}

// All returns every stored state keyed by path.
func (s *SQLiteStore) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, state FROM device_states ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("querying states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]string)
	for rows.Next() {
		var path, state string
		if err := rows.Scan(&path, &state); err != nil {
			return nil, fmt.Errorf("scanning state row: %w", err)
		}
		states[path] = state
	}
	return states, rows.Err()
}
