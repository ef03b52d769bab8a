package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/rfbridge/internal/device"
)

// DefaultHistoryLimit caps History when no limit is given.
const DefaultHistoryLimit = 100

// MetricsWriter receives state changes for time-series storage.
type MetricsWriter interface {
	WriteStateChange(path, class, state, source string, at time.Time)
}

// HistoryEntry is one row of state_history.
type HistoryEntry struct {
	Path   string    `json:"path"`
	State  string    `json:"state"`
	Source string    `json:"source"`
	Time   time.Time `json:"time"`
}

// HistoryRecorder appends device events to state_history and forwards
// them to an optional MetricsWriter.
type HistoryRecorder struct {
	db      *sql.DB
	metrics MetricsWriter
	logger  Logger
}

// NewHistoryRecorder creates a recorder. metrics may be nil.
func NewHistoryRecorder(db *sql.DB, metrics MetricsWriter, logger Logger) *HistoryRecorder {
	return &HistoryRecorder{db: db, metrics: metrics, logger: orNoop(logger)}
}

// Record stores one event.
func (h *HistoryRecorder) Record(ctx context.Context, e device.Event) error {
	at := e.Time
	if at.IsZero() {
		at = time.Now()
	}
	if h.metrics != nil {
		h.metrics.WriteStateChange(e.Path, e.Class, e.State, string(e.Source), at)
	}

	_, err := h.db.ExecContext(ctx,
		`INSERT INTO state_history (path, state, source, changed_at) VALUES (?, ?, ?, ?)`,
		e.Path, e.State, string(e.Source), at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording history for %s: %w", e.Path, err)
	}
	return nil
}

// Run records events until ctx is done or events is closed.
func (h *HistoryRecorder) Run(ctx context.Context, events <-chan device.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := h.Record(ctx, e); err != nil {
				h.logger.Warn("history write failed", "path", e.Path, "error", err)
			}
		}
	}
}

// History returns the newest entries for path first.
func (h *HistoryRecorder) History(ctx context.Context, path string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT path, state, source, changed_at
		FROM state_history
		WHERE path = ?
		ORDER BY changed_at DESC, id DESC
		LIMIT ?`, path, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history for %s: %w", path, err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var changedAt string
		if err := rows.Scan(&e.Path, &e.State, &e.Source, &changedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		e.Time, _ = time.Parse(time.RFC3339Nano, changedAt) //nolint:errcheck // Format is controlled
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
