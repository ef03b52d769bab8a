package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/rfbridge/internal/state"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// handleHistory returns recent state changes for a device or subdevice.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "state history is not enabled")
		return
	}
	node, ok := s.resolve(w, r)
	if !ok {
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	entries, err := s.history.History(r.Context(), node.Path(), limit)
	if err != nil {
		s.logger.Error("reading state history failed", "path", node.Path(), "error", err)
		writeInternalError(w, "reading state history failed")
		return
	}
	if entries == nil {
		entries = []state.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":    node.Path(),
		"history": entries,
		"count":   len(entries),
	})
}

func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errInvalidLimit
	}
	if n > maxHistoryLimit {
		n = maxHistoryLimit
	}
	return n, nil
}
