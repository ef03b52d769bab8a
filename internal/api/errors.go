package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/rfbridge/internal/device"
	"github.com/nerrad567/rfbridge/internal/radio"
)

// Error is the JSON body of every non-2xx response outside the plain-text
// device endpoints' success path.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeInvalidState = "invalid_state"
	ErrCodeRadioTimeout = "radio_timeout"
	ErrCodeUnavailable  = "service_unavailable"
	ErrCodeInternal     = "internal_error"
)

var errInvalidLimit = errors.New("limit must be a positive integer")

// commandFailures maps SetState errors to responses, first match wins.
var commandFailures = []struct {
	err     error
	status  int
	code    string
	message string
}{
	{device.ErrInvalidState, http.StatusBadRequest, ErrCodeInvalidState, "Invalid state"},
	{radio.ErrTransportTimeout, http.StatusGatewayTimeout, ErrCodeRadioTimeout, "radio did not respond"},
}

// commandFailure classifies a SetState error. ok is false for errors with
// no specific mapping, which are internal.
func commandFailure(err error) (e Error, ok bool) {
	for _, f := range commandFailures {
		if errors.Is(err, f.err) {
			return Error{Status: f.status, Code: f.code, Message: f.message}, true
		}
	}
	return Error{Status: http.StatusInternalServerError, Code: ErrCodeInternal, Message: "setting state failed"}, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}
