package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/rfbridge/internal/device"
)

const ctxKeyClass contextKey = "class"

// deviceView is the JSON form of a device in listings.
type deviceView struct {
	Path       string             `json:"path"`
	Class      string             `json:"class"`
	Name       string             `json:"name"`
	Label      string             `json:"label"`
	Kind       string             `json:"kind"`
	Vendor     string             `json:"vendor"`
	State      *string            `json:"state"`
	States     []string           `json:"states"`
	SubDevices map[string]subView `json:"subdevices,omitempty"`
}

type subView struct {
	Path   string   `json:"path"`
	State  *string  `json:"state"`
	States []string `json:"states"`
}

// withClass fixes the class for routes that do not carry it in the URL.
func withClass(class string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyClass, class)))
		})
	}
}

// nodePath builds "class/name[/sub]" from the route.
func nodePath(r *http.Request) string {
	class := chi.URLParam(r, "class")
	if class == "" {
		class, _ = r.Context().Value(ctxKeyClass).(string) //nolint:errcheck // empty class fails resolution
	}
	path := class + "/" + chi.URLParam(r, "name")
	if sub := chi.URLParam(r, "sub"); sub != "" {
		path += "/" + sub
	}
	return path
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (device.Node, bool) {
	path := nodePath(r)
	node, err := s.devices.Resolve(path)
	if err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "no such device: "+path)
		return nil, false
	}
	return node, true
}

// handleGetState returns the state as text/plain, empty when unknown.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	node, ok := s.resolve(w, r)
	if !ok {
		return
	}
	state, known := node.State(r.Context())
	if !known {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeText(w, http.StatusOK, state)
}

// handleSetState transmits the body as the new state and returns the
// canonical state.
func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	node, ok := s.resolve(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "reading body: "+err.Error())
		return
	}

	state, err := node.SetState(r.Context(), strings.TrimSpace(string(body)))
	if err != nil {
		s.writeSetError(w, node.Path(), err)
		return
	}
	writeText(w, http.StatusOK, state)
}

func (s *Server) writeSetError(w http.ResponseWriter, path string, err error) {
	e, known := commandFailure(err)
	switch {
	case !known:
		s.logger.Error("setting state failed", "path", path, "error", err)
	case e.Status == http.StatusGatewayTimeout:
		s.logger.Warn("transmission timed out", "path", path, "error", err)
	}
	writeError(w, e.Status, e.Code, e.Message)
}

// handleListStates answers OPTIONS with the available states, one per line.
func (s *Server) handleListStates(w http.ResponseWriter, r *http.Request) {
	node, ok := s.resolve(w, r)
	if !ok {
		return
	}
	writeText(w, http.StatusOK, strings.Join(node.AvailableStates(), "\n"))
}

// handleListDevices returns every device with its current states.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	devices := s.devices.List()
	out := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		v := deviceView{
			Path:   d.Path(),
			Class:  d.Class(),
			Name:   d.Name(),
			Label:  d.Label(),
			Kind:   d.Kind().String(),
			Vendor: d.Vendor(),
			State:  stateOf(ctx, d),
			States: d.AvailableStates(),
		}
		for _, sub := range d.SubDevices() {
			if v.SubDevices == nil {
				v.SubDevices = make(map[string]subView)
			}
			v.SubDevices[sub.Name()] = subView{
				Path:   sub.Path(),
				State:  stateOf(ctx, sub),
				States: sub.AvailableStates(),
			}
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": out, "count": len(out)})
}

// handleIndex lists "path - state" lines sorted by path.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var lines []string
	for _, d := range s.devices.List() {
		state, ok := d.State(r.Context())
		if !ok {
			state = "Unknown"
		}
		lines = append(lines, fmt.Sprintf("/%ss/%s - %s", d.Class(), d.Name(), state))
	}
	sort.Strings(lines)
	writeText(w, http.StatusOK, strings.Join(lines, "\n"))
}

func stateOf(ctx context.Context, n device.Node) *string {
	if s, ok := n.State(ctx); ok {
		return &s
	}
	return nil
}
