package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.withRequestID)
	r.Use(s.accessLog)
	r.Use(s.cors)
	r.Use(limitBody)

	r.Get("/", s.handleIndex)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stream", s.handleStream)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Route("/{class}/{name}", func(r chi.Router) {
				deviceRoutes(r, s)
				r.Get("/history", s.handleHistory)
				r.Route("/{sub}", func(r chi.Router) {
					deviceRoutes(r, s)
					r.Get("/history", s.handleHistory)
				})
			})
		})
	})

	// Plural class paths, e.g. /fans/bedroom/speed.
	for _, class := range []string{"fan", "light"} {
		r.Route("/"+class+"s/{name}", func(r chi.Router) {
			r.Use(withClass(class))
			deviceRoutes(r, s)
			r.Route("/{sub}", func(r chi.Router) {
				deviceRoutes(r, s)
			})
		})
	}

	return r
}

func deviceRoutes(r chi.Router, s *Server) {
	r.Get("/", s.handleGetState)
	r.Put("/", s.handleSetState)
	r.Post("/", s.handleSetState)
	r.Options("/", s.handleListStates)
}

// handleHealth reports process health with the merged radio and
// recognizer counters.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status":         "ok",
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"devices":        len(s.devices.List()),
		"stream_clients": s.hub.ClientCount(),
	}
	if s.stats != nil {
		body["statistics"] = s.stats()
	}
	writeJSON(w, http.StatusOK, body)
}
