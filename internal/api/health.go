package api

import (
	"net/http"

	"github.com/askdocs/askdocs/internal/log"
)

// healthHandler serves liveness and readiness probes.
type healthHandler struct {
	db     Pinger
	index  Counter
	logger log.Logger
}

func newHealthHandler(db Pinger, index Counter, logger log.Logger) *healthHandler {
	return &healthHandler{db: db, index: index, logger: logger}
}

func (h *healthHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /ready", h.handleReady)
}

// handleHealth is the liveness probe. Always returns 200 if the process is up.
func (h *healthHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady is the readiness probe. The server is ready when the database
// answers and at least one chunk has been indexed; an empty index can only
// produce fallback answers.
func (h *healthHandler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": "database unreachable",
			})
			return
		}
	}

	count, err := h.index.Count(r.Context())
	if err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database unreachable",
		})
		return
	}
	if count == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "no documents indexed",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"chunks": count,
	})
}
