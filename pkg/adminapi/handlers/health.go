package handlers

import (
	"net/http"
	"time"

	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/state"
	"github.com/marmos91/nfs4d/pkg/export"
)

// HealthHandler serves the unauthenticated probes.
type HealthHandler struct {
	state     *state.Manager
	exports   *export.Table
	startTime time.Time
}

// NewHealthHandler creates a health handler. Either argument may be nil,
// in which case the readiness probe reports unhealthy.
func NewHealthHandler(sm *state.Manager, exports *export.Table) *HealthHandler {
	return &HealthHandler{
		state:     sm,
		exports:   exports,
		startTime: time.Now(),
	}
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"service":    "nfs4d",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready. The server is ready once the state
// manager and export table exist; a running grace period is reported but
// does not make the server unready.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.state == nil || h.exports == nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("server not initialized"))
		return
	}

	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"exports":  len(h.exports.All()),
		"clients":  h.state.ClientCount(),
		"sessions": h.state.SessionCount(),
		"in_grace": h.state.InGrace(),
		"lease":    h.state.LeaseDuration().String(),
	}))
}
