package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/nfs4d/internal/logger"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/state"
)

// ClientHandler serves NFSv4 client and session introspection.
type ClientHandler struct {
	sm *state.Manager
}

// NewClientHandler creates a client handler. It returns nil when sm is nil.
func NewClientHandler(sm *state.Manager) *ClientHandler {
	if sm == nil {
		return nil
	}
	return &ClientHandler{sm: sm}
}

// List handles GET /api/v1/clients.
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, h.sm.ListClients())
}

// Get handles GET /api/v1/clients/{id}.
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := clientIDParam(w, r)
	if !ok {
		return
	}
	want := fmt.Sprintf("%016x", id)
	for _, c := range h.sm.ListClients() {
		if c.ClientID == want {
			WriteJSONOK(w, c)
			return
		}
	}
	NotFound(w, "client not found")
}

// Sessions handles GET /api/v1/clients/{id}/sessions.
func (h *ClientHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	id, ok := clientIDParam(w, r)
	if !ok {
		return
	}
	if h.sm.GetClient(id) == nil {
		NotFound(w, "client not found")
		return
	}

	want := fmt.Sprintf("%016x", id)
	out := make([]state.SessionInfo, 0)
	for _, s := range h.sm.ListSessions() {
		if s.ClientID == want {
			out = append(out, s)
		}
	}
	WriteJSONOK(w, out)
}

// Evict handles DELETE /api/v1/clients/{id}. The client's sessions are
// destroyed with it.
func (h *ClientHandler) Evict(w http.ResponseWriter, r *http.Request) {
	id, ok := clientIDParam(w, r)
	if !ok {
		return
	}
	if err := h.sm.EvictClient(r.Context(), id); err != nil {
		if errors.Is(err, state.ErrStaleClientID) {
			NotFound(w, "client not found")
			return
		}
		InternalServerError(w, err.Error())
		return
	}
	logger.Info("Client evicted via admin API", "client_id", fmt.Sprintf("%016x", id))
	WriteNoContent(w)
}

// ListSessions handles GET /api/v1/sessions.
func (h *ClientHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, h.sm.ListSessions())
}

// clientIDParam parses the hex client id in the URL.
func clientIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 16, 64)
	if err != nil {
		BadRequest(w, "invalid client ID format, expected hex")
		return 0, false
	}
	return id, true
}
