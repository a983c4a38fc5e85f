package api

import (
	"context"
	"net/http"

	"github.com/strideapp/stride/internal/api/respond"
)

// pinger is implemented by the SQL-backed stores.
type pinger interface {
	HealthPing(ctx context.Context) error
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "stride"})
}

func (h *handler) healthDB(w http.ResponseWriter, r *http.Request) {
	p, ok := h.deps.Store.(pinger)
	if !ok {
		respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "storage": "unverified"})
		return
	}
	if err := p.HealthPing(r.Context()); err != nil {
		h.deps.Log.Error().Err(err).Msg("storage health check failed")
		respond.WriteError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "storage": "reachable"})
}
