package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	service string
	store   Pinger
}

// NewHealthHandler builds a health check. store may be nil for in-memory stores.
func NewHealthHandler(service string, store Pinger) *HealthHandler {
	return &HealthHandler{service: service, store: store}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "ok",
		"service":   h.service,
		"timestamp": time.Now().UTC(),
	}

	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Health(ctx); err != nil {
			body["status"] = "degraded"
			body["database"] = "unreachable"
			writeSuccess(w, http.StatusServiceUnavailable, body, nil)
			return
		}
		body["database"] = "connected"
	}

	writeSuccess(w, http.StatusOK, body, nil)
}
