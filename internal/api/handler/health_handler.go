package handler

import (
	"context"
	"net/http"
)

// Pinger is anything with a connectivity check. pgxpool.Pool satisfies it
// directly; clients with a different Ping shape are wrapped in PingerFunc.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a plain function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler serves the liveness and readiness probe endpoints.
type HealthHandler struct {
	deps map[string]Pinger
}

// NewHealthHandler takes the named backends readiness should verify.
// Nil entries are skipped so the in-memory broker mode needs no stub.
func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// Health handles GET /health
//
// @Summary  Liveness probe
// @Tags     system
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /ready
//
// @Summary  Readiness probe
// @Tags     system
// @Produce  json
// @Success  200  {object}  map[string]string
// @Failure  503  {object}  map[string]string
// @Router   /ready [get]
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	result := make(map[string]string, len(h.deps)+1)
	ok := true
	for name, dep := range h.deps {
		if dep == nil {
			continue
		}
		if err := dep.Ping(r.Context()); err != nil {
			result[name] = err.Error()
			ok = false
			continue
		}
		result[name] = "ok"
	}
	if !ok {
		result["status"] = "degraded"
		respondJSON(w, http.StatusServiceUnavailable, result)
		return
	}
	result["status"] = "ok"
	respondJSON(w, http.StatusOK, result)
}
