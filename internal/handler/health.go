package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/sakif/imagesearch/internal/repository"
)

const healthTimeout = 2 * time.Second

// HealthHandler reports whether the backends answer a ping.
type HealthHandler struct {
	checks map[string]repository.Pinger
}

// NewHealthHandler takes the backends to check, keyed by the name shown
// in the response.
func NewHealthHandler(checks map[string]repository.Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HTTP: GET /healthz
// RESPONSE: 200 {"status":"ok",...} or 503 {"status":"degraded",...}
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
