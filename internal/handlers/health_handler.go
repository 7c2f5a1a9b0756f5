package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
)

// HealthHandler reports the detection service health
type HealthHandler struct {
	prober HealthProber
	logger arbor.ILogger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(prober HealthProber, logger arbor.ILogger) *HealthHandler {
	return &HealthHandler{
		prober: prober,
		logger: logger,
	}
}

// GetHealthHandler handles GET /api/health.
// Returns 503 when the detection service is unhealthy or unreachable.
func (h *HealthHandler) GetHealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	status, err := h.prober.Check(r.Context())
	code := http.StatusOK
	if err != nil || !status.Healthy {
		code = http.StatusServiceUnavailable
	}

	resp := map[string]interface{}{
		"service": status,
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	WriteJSON(w, code, resp)
}
