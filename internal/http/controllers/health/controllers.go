// Package health contiene el controller de health check.
package health

import (
	"encoding/json"
	"net/http"

	svc "github.com/dropDatabas3/socialauth/internal/http/services/health"
)

// HealthController expone el estado del servicio.
type HealthController struct {
	service svc.HealthService
}

// NewHealthController crea un nuevo HealthController.
func NewHealthController(s svc.HealthService) *HealthController {
	return &HealthController{service: s}
}

// Health handles GET /healthz
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	response := c.service.Check(r.Context())

	status := http.StatusOK
	if response.Status != "ready" {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}
