package social

import (
	"encoding/json"
	"net/http"

	svc "github.com/dropDatabas3/socialauth/internal/http/services/social"
)

// BackendsController lists registered auth backends.
type BackendsController struct {
	service svc.Service
}

// NewBackendsController creates a new BackendsController.
func NewBackendsController(s svc.Service) *BackendsController {
	return &BackendsController{service: s}
}

// List handles GET /auth/backends/
func (c *BackendsController) List(w http.ResponseWriter, r *http.Request) {
	backends := c.service.Backends(r.Context())

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]any{"backends": backends})
}
