// Package health contiene el service para health checks.
package health

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dropDatabas3/socialauth/internal/observability/logger"
)

// HealthStatus es el estado de un componente.
type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse es la respuesta completa del health check.
type HealthResponse struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version,omitempty"`
	Commit     string                  `json:"commit,omitempty"`
	Components map[string]HealthStatus `json:"components"`
	Backends   []string                `json:"backends,omitempty"`
	Timestamp  time.Time               `json:"timestamp"`
}

// HealthService define las operaciones de health check.
type HealthService interface {
	Check(ctx context.Context) HealthResponse
}

// Deps contiene las dependencias inyectables para el health service.
type Deps struct {
	// StoreCheck verifica el repositorio de cuentas (crítico).
	StoreCheck func(ctx context.Context) error

	// SessionCheck verifica el session store (crítico sólo con redis).
	SessionCheck func(ctx context.Context) error

	// Backends son los nombres de backends registrados (informativo).
	Backends []string
}

type healthService struct {
	deps Deps
}

// NewHealthService crea un nuevo service de health check.
func NewHealthService(deps Deps) HealthService {
	return &healthService{deps: deps}
}

const componentHealth = "health"

func (s *healthService) Check(ctx context.Context) HealthResponse {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component(componentHealth),
		logger.Op("Check"),
	)

	response := HealthResponse{
		Components: make(map[string]HealthStatus),
		Backends:   s.deps.Backends,
		Timestamp:  time.Now().UTC(),
	}

	if v := os.Getenv("SERVICE_VERSION"); v != "" {
		response.Version = v
	}
	if git := os.Getenv("SERVICE_COMMIT"); git != "" {
		response.Commit = git
	}

	hasErrors := false

	// 1) Repositorio de cuentas (crítico)
	if s.deps.StoreCheck != nil {
		if err := s.deps.StoreCheck(ctx); err != nil {
			response.Components["store"] = HealthStatus{
				Status:  "error",
				Message: fmt.Sprintf("unavailable: %v", err),
			}
			hasErrors = true
			log.Error("store unavailable", logger.Err(err))
		} else {
			response.Components["store"] = HealthStatus{Status: "ok"}
		}
	} else {
		response.Components["store"] = HealthStatus{
			Status:  "disabled",
			Message: "memory store only",
		}
	}

	// 2) Session store (crítico en modo redis)
	if s.deps.SessionCheck != nil {
		if err := s.deps.SessionCheck(ctx); err != nil {
			response.Components["session"] = HealthStatus{
				Status:  "error",
				Message: fmt.Sprintf("unavailable: %v", err),
			}
			hasErrors = true
			log.Error("session store unavailable", logger.Err(err))
		} else {
			response.Components["session"] = HealthStatus{Status: "ok"}
		}
	} else {
		response.Components["session"] = HealthStatus{
			Status:  "disabled",
			Message: "memory session only",
		}
	}

	if hasErrors {
		response.Status = "degraded"
	} else {
		response.Status = "ready"
	}

	return response
}
