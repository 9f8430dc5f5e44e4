// Package router arma el árbol de rutas HTTP del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	healthctrl "github.com/dropDatabas3/socialauth/internal/http/controllers/health"
	socialctrl "github.com/dropDatabas3/socialauth/internal/http/controllers/social"
	mw "github.com/dropDatabas3/socialauth/internal/http/middlewares"
)

// Deps contiene los controllers que el router expone.
type Deps struct {
	Social *socialctrl.Controllers
	Health *healthctrl.HealthController
}

// New construye el router con el middleware chain estándar.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.WithRecover())
	r.Use(mw.WithRequestID())
	r.Use(mw.WithSecurityHeaders())
	r.Use(mw.WithLogging())

	r.Get("/healthz", d.Health.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Endpoints de autenticación: respuestas de un solo uso, nunca cacheables.
	r.Group(func(r chi.Router) {
		r.Use(mw.WithNoStore())

		r.Get("/auth/backends/", d.Social.Backends.List)

		// El complete acepta GET (query) y POST (form) según el proveedor.
		r.Get("/auth/complete/{backend}/", d.Social.Complete.Complete)
		r.Post("/auth/complete/{backend}/", d.Social.Complete.Complete)

		r.Delete("/auth/disconnect/{backend}/", d.Social.Disconnect.Disconnect)
		r.Post("/auth/disconnect/{backend}/", d.Social.Disconnect.Disconnect)

		r.Get("/auth/{backend}/", d.Social.Start.Start)
	})

	return r
}
