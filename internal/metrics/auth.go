package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics de los flujos de autenticación social. Paquete
// standalone para evitar ciclos de import entre servicios y HTTP.

var (
	AuthStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "social_auth_started_total",
		Help: "Flujos de autenticación iniciados, por backend",
	}, []string{"backend"})

	AuthCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "social_auth_completed_total",
		Help: "Flujos completados con identidad autenticada, por backend",
	}, []string{"backend"})

	AuthFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "social_auth_failed_total",
		Help: "Flujos abortados por rechazo o error del proveedor, por backend",
	}, []string{"backend"})

	AuthSuspended = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "social_auth_suspended_total",
		Help: "Pipelines suspendidos a la espera del round-trip del browser",
	}, []string{"backend"})

	ProviderLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "social_auth_provider_latency_ms",
		Help:    "Latencia del intercambio de token con el proveedor en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"backend"})
)

// RegisterAuth registers the auth metrics on the given registry (or default if nil).
func RegisterAuth(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		AuthStarted, AuthCompleted, AuthFailed, AuthSuspended, ProviderLatency,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
