// Package social implementa la orquestación de los flujos de autenticación
// social: iniciar el handshake, completarlo cuando el proveedor redirige de
// vuelta, y desvincular identidades. Es la capa que une backends, pipeline,
// sesión y persistencia; los controllers sólo traducen HTTP.
package social

import (
	"context"
	"errors"
	"net/url"
)

// Errores sentinel del servicio. Los controllers mapean cada uno a una
// respuesta HTTP o a una redirección con error.
var (
	ErrUnknownBackend   = errors.New("social: unknown backend")
	ErrBackendDisabled  = errors.New("social: backend disabled")
	ErrStateMismatch    = errors.New("social: state mismatch")
	ErrNotAuthenticated = errors.New("social: authentication required")
	ErrNotAssociated    = errors.New("social: association not found")
)

// StartRequest inicia un flujo de login/asociación.
type StartRequest struct {
	Backend string

	// SessionID scopea el estado transitorio (state, partial, next) a la
	// sesión del browser.
	SessionID string

	// CurrentUserID no vacío convierte el flujo en asociación a esa cuenta.
	CurrentUserID string

	// Next es el destino post-login pedido por el caller (query ?next=).
	Next string

	// BaseURL absoluta del servicio, para construir la callback URL.
	BaseURL string
}

// StartResult es la redirección hacia el proveedor.
type StartResult struct {
	RedirectURL string
	Method      string // "GET" | "POST"
	Form        url.Values
}

// CompleteRequest procesa el retorno del proveedor (o reanuda un pipeline
// suspendido por un paso intermedio).
type CompleteRequest struct {
	Backend       string
	SessionID     string
	CurrentUserID string

	// Params son los parámetros del callback (query o form del proveedor).
	Params map[string]string

	BaseURL string
}

// CompleteResult es la salida de un complete.
type CompleteResult struct {
	// Suspended indica que el pipeline volvió a interrumpirse; el estado
	// quedó guardado en sesión y un próximo complete lo reanuda.
	Suspended bool

	RedirectURL string
	AccountID   string
	Backend     string
	NewAccount  bool
}

// DisconnectRequest desvincula un backend de la cuenta autenticada.
// UID vacío elimina todas las asociaciones del backend.
type DisconnectRequest struct {
	Backend       string
	CurrentUserID string
	UID           string
}

// BackendInfo describe un backend registrado para el listado público.
type BackendInfo struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Enabled bool   `json:"enabled"`
}

// Service es el contrato de orquestación social.
type Service interface {
	Start(ctx context.Context, req StartRequest) (*StartResult, error)
	Complete(ctx context.Context, req CompleteRequest) (*CompleteResult, error)
	Disconnect(ctx context.Context, req DisconnectRequest) error
	Backends(ctx context.Context) []BackendInfo
}
