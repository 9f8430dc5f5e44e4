package backend

import (
	"errors"
	"fmt"
)

// AuthError representa un handshake rechazado: error de red, respuesta
// no-2xx, payload malformado o rechazo de whitelist. El flujo se abandona
// sin retener estado parcial; la orquestación decide la cara visible.
type AuthError struct {
	Backend string
	Reason  string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth failed [%s]: %s: %v", e.Backend, e.Reason, e.Err)
	}
	return fmt.Sprintf("auth failed [%s]: %s", e.Backend, e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Failf construye un AuthError con formato.
func Failf(backendName, format string, args ...any) *AuthError {
	return &AuthError{Backend: backendName, Reason: fmt.Sprintf(format, args...)}
}

// FailCause construye un AuthError envolviendo la causa.
func FailCause(backendName, reason string, err error) *AuthError {
	return &AuthError{Backend: backendName, Reason: reason, Err: err}
}

// IsAuthError indica si err es (o envuelve) un AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// ConfigError indica una credencial requerida ausente sin fallback anónimo
// permitido. Fatal para el flujo; no es un error reintentable por el usuario.
type ConfigError struct {
	Backend string
	Setting string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error [%s]: missing setting %s", e.Backend, e.Setting)
}

// ErrUnknownBackend se retorna cuando el nombre no está en el registry.
var ErrUnknownBackend = errors.New("backend: unknown backend")
