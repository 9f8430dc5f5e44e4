// Package session provee el almacenamiento transitorio scoped a una sesión
// de usuario que consume la orquestación: estado parcial de pipeline,
// request tokens OAuth1, destino de redirección post-login.
//
// Soporta:
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (distribuido, para producción)
//
// Pop es get-and-remove atómico: dos requests concurrentes sobre la misma
// clave no pueden consumir el mismo valor; el que pierde ve ErrNotFound.
package session

import (
	"context"
	"time"
)

// Store define las operaciones de estado de sesión.
type Store interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL. Si ttl es 0 usa el default del store.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Pop obtiene y elimina atómicamente. Retorna ErrNotFound si no existe
	// o si otro request lo consumió primero.
	Pop(ctx context.Context, key string) (string, error)

	// Delete elimina una key. Borrar una key ausente no es error.
	Delete(ctx context.Context, key string) error
}

// ErrNotFound indica que la key no existe (o ya fue consumida).
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "session: key not found" }

// IsNotFound verifica si el error es por key ausente.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}
