// Package store define el repositorio de cuentas y asociaciones sociales:
// el vínculo persistido entre una cuenta local y un par (provider, uid)
// externo, con su blob de extra-data.
package store

import (
	"context"
	"errors"
	"time"
)

// Account es la cuenta local a la que se asocian identidades externas.
type Account struct {
	ID        string
	Email     string
	Username  string
	FullName  string
	CreatedAt time.Time
}

// Association vincula una cuenta con una identidad externa.
// Constraint único sobre (Provider, UID).
type Association struct {
	ID        string
	AccountID string
	Provider  string
	UID       string
	ExtraData map[string]any
	CreatedAt time.Time
}

var (
	// ErrNotFound indica cuenta o asociación inexistente.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate indica violación del único (provider, uid).
	ErrDuplicate = errors.New("store: association already exists")
)

// Repository es el contrato de persistencia que consume el pipeline.
type Repository interface {
	Ping(ctx context.Context) error

	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, id string) (*Account, error)

	// FindAssociation busca por el par único (provider, uid).
	FindAssociation(ctx context.Context, provider, uid string) (*Association, error)

	// CreateAssociation persiste el vínculo. ErrDuplicate si ya existe.
	CreateAssociation(ctx context.Context, assoc *Association) error

	// UpdateExtraData reemplaza el blob de extra-data de la asociación.
	UpdateExtraData(ctx context.Context, id string, extra map[string]any) error

	// ListAssociations retorna los vínculos de una cuenta.
	ListAssociations(ctx context.Context, accountID string) ([]*Association, error)

	// DeleteAssociation desvincula un backend de la cuenta. Con uid vacío
	// borra todas las asociaciones del provider para esa cuenta.
	DeleteAssociation(ctx context.Context, accountID, provider, uid string) error
}
