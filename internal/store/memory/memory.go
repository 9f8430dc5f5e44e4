// Package memory implementa el repositorio en memoria.
// Útil para desarrollo y tests; los datos viven lo que vive el proceso.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/socialauth/internal/store"
)

type repo struct {
	mu       sync.RWMutex
	accounts map[string]*store.Account
	assocs   map[string]*store.Association // key: provider + "\x00" + uid
}

// New crea un repositorio en memoria vacío.
func New() store.Repository {
	return &repo{
		accounts: make(map[string]*store.Account),
		assocs:   make(map[string]*store.Association),
	}
}

func assocKey(provider, uid string) string { return provider + "\x00" + uid }

func (r *repo) Ping(ctx context.Context) error { return nil }

func (r *repo) CreateAccount(ctx context.Context, a *store.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	cp := *a
	r.accounts[a.ID] = &cp
	return nil
}

func (r *repo) GetAccount(ctx context.Context, id string) (*store.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *repo) FindAssociation(ctx context.Context, provider, uid string) (*store.Association, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assocs[assocKey(provider, uid)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *repo) CreateAssociation(ctx context.Context, assoc *store.Association) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := assocKey(assoc.Provider, assoc.UID)
	if _, dup := r.assocs[key]; dup {
		return store.ErrDuplicate
	}
	if assoc.ID == "" {
		assoc.ID = uuid.NewString()
	}
	if assoc.CreatedAt.IsZero() {
		assoc.CreatedAt = time.Now().UTC()
	}
	cp := *assoc
	r.assocs[key] = &cp
	return nil
}

func (r *repo) UpdateExtraData(ctx context.Context, id string, extra map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assocs {
		if a.ID == id {
			a.ExtraData = extra
			return nil
		}
	}
	return store.ErrNotFound
}

func (r *repo) ListAssociations(ctx context.Context, accountID string) ([]*store.Association, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*store.Association
	for _, a := range r.assocs {
		if a.AccountID == accountID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *repo) DeleteAssociation(ctx context.Context, accountID, provider, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := false
	for key, a := range r.assocs {
		if a.AccountID != accountID || a.Provider != provider {
			continue
		}
		if uid != "" && a.UID != uid {
			continue
		}
		delete(r.assocs, key)
		deleted = true
	}
	if !deleted {
		return store.ErrNotFound
	}
	return nil
}
