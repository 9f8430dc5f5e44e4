// Package pg implementa el repositorio sobre PostgreSQL con pgx.
package pg

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/socialauth/internal/store"
)

// Store implementa store.Repository sobre un pool pgx.
type Store struct {
	pool *pgxpool.Pool
}

// New abre el pool y verifica la conexión.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close cierra el pool.
func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) CreateAccount(ctx context.Context, a *store.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	const q = `
		INSERT INTO accounts (id, email, username, full_name, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := s.pool.Exec(ctx, q, a.ID, a.Email, a.Username, a.FullName, a.CreatedAt)
	return err
}

func (s *Store) GetAccount(ctx context.Context, id string) (*store.Account, error) {
	const q = `
		SELECT id, email, username, full_name, created_at
		FROM accounts WHERE id = $1`
	var a store.Account
	err := s.pool.QueryRow(ctx, q, id).Scan(&a.ID, &a.Email, &a.Username, &a.FullName, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) FindAssociation(ctx context.Context, provider, uid string) (*store.Association, error) {
	const q = `
		SELECT id, account_id, provider, uid, extra_data, created_at
		FROM social_associations
		WHERE provider = $1 AND uid = $2`
	var (
		a   store.Association
		raw []byte
	)
	err := s.pool.QueryRow(ctx, q, provider, uid).Scan(&a.ID, &a.AccountID, &a.Provider, &a.UID, &raw, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &a.ExtraData)
	}
	return &a, nil
}

func (s *Store) CreateAssociation(ctx context.Context, assoc *store.Association) error {
	if assoc.ID == "" {
		assoc.ID = uuid.NewString()
	}
	if assoc.CreatedAt.IsZero() {
		assoc.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(assoc.ExtraData)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO social_associations (id, account_id, provider, uid, extra_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = s.pool.Exec(ctx, q, assoc.ID, assoc.AccountID, assoc.Provider, assoc.UID, raw, assoc.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	return err
}

func (s *Store) UpdateExtraData(ctx context.Context, id string, extra map[string]any) error {
	raw, err := json.Marshal(extra)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE social_associations SET extra_data = $2 WHERE id = $1`, id, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListAssociations(ctx context.Context, accountID string) ([]*store.Association, error) {
	const q = `
		SELECT id, account_id, provider, uid, extra_data, created_at
		FROM social_associations
		WHERE account_id = $1
		ORDER BY created_at`
	rows, err := s.pool.Query(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*store.Association
	for rows.Next() {
		var (
			a   store.Association
			raw []byte
		)
		if err := rows.Scan(&a.ID, &a.AccountID, &a.Provider, &a.UID, &raw, &a.CreatedAt); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &a.ExtraData)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *Store) DeleteAssociation(ctx context.Context, accountID, provider, uid string) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if uid == "" {
		tag, err = s.pool.Exec(ctx,
			`DELETE FROM social_associations WHERE account_id = $1 AND provider = $2`,
			accountID, provider)
	} else {
		tag, err = s.pool.Exec(ctx,
			`DELETE FROM social_associations WHERE account_id = $1 AND provider = $2 AND uid = $3`,
			accountID, provider, uid)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// isUniqueViolation detecta el código 23505 de Postgres.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
