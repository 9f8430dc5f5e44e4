package session

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryStore implementa Store sobre un cache TTL in-process.
// Útil para desarrollo y testing; no sirve para multi-proceso.
type memoryStore struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

// NewMemory crea un store de sesión en memoria con el TTL por defecto dado.
func NewMemory(defaultTTL time.Duration) Store {
	if defaultTTL <= 0 {
		defaultTTL = 15 * time.Minute
	}
	return &memoryStore{
		cache: gocache.New(defaultTTL, 5*time.Minute),
	}
}

func (s *memoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache.Get(key)
	if !ok {
		return "", ErrNotFound
	}
	return v.(string), nil
}

func (s *memoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	s.cache.Set(key, value, ttl)
	return nil
}

// Pop serializa get+delete bajo el mutex para garantizar consumo único.
func (s *memoryStore) Pop(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache.Get(key)
	if !ok {
		return "", ErrNotFound
	}
	s.cache.Delete(key)
	return v.(string), nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(key)
	return nil
}
