// Package cache provides the server-side stores for established logins and
// saved pre-challenge locations. Clients only ever hold opaque ids.
package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/entryway-auth/entryway/domain"
)

// MemoryLoginStore implements domain.LoginStore with ttlcache. Suitable for a
// single process; use the Redis store when logins must survive restarts or be
// shared across instances.
type MemoryLoginStore struct {
	logins    *ttlcache.Cache[string, domain.PrincipalRef]
	locations *ttlcache.Cache[string, string]
}

// NewMemoryLoginStore creates an in-memory login store with automatic
// expiry cleanup.
func NewMemoryLoginStore() *MemoryLoginStore {
	logins := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, domain.PrincipalRef](),
	)
	locations := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go logins.Start()
	go locations.Start()

	return &MemoryLoginStore{logins: logins, locations: locations}
}

// CreateLogin implements domain.LoginStore.
func (s *MemoryLoginStore) CreateLogin(_ context.Context, ref domain.PrincipalRef, ttl time.Duration) (string, error) {
	id := uuid.NewString()
	s.logins.Set(id, ref, ttl)
	return id, nil
}

// GetLogin implements domain.LoginStore.
func (s *MemoryLoginStore) GetLogin(_ context.Context, id string) (domain.PrincipalRef, error) {
	item := s.logins.Get(id)
	if item == nil {
		return domain.PrincipalRef{}, domain.ErrSessionNotFound
	}
	return item.Value(), nil
}

// DeleteLogin implements domain.LoginStore.
func (s *MemoryLoginStore) DeleteLogin(_ context.Context, id string) error {
	s.logins.Delete(id)
	return nil
}

// SaveLocation implements domain.LoginStore.
func (s *MemoryLoginStore) SaveLocation(_ context.Context, key, location string, ttl time.Duration) error {
	s.locations.Set(key, location, ttl)
	return nil
}

// TakeLocation implements domain.LoginStore.
func (s *MemoryLoginStore) TakeLocation(_ context.Context, key string) (string, error) {
	item := s.locations.Get(key)
	if item == nil {
		return "", nil
	}
	s.locations.Delete(key)
	return item.Value(), nil
}

// Stop shuts down the background cleanup goroutines.
func (s *MemoryLoginStore) Stop() {
	s.logins.Stop()
	s.locations.Stop()
}

var _ domain.LoginStore = (*MemoryLoginStore)(nil)
