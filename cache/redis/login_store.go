// Package redis implements the login store on Redis so login state survives
// process restarts and can be shared by multiple instances.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/entryway-auth/entryway/domain"
)

// LoginStore implements domain.LoginStore using Redis.
type LoginStore struct {
	client *redis.Client
	prefix string
}

// NewLoginStore creates a login store on client. prefix namespaces the keys.
func NewLoginStore(client *redis.Client, prefix string) *LoginStore {
	if prefix == "" {
		prefix = "entryway"
	}
	return &LoginStore{client: client, prefix: prefix}
}

func (s *LoginStore) loginKey(id string) string {
	return fmt.Sprintf("%s:login:%s", s.prefix, id)
}

func (s *LoginStore) locationKey(key string) string {
	return fmt.Sprintf("%s:location:%s", s.prefix, key)
}

// CreateLogin implements domain.LoginStore.
func (s *LoginStore) CreateLogin(ctx context.Context, ref domain.PrincipalRef, ttl time.Duration) (string, error) {
	id := uuid.NewString()

	payload, err := json.Marshal(ref)
	if err != nil {
		return "", fmt.Errorf("marshaling principal ref: %w", err)
	}
	if err := s.client.Set(ctx, s.loginKey(id), payload, ttl).Err(); err != nil {
		return "", fmt.Errorf("storing login in redis: %w", err)
	}
	return id, nil
}

// GetLogin implements domain.LoginStore.
func (s *LoginStore) GetLogin(ctx context.Context, id string) (domain.PrincipalRef, error) {
	payload, err := s.client.Get(ctx, s.loginKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.PrincipalRef{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.PrincipalRef{}, fmt.Errorf("reading login from redis: %w", err)
	}

	var ref domain.PrincipalRef
	if err := json.Unmarshal(payload, &ref); err != nil {
		return domain.PrincipalRef{}, fmt.Errorf("unmarshaling principal ref: %w", err)
	}
	return ref, nil
}

// DeleteLogin implements domain.LoginStore.
func (s *LoginStore) DeleteLogin(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.loginKey(id)).Err(); err != nil {
		return fmt.Errorf("deleting login from redis: %w", err)
	}
	return nil
}

// SaveLocation implements domain.LoginStore.
func (s *LoginStore) SaveLocation(ctx context.Context, key, location string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.locationKey(key), location, ttl).Err(); err != nil {
		return fmt.Errorf("storing location in redis: %w", err)
	}
	return nil
}

// TakeLocation implements domain.LoginStore.
func (s *LoginStore) TakeLocation(ctx context.Context, key string) (string, error) {
	location, err := s.client.GetDel(ctx, s.locationKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading location from redis: %w", err)
	}
	return location, nil
}

var _ domain.LoginStore = (*LoginStore)(nil)
