// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/identity/internal/auth"
)

// SessionStore implements auth.SessionStore. Keys are the prefix followed by
// the token; values are written with SET ... EX so Redis owns expiry.
type SessionStore struct {
	client goredis.UniversalClient
	prefix string
}

// SessionStoreOption configures a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithKeyPrefix namespaces session keys, e.g. "session:".
func WithKeyPrefix(prefix string) SessionStoreOption {
	return func(s *SessionStore) {
		s.prefix = prefix
	}
}

// NewSessionStore creates a Redis-backed session store.
func NewSessionStore(client goredis.UniversalClient, opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionStore) key(token string) string {
	return s.prefix + token
}

// Set writes the value with a fresh TTL.
func (s *SessionStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return oops.Code("SESSION_STORE_TTL_INVALID").
			With("ttl", ttl.String()).
			Errorf("session ttl must be positive")
	}
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return oops.Code("SESSION_STORE_SET_FAILED").
			With("operation", "redis SET").
			With("token_fp", auth.TokenFingerprint(key)).
			Wrap(err)
	}
	return nil
}

// Get returns the value, or auth.ErrNotFound once Redis has expired the key.
func (s *SessionStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("token_fp", auth.TokenFingerprint(key)).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_STORE_GET_FAILED").
			With("operation", "redis GET").
			With("token_fp", auth.TokenFingerprint(key)).
			Wrap(err)
	}
	return value, nil
}

// Delete removes the key. DEL on an absent key is not an error.
func (s *SessionStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return oops.Code("SESSION_STORE_DELETE_FAILED").
			With("operation", "redis DEL").
			With("token_fp", auth.TokenFingerprint(key)).
			Wrap(err)
	}
	return nil
}

// Ping checks the connection.
func (s *SessionStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return oops.Code("REDIS_PING_FAILED").Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ auth.SessionStore = (*SessionStore)(nil)
