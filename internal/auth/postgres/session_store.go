// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/holomush/identity/internal/auth"
)

// SessionStore implements auth.SessionStore on the sessions table. Rows are
// keyed by the SHA-256 of the token, so a database dump does not leak live
// tokens. Expired rows are invisible to Get and removed by DeleteExpired.
type SessionStore struct {
	pool poolIface
	now  func() time.Time
}

// SessionStoreOption configures a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		s.now = now
	}
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(pool poolIface, opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{pool: pool, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set upserts the session and resets its expiry.
func (s *SessionStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (token_hash, value, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_hash) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at
	`, auth.HashSessionToken(key), value, now.Add(ttl), now)
	if err != nil {
		return oops.Code("SESSION_STORE_SET_FAILED").
			With("operation", "upsert session").
			With("token_fp", auth.TokenFingerprint(key)).
			Wrap(err)
	}
	return nil
}

// Get returns the value of an unexpired session.
func (s *SessionStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `
		SELECT value FROM sessions
		WHERE token_hash = $1 AND expires_at > $2
	`, auth.HashSessionToken(key), s.now().UTC()).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("token_fp", auth.TokenFingerprint(key)).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_STORE_GET_FAILED").
			With("operation", "select session").
			With("token_fp", auth.TokenFingerprint(key)).
			Wrap(err)
	}
	return value, nil
}

// Delete removes a session. No error if it does not exist.
func (s *SessionStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM sessions WHERE token_hash = $1
	`, auth.HashSessionToken(key))
	if err != nil {
		return oops.Code("SESSION_STORE_DELETE_FAILED").
			With("operation", "delete session").
			With("token_fp", auth.TokenFingerprint(key)).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes all expired sessions and returns the count.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.pool.Exec(ctx, `
		DELETE FROM sessions WHERE expires_at <= $1
	`, s.now().UTC())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.SessionStore = (*SessionStore)(nil)
