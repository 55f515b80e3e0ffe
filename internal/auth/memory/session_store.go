// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides in-process implementations of the auth
// SessionStore and UserDirectory for development and tests.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/oops"

	"github.com/holomush/identity/internal/auth"
)

// DefaultSweepSpec is the cron spec for removing expired sessions.
const DefaultSweepSpec = "@every 1m"

const codeSessionStoreCancelled = "SESSION_STORE_CANCELLED"

type entry struct {
	value     []byte
	expiresAt time.Time
}

// SessionStore is a mutex-guarded map with per-key expiry. Expired keys are
// invisible to Get as soon as they expire and are physically removed by a
// background sweep.
type SessionStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
	logger  *slog.Logger

	sweepSpec string
	cron      *cron.Cron
	closeOnce sync.Once
}

// SessionStoreOption configures a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		s.now = now
	}
}

// WithSweepSpec overrides DefaultSweepSpec. An empty spec disables the
// background sweep.
func WithSweepSpec(spec string) SessionStoreOption {
	return func(s *SessionStore) {
		s.sweepSpec = spec
	}
}

// WithLogger sets the logger used by the sweep.
func WithLogger(logger *slog.Logger) SessionStoreOption {
	return func(s *SessionStore) {
		s.logger = logger
	}
}

// NewSessionStore creates a SessionStore and starts its sweep. Call Close to
// stop it.
func NewSessionStore(opts ...SessionStoreOption) (*SessionStore, error) {
	s := &SessionStore{
		entries:   make(map[string]entry),
		now:       time.Now,
		logger:    slog.Default(),
		sweepSpec: DefaultSweepSpec,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.sweepSpec != "" {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(s.sweepSpec, func() { s.Sweep() }); err != nil {
			return nil, oops.Code("SESSION_SWEEP_INVALID").
				With("spec", s.sweepSpec).
				Wrap(err)
		}
		s.cron.Start()
	}
	return s, nil
}

// Set upserts the value and resets the key's expiry.
func (s *SessionStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := checkContext(ctx, codeSessionStoreCancelled, "set session"); err != nil {
		return err
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{value: stored, expiresAt: s.now().Add(ttl)}
	return nil
}

// Get returns the value of an unexpired key.
func (s *SessionStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := checkContext(ctx, codeSessionStoreCancelled, "get session"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, auth.ErrNotFound
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return nil, auth.ErrNotFound
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Delete removes the key.
func (s *SessionStore) Delete(ctx context.Context, key string) error {
	if err := checkContext(ctx, codeSessionStoreCancelled, "delete session"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Sweep removes expired keys and returns how many it removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Debug("expired sessions swept", "count", removed)
	}
	return removed
}

// Len returns the number of stored keys, including expired ones not yet swept.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the sweep and waits for a running sweep to finish.
func (s *SessionStore) Close() error {
	s.closeOnce.Do(func() {
		if s.cron != nil {
			<-s.cron.Stop().Done()
		}
	})
	return nil
}

// Compile-time interface check.
var _ auth.SessionStore = (*SessionStore)(nil)
