// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/identity/internal/auth"
	"github.com/holomush/identity/internal/auth/memory"
	"github.com/holomush/identity/pkg/errutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newStore(t *testing.T, clock *fakeClock) *memory.SessionStore {
	t.Helper()
	s, err := memory.NewSessionStore(memory.WithClock(clock.Now), memory.WithSweepSpec(""))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionStore_SetGet(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := newStore(t, clock)

	require.NoError(t, s.Set(ctx, "tok", []byte("v1"), time.Hour))

	got, err := s.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	t.Run("returned value is a copy", func(t *testing.T) {
		got[0] = 'X'
		again, err := s.Get(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), again)
	})
}

func TestSessionStore_Expiry(t *testing.T) {
	ctx := context.Background()

	t.Run("key vanishes exactly at ttl", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		s := newStore(t, clock)
		require.NoError(t, s.Set(ctx, "tok", []byte("v"), time.Hour))

		clock.Advance(time.Hour - time.Nanosecond)
		_, err := s.Get(ctx, "tok")
		require.NoError(t, err)

		clock.Advance(time.Nanosecond)
		_, err = s.Get(ctx, "tok")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("set resets expiry", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		s := newStore(t, clock)
		require.NoError(t, s.Set(ctx, "tok", []byte("v"), time.Hour))

		clock.Advance(50 * time.Minute)
		require.NoError(t, s.Set(ctx, "tok", []byte("v"), time.Hour))

		clock.Advance(50 * time.Minute)
		_, err := s.Get(ctx, "tok")
		assert.NoError(t, err)
	})

	t.Run("sweep removes only expired keys", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		s := newStore(t, clock)
		require.NoError(t, s.Set(ctx, "short", []byte("v"), time.Minute))
		require.NoError(t, s.Set(ctx, "long", []byte("v"), time.Hour))

		clock.Advance(2 * time.Minute)
		assert.Equal(t, 1, s.Sweep())
		assert.Equal(t, 1, s.Len())

		_, err := s.Get(ctx, "long")
		assert.NoError(t, err)
	})
}

func TestSessionStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, &fakeClock{now: time.Unix(1_700_000_000, 0)})

	require.NoError(t, s.Set(ctx, "tok", []byte("v"), time.Hour))
	require.NoError(t, s.Delete(ctx, "tok"))
	require.NoError(t, s.Delete(ctx, "tok"), "deleting an absent key succeeds")

	_, err := s.Get(ctx, "tok")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestSessionStore_CancelledContext(t *testing.T) {
	s := newStore(t, &fakeClock{now: time.Unix(1_700_000_000, 0)})
	require.NoError(t, s.Set(context.Background(), "kept", []byte("v"), time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		call func() error
	}{
		{"set", func() error { return s.Set(ctx, "new", []byte("v"), time.Hour) }},
		{"get", func() error { _, err := s.Get(ctx, "kept"); return err }},
		{"delete", func() error { return s.Delete(ctx, "kept") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.ErrorIs(t, err, context.Canceled)
			errutil.AssertErrorCode(t, err, "SESSION_STORE_CANCELLED")
		})
	}

	assert.Equal(t, 1, s.Len())
	_, err := s.Get(context.Background(), "new")
	assert.ErrorIs(t, err, auth.ErrNotFound)
	_, err = s.Get(context.Background(), "kept")
	assert.NoError(t, err)
}

func TestSessionStore_InvalidSweepSpec(t *testing.T) {
	_, err := memory.NewSessionStore(memory.WithSweepSpec("not a schedule"))
	require.Error(t, err)
}

func TestSessionStore_CloseStopsSweep(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s, err := memory.NewSessionStore(memory.WithSweepSpec("@every 1s"))
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), "tok", []byte("v"), time.Millisecond))

	require.Eventually(t, func() bool { return s.Len() == 0 }, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")
}

func TestSessionStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, &fakeClock{now: time.Unix(1_700_000_000, 0)})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%26))
			_ = s.Set(ctx, key, []byte{byte(i)}, time.Hour)
			_, _ = s.Get(ctx, key)
			_ = s.Delete(ctx, key)
		}(i)
	}
	wg.Wait()
}
