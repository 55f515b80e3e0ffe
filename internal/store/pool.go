// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store owns the PostgreSQL schema and connection pool shared by the
// postgres user directory and session store.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection retry defaults.
const (
	DefaultConnectAttempts = 5
	DefaultConnectBackoff  = 200 * time.Millisecond
)

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

// PoolOption configures OpenPool.
type PoolOption func(*poolOptions)

type poolOptions struct {
	attempts uint64
	backoff  time.Duration
	maxConns int32
}

// WithConnectAttempts sets how many pings OpenPool tries before giving up.
func WithConnectAttempts(n uint64) PoolOption {
	return func(o *poolOptions) {
		o.attempts = n
	}
}

// WithConnectBackoff sets the initial exponential backoff between pings.
func WithConnectBackoff(d time.Duration) PoolOption {
	return func(o *poolOptions) {
		o.backoff = d
	}
}

// WithMaxConns caps the pool size. Zero keeps the pgx default.
func WithMaxConns(n int32) PoolOption {
	return func(o *poolOptions) {
		o.maxConns = n
	}
}

// OpenPool parses databaseURL, creates a pool and waits until the database
// answers a ping.
func OpenPool(ctx context.Context, databaseURL string, opts ...PoolOption) (*pgxpool.Pool, error) {
	o := poolOptions{attempts: DefaultConnectAttempts, backoff: DefaultConnectBackoff}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if o.maxConns > 0 {
		cfg.MaxConns = o.maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := PingWithRetry(ctx, pool, o.attempts, o.backoff); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PingWithRetry pings db with exponential backoff until it answers or the
// attempts run out.
func PingWithRetry(ctx context.Context, db pinger, attempts uint64, backoff time.Duration) error {
	if attempts == 0 {
		attempts = 1
	}
	b := retry.WithMaxRetries(attempts-1, retry.NewExponential(backoff))

	tries := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		tries++
		if err := db.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", tries).
			Wrap(err)
	}
	return nil
}
