// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"github.com/samber/oops"

	"github.com/holomush/identity/internal/auth"
	"github.com/holomush/identity/internal/auth/memory"
	"github.com/holomush/identity/internal/auth/postgres"
	identityredis "github.com/holomush/identity/internal/auth/redis"
	"github.com/holomush/identity/internal/auth/sqlite"
	"github.com/holomush/identity/internal/config"
	"github.com/holomush/identity/internal/observability"
	"github.com/holomush/identity/internal/store"
	"github.com/holomush/identity/internal/xdg"
)

// sweepTimeout bounds one postgres expired-session sweep.
const sweepTimeout = 30 * time.Second

// Backends holds the opened storage and everything needed to release it.
type Backends struct {
	Users    auth.UserDirectory
	Sessions auth.SessionStore
	// Pingers feed the readiness probe, keyed by backend name.
	Pingers map[string]observability.Pinger

	pool    *pgxpool.Pool
	closers []func() error
}

// Close releases the backends in reverse order of opening.
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

func (b *Backends) onClose(f func() error) {
	b.closers = append(b.closers, f)
}

// OpenBackends opens the user directory and session store cfg selects.
func OpenBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backends, error) {
	b, err := OpenDirectory(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := b.openSessionStore(ctx, cfg, logger); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

// OpenDirectory opens only the user directory, for commands that never
// touch sessions.
func OpenDirectory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backends, error) {
	b := &Backends{Pingers: map[string]observability.Pinger{}}

	if cfg.UsesPostgres() {
		if err := b.openPool(ctx, cfg, logger); err != nil {
			return nil, err
		}
	}

	switch cfg.Directory.Driver {
	case config.DriverMemory:
		b.Users = memory.NewUserDirectory()
	case config.DriverPostgres:
		b.Users = postgres.NewUserRepository(b.pool)
	case config.DriverSQLite:
		d, err := openSQLite(ctx, cfg.Directory.SQLitePath)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Users = d
		b.Pingers["sqlite"] = d
		b.onClose(d.Close)
	default:
		_ = b.Close()
		return nil, oops.Code("CONFIG_INVALID").
			With("driver", cfg.Directory.Driver).
			Errorf("unknown directory driver %q", cfg.Directory.Driver)
	}

	logger.Info("user directory ready", "driver", cfg.Directory.Driver)
	return b, nil
}

// openSQLite creates the parent directory of a file path before opening.
func openSQLite(ctx context.Context, path string) (*sqlite.UserDirectory, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := xdg.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, err //nolint:wrapcheck // xdg errors carry their own codes
		}
	}
	return sqlite.Open(ctx, path) //nolint:wrapcheck // sqlite errors carry their own codes
}

func (b *Backends) openPool(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	url := cfg.Directory.DatabaseURL
	if cfg.Directory.AutoMigrate {
		if err := migrateUp(url); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	pool, err := store.OpenPool(ctx, url,
		store.WithMaxConns(cfg.Directory.MaxConns),
		store.WithConnectAttempts(cfg.Directory.ConnectAttempts),
		store.WithConnectBackoff(cfg.Directory.ConnectBackoff),
	)
	if err != nil {
		return err //nolint:wrapcheck // store errors carry their own codes
	}
	b.pool = pool
	b.Pingers["postgres"] = pool
	b.onClose(func() error {
		pool.Close()
		return nil
	})
	return nil
}

func migrateUp(databaseURL string) (err error) {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err //nolint:wrapcheck // store errors carry their own codes
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return m.Up() //nolint:wrapcheck // store errors carry their own codes
}

func (b *Backends) openSessionStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	switch cfg.Session.Store {
	case config.StoreMemory:
		s, err := memory.NewSessionStore(
			memory.WithSweepSpec(cfg.Session.SweepSpec()),
			memory.WithLogger(logger),
		)
		if err != nil {
			return err //nolint:wrapcheck // memory errors carry their own codes
		}
		b.Sessions = s
		b.onClose(s.Close)

	case config.StoreRedis:
		client := identityredis.Dial(identityredis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.onClose(client.Close)
		s := identityredis.NewSessionStore(client, identityredis.WithKeyPrefix(cfg.Redis.KeyPrefix))
		if err := store.PingWithRetry(ctx, s, store.DefaultConnectAttempts, store.DefaultConnectBackoff); err != nil {
			return oops.With("addr", cfg.Redis.Addr).With("backend", "redis").Wrap(err)
		}
		b.Sessions = s
		b.Pingers["redis"] = s

	case config.StorePostgres:
		s := postgres.NewSessionStore(b.pool)
		b.Sessions = s
		if spec := cfg.Session.SweepSpec(); spec != "" {
			if err := b.startPostgresSweep(spec, s, logger); err != nil {
				return err
			}
		}

	default:
		return oops.Code("CONFIG_INVALID").
			With("store", cfg.Session.Store).
			Errorf("unknown session store %q", cfg.Session.Store)
	}

	logger.Info("session store ready", "store", cfg.Session.Store)
	return nil
}

// startPostgresSweep deletes expired session rows on a schedule. Reads
// already ignore them; the sweep only reclaims space.
func (b *Backends) startPostgresSweep(spec string, s *postgres.SessionStore, logger *slog.Logger) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		n, err := s.DeleteExpired(ctx)
		if err != nil {
			logger.Warn("session sweep failed", "store", "postgres", "error", err)
			return
		}
		if n > 0 {
			logger.Debug("expired sessions removed", "store", "postgres", "count", n)
		}
	})
	if err != nil {
		return oops.Code("SESSION_SWEEP_INVALID").With("spec", spec).Wrap(err)
	}
	c.Start()
	b.onClose(func() error {
		<-c.Stop().Done()
		return nil
	})
	return nil
}
