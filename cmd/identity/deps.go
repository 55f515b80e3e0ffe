// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/holomush/identity/internal/config"
	"github.com/holomush/identity/internal/observability"
	"github.com/holomush/identity/internal/store"
	"github.com/holomush/identity/internal/tracing"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// BackendsOpener opens the user directory and session store.
	// Default: OpenBackends
	BackendsOpener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backends, error)

	// TracingSetup installs the global tracer provider.
	// Default: tracing.Setup
	TracingSetup func(ctx context.Context, cfg tracing.Config) (tracing.ShutdownFunc, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// HTTPServerFactory creates the API server.
	// Default: httpapi.NewServer
	HTTPServerFactory func(addr string, handler http.Handler, logger *slog.Logger) HTTPServer

	// LogOutput receives log records.
	// Default: os.Stderr
	LogOutput io.Writer

	// OnReady is called with the API address once every server is up.
	OnReady func(apiAddr string)
}

// MigrateDeps contains injectable dependencies for the migrate command.
type MigrateDeps struct {
	// MigratorFactory creates a migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)
}

// UserDeps contains injectable dependencies for the user command.
type UserDeps struct {
	// DirectoryOpener opens the user directory.
	// Default: OpenDirectory
	DirectoryOpener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backends, error)

	// PasswordReader reads the new user's password.
	// Default: reads from the terminal without echo, or a line of stdin
	PasswordReader func(in io.Reader, out io.Writer) (string, error)
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
	SetLogger(logger *slog.Logger)
}

// HTTPServer interface wraps the methods used from httpapi.Server.
type HTTPServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// Migrator interface wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (*store.MigrationStatus, error)
	Close() error
}
