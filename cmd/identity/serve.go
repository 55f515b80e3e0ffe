// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/identity/internal/auth"
	"github.com/holomush/identity/internal/config"
	"github.com/holomush/identity/internal/httpapi"
	"github.com/holomush/identity/internal/logging"
	"github.com/holomush/identity/internal/observability"
	"github.com/holomush/identity/internal/tracing"
)

// cleanupTimeout bounds the stop calls made while unwinding a failed start.
const cleanupTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand. A nil deps uses the defaults.
func NewServeCmd(deps *ServeDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the identity HTTP API",
		Long: `Start the HTTP API for user registration and sessions, plus the
metrics and health endpoints when metrics-addr is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, deps)
		},
	}

	config.BindFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps runs the API until ctx is cancelled or a signal arrives.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.BackendsOpener == nil {
		deps.BackendsOpener = OpenBackends
	}
	if deps.TracingSetup == nil {
		deps.TracingSetup = func(ctx context.Context, cfg tracing.Config) (tracing.ShutdownFunc, error) {
			_, shutdown, err := tracing.Setup(ctx, cfg)
			return shutdown, err
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if deps.HTTPServerFactory == nil {
		deps.HTTPServerFactory = func(addr string, handler http.Handler, logger *slog.Logger) HTTPServer {
			return httpapi.NewServer(addr, handler, logger)
		}
	}
	if deps.LogOutput == nil {
		deps.LogOutput = os.Stderr
	}
	if ctx == nil {
		ctx = context.Background()
	}

	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, cfg.Log.Level, deps.LogOutput)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTracing, err := deps.TracingSetup(ctx, tracing.Config{
		ServiceName: serviceName,
		Version:     version,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return oops.With("operation", "setup tracing").Wrap(err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer shutdownCancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	backends, err := deps.BackendsOpener(ctx, cfg, logger)
	if err != nil {
		return oops.With("operation", "open backends").Wrap(err)
	}
	defer func() {
		if err := backends.Close(); err != nil {
			logger.Warn("backend close failed", "error", err)
		}
	}()

	userSvc, sessionSvc, err := newServices(cfg, backends, logger)
	if err != nil {
		return err
	}

	handlerOpts := []httpapi.Option{
		httpapi.WithLogger(logger),
		httpapi.WithAllowedOrigins(cfg.HTTP.AllowedOrigins...),
	}

	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, observability.PingAll(backends.Pingers))
		obsServer.SetLogger(logger)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		defer stopServer(logger, obsServer, "observability", cleanupTimeout)
		handlerOpts = append(handlerOpts, httpapi.WithMetrics(obsServer.Metrics()))
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler, err := httpapi.NewHandler(userSvc, sessionSvc, handlerOpts...)
	if err != nil {
		return oops.With("operation", "create http handler").Wrap(err)
	}

	apiServer := deps.HTTPServerFactory(cfg.HTTP.Addr, handler.Router(), logger)
	apiErrCh, err := apiServer.Start()
	if err != nil {
		return oops.With("operation", "start http server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "http")

	cmd.Println("Identity service started")
	logger.Info("identity service ready",
		"http_addr", apiServer.Addr(),
		"session_store", cfg.Session.Store,
		"directory", cfg.Directory.Driver,
	)
	if deps.OnReady != nil {
		deps.OnReady(apiServer.Addr())
	}

	<-ctx.Done()
	logger.Info("shutting down")

	// The API drains first so in-flight requests still see live backends.
	stopServer(logger, apiServer, "http", cfg.HTTP.ShutdownTimeout)
	cmd.Println("Identity service stopped")
	return nil
}

// newServices wires the auth services over the opened backends.
func newServices(cfg *config.Config, backends *Backends, logger *slog.Logger) (*auth.UserService, *auth.SessionService, error) {
	hasher := auth.NewArgon2idHasher()

	tokens, err := auth.NewRandomTokenGenerator(cfg.Session.TokenBytes)
	if err != nil {
		return nil, nil, oops.With("operation", "create token generator").Wrap(err)
	}

	userSvc, err := auth.NewUserServiceWithLogger(backends.Users, hasher, logger)
	if err != nil {
		return nil, nil, oops.With("operation", "create user service").Wrap(err)
	}

	sessionSvc, err := auth.NewSessionService(backends.Sessions, backends.Users, hasher, tokens,
		auth.WithSessionTTL(cfg.Session.TTL),
		auth.WithSessionLogger(logger),
	)
	if err != nil {
		return nil, nil, oops.With("operation", "create session service").Wrap(err)
	}
	return userSvc, sessionSvc, nil
}

type stopper interface {
	Stop(ctx context.Context) error
}

func stopServer(logger *slog.Logger, s stopper, name string, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("server stop failed", "server", name, "error", err)
	}
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
