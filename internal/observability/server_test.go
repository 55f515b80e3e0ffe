// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func ready(context.Context) error { return nil }

func startServer(t *testing.T, checker ReadinessChecker) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", checker)
	_, err := server.Start()
	require.NoError(t, err, "failed to start server")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	require.NotEmpty(t, server.Addr())
	return server
}

func get(t *testing.T, server *Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get("http://" + server.Addr() + path)
	require.NoError(t, err, "failed to GET %s", path)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := startServer(t, ready)

	status, body := get(t, server, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "# TYPE")
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")

	metrics := server.Metrics()
	metrics.HTTPRequestsTotal.WithLabelValues("/sessions", "POST", "200").Inc()
	metrics.HTTPRequestDuration.WithLabelValues("/sessions", "POST").Observe(0.01)
	metrics.SessionsTotal.WithLabelValues("login", "success").Inc()
	metrics.SessionsTotal.WithLabelValues("login", "success").Inc()
	metrics.UsersRegistered.WithLabelValues("ConflictError").Inc()

	_, body = get(t, server, "/metrics")
	assert.Contains(t, body, `identity_http_requests_total{method="POST",route="/sessions",status="200"} 1`)
	assert.Contains(t, body, "identity_http_request_duration_seconds_bucket")
	assert.Contains(t, body, `identity_sessions_total{operation="login",outcome="success"} 2`)
	assert.Contains(t, body, `identity_users_registered_total{outcome="ConflictError"} 1`)
}

func TestServer_LivenessReturns200(t *testing.T) {
	server := startServer(t, nil)

	status, body := get(t, server, "/healthz/liveness")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", strings.TrimSpace(body))
}

func TestServer_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		checker    ReadinessChecker
		wantStatus int
		wantBody   string
	}{
		{"nil checker", nil, http.StatusOK, "ok"},
		{"ready", ready, http.StatusOK, "ok"},
		{
			"backend down",
			func(context.Context) error { return errors.New("redis: connection refused") },
			http.StatusServiceUnavailable,
			"not ready",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, tt.checker)
			status, body := get(t, server, "/healthz/readiness")
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantBody, strings.TrimSpace(body))
		})
	}
}

func TestPingAll(t *testing.T) {
	ok := PingerFunc(func(context.Context) error { return nil })
	down := PingerFunc(func(context.Context) error { return errors.New("dial tcp: refused") })

	require.NoError(t, PingAll(map[string]Pinger{"postgres": ok, "redis": ok})(context.Background()))
	require.NoError(t, PingAll(nil)(context.Background()))

	err := PingAll(map[string]Pinger{"postgres": ok, "redis": down})(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)

	_, err := server.Start()
	assert.Error(t, err, "second Start should fail")
}

func TestServer_StopIdempotent(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	ctx := context.Background()

	assert.NoError(t, server.Stop(ctx), "Stop before Start")
	_, err := server.Start()
	require.NoError(t, err)
	assert.NoError(t, server.Stop(ctx))
	assert.NoError(t, server.Stop(ctx), "second Stop")
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)

	errCh, err := server.Start()
	require.NoError(t, err)

	// Closing the listener under Serve simulates a network failure.
	require.NotNil(t, server.listener)
	_ = server.listener.Close()

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for error on error channel")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Stop(ctx)
}

func TestServer_ErrorChannelClosesOnNormalShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	server := NewServer("127.0.0.1:0", nil)

	errCh, err := server.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for error channel to close")
	}
	http.DefaultClient.CloseIdleConnections()
}
