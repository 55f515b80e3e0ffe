// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package httpapi exposes the user and session services over HTTP with gin.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/holomush/identity/internal/auth"
	"github.com/holomush/identity/internal/observability"
	"github.com/holomush/identity/pkg/errutil"
)

// UserRegistrar creates user accounts.
type UserRegistrar interface {
	Register(ctx context.Context, reg auth.Registration) (*auth.PublicUser, error)
}

// SessionManager drives the session lifecycle.
type SessionManager interface {
	Login(ctx context.Context, creds auth.Credentials) (string, error)
	Read(ctx context.Context, token string) (*auth.PublicUser, error)
	Extend(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
}

// sessionOwner is the read view of a session's user.
type sessionOwner struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Handler serves the identity API.
type Handler struct {
	users    UserRegistrar
	sessions SessionManager
	logger   *slog.Logger
	metrics  *observability.Metrics
	origins  []glob.Glob
}

// Option configures a Handler.
type Option func(*Handler) error

// WithLogger sets the request and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) error {
		if logger == nil {
			return oops.Code("HTTPAPI_INVALID_OPTION").Errorf("logger is required")
		}
		h.logger = logger
		return nil
	}
}

// WithMetrics records request and outcome metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Handler) error {
		h.metrics = m
		return nil
	}
}

// WithAllowedOrigins enables CORS for origins matching any of the glob
// patterns, e.g. "https://*.example.com".
func WithAllowedOrigins(patterns ...string) Option {
	return func(h *Handler) error {
		for _, p := range patterns {
			g, err := glob.Compile(p)
			if err != nil {
				return oops.Code("HTTPAPI_INVALID_OPTION").With("origin", p).Wrap(err)
			}
			h.origins = append(h.origins, g)
		}
		return nil
	}
}

// NewHandler creates a Handler.
func NewHandler(users UserRegistrar, sessions SessionManager, opts ...Option) (*Handler, error) {
	if users == nil {
		return nil, oops.Code("HTTPAPI_INVALID_OPTION").Errorf("user registrar is required")
	}
	if sessions == nil {
		return nil, oops.Code("HTTPAPI_INVALID_OPTION").Errorf("session manager is required")
	}
	h := &Handler{
		users:    users,
		sessions: sessions,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Router builds the gin engine with middleware and routes.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.ContextWithFallback = true

	r.Use(
		requestID(),
		tracing(),
		accessLog(h.logger),
		h.instrument(),
		cors(h.origins),
		gin.CustomRecovery(h.recover),
	)

	r.POST("/users", h.register)
	r.POST("/sessions", h.login)
	r.GET("/sessions/:token", h.readSession)
	r.PUT("/sessions/:token", h.extendSession)
	r.DELETE("/sessions/:token", h.revokeSession)
	// Tokens are not creatable by path.
	r.POST("/sessions/:token", h.notFound)

	r.NoRoute(h.notFound)
	r.NoMethod(h.methodNotAllowed)
	return r
}

func (h *Handler) register(c *gin.Context) {
	values, fe, err := bindStrings(c, "username", "password", "email")
	if err != nil {
		h.fail(c, err)
		h.countRegistration(auth.KindDecode.String())
		return
	}
	req := auth.Registration{
		Username: values["username"],
		Password: values["password"],
		Email:    values["email"],
	}
	if !fe.Empty() {
		verr := mergeFieldErrors(fe, req.Validate()).Err()
		h.fail(c, verr)
		h.countRegistration(auth.KindValidation.String())
		return
	}

	user, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		h.countRegistration(auth.KindOf(err).String())
		return
	}
	h.countRegistration(statusSuccess)
	writeSuccess(c, user)
}

func (h *Handler) login(c *gin.Context) {
	values, fe, err := bindStrings(c, "username", "password")
	if err != nil {
		h.countSession("login", err)
		h.fail(c, err)
		return
	}
	req := auth.Credentials{
		Username: values["username"],
		Password: values["password"],
	}
	if !fe.Empty() {
		verr := mergeFieldErrors(fe, req.Validate()).Err()
		h.countSession("login", verr)
		h.fail(c, verr)
		return
	}

	token, err := h.sessions.Login(c.Request.Context(), req)
	h.countSession("login", err)
	if err != nil {
		h.fail(c, err)
		return
	}
	writeSuccess(c, gin.H{"token": token})
}

func (h *Handler) readSession(c *gin.Context) {
	user, err := h.sessions.Read(c.Request.Context(), c.Param("token"))
	h.countSession("read", err)
	if err != nil {
		h.fail(c, err)
		return
	}
	writeSuccess(c, sessionOwner{Username: user.Username, Email: user.Email})
}

func (h *Handler) extendSession(c *gin.Context) {
	token, err := h.sessions.Extend(c.Request.Context(), c.Param("token"))
	h.countSession("extend", err)
	if err != nil {
		h.fail(c, err)
		return
	}
	writeSuccess(c, gin.H{"token": token})
}

func (h *Handler) revokeSession(c *gin.Context) {
	err := h.sessions.Revoke(c.Request.Context(), c.Param("token"))
	h.countSession("revoke", err)
	if err != nil {
		h.fail(c, err)
		return
	}
	writeSuccess(c, gin.H{})
}

func (h *Handler) notFound(c *gin.Context) {
	writeFailure(c, http.StatusNotFound, auth.KindNotFound.String(), msgResourceNotFound)
}

func (h *Handler) methodNotAllowed(c *gin.Context) {
	writeFailure(c, http.StatusMethodNotAllowed, kindMethodNotAllowed, msgMethodNotAllowed)
}

func (h *Handler) recover(c *gin.Context, recovered any) {
	h.logger.ErrorContext(c.Request.Context(), "panic in handler",
		"route", c.FullPath(),
		"panic", recovered,
	)
	writeFailure(c, http.StatusInternalServerError, auth.KindInternal.String(), msgInternal)
}

// fail writes the error envelope for err. Internal errors are logged with
// their full context; the client sees only the kind.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := auth.KindOf(err)
	if kind == auth.KindInternal {
		errutil.LogErrorContext(c.Request.Context(), h.logger, "request failed", err)
	}
	writeFailure(c, statusFor(kind), kind.String(), errorMessage(kind, err))
}

func (h *Handler) countSession(operation string, err error) {
	if h.metrics == nil {
		return
	}
	outcome := statusSuccess
	if err != nil {
		outcome = auth.KindOf(err).String()
	}
	h.metrics.SessionsTotal.WithLabelValues(operation, outcome).Inc()
}

func (h *Handler) countRegistration(outcome string) {
	if h.metrics == nil {
		return
	}
	h.metrics.UsersRegistered.WithLabelValues(outcome).Inc()
}
