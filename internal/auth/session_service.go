// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// dummyPasswordHash is verified when a username is unknown so that the
// lookup miss costs the same as a password check.
// It is not a credential and matches no password.
//
//nolint:gosec // G101: intentionally fake hash used for timing equalization.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// SessionService manages the session lifecycle: absent -> active on Login,
// active -> active on Extend, active -> absent on Revoke or store expiry.
type SessionService struct {
	sessions SessionStore
	users    UserDirectory
	hasher   PasswordHasher
	tokens   TokenGenerator
	ttl      time.Duration
	logger   *slog.Logger
}

// SessionServiceOption configures a SessionService.
type SessionServiceOption func(*SessionService)

// WithSessionTTL overrides DefaultSessionTTL.
func WithSessionTTL(ttl time.Duration) SessionServiceOption {
	return func(s *SessionService) {
		s.ttl = ttl
	}
}

// WithSessionLogger overrides slog.Default().
func WithSessionLogger(logger *slog.Logger) SessionServiceOption {
	return func(s *SessionService) {
		s.logger = logger
	}
}

// NewSessionService creates a SessionService.
func NewSessionService(
	sessions SessionStore,
	users UserDirectory,
	hasher PasswordHasher,
	tokens TokenGenerator,
	opts ...SessionServiceOption,
) (*SessionService, error) {
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("session store is required")
	}
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("user directory is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("token generator is required")
	}

	s := &SessionService{
		sessions: sessions,
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		ttl:      DefaultSessionTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.ttl <= 0 {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").
			With("ttl", s.ttl.String()).
			Errorf("session TTL must be positive")
	}
	if s.logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	return s, nil
}

// TTL returns the session expiry window.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Login authenticates the credentials and creates a session, returning its
// token. An unknown username is reported as a missing user; a known
// username with a wrong password as invalid credentials.
func (s *SessionService) Login(ctx context.Context, creds Credentials) (_ string, err error) {
	ctx, span := tracer().Start(ctx, "auth.Login")
	defer func() { finishSpan(span, err) }()

	if verr := creds.Validate().Err(); verr != nil {
		return "", verr
	}

	user, lookupErr := s.users.FindByUsername(ctx, creds.Username)
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return "", oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "find user by username").
				Wrap(lookupErr)
		}
		_, _ = s.hasher.Verify(creds.Password, dummyPasswordHash) //nolint:errcheck // timing only
		s.logger.InfoContext(ctx, "login rejected", "reason", "unknown_user")
		return "", NewNotFoundError("user")
	}

	valid, err := s.hasher.Verify(creds.Password, user.PasswordHash)
	if err != nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	if !valid {
		s.logger.InfoContext(ctx, "login rejected",
			"reason", "invalid_credentials",
			"user_id", user.ID.String(),
		)
		return "", NewInvalidCredentialsError()
	}

	s.upgradeHash(ctx, user, creds.Password)

	token, err := s.tokens.New()
	if err != nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	value, err := SessionData{UserID: user.ID}.Encode()
	if err != nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "encode session").
			Wrap(err)
	}

	if err := s.sessions.Set(ctx, token, value, s.ttl); err != nil {
		return "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "session created",
		"user_id", user.ID.String(),
		"token_fp", TokenFingerprint(token),
	)
	return token, nil
}

// Read returns the user owning a live session. It does not refresh the TTL.
func (s *SessionService) Read(ctx context.Context, token string) (_ *PublicUser, err error) {
	ctx, span := tracer().Start(ctx, "auth.ReadSession")
	defer func() { finishSpan(span, err) }()

	_, data, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, data.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewNotFoundError("user")
		}
		return nil, oops.Code("SESSION_READ_FAILED").
			With("operation", "get user by id").
			With("user_id", data.UserID.String()).
			Wrap(err)
	}
	return user.Public(), nil
}

// Extend resets a live session's TTL, keeping its value, and returns the
// same token.
func (s *SessionService) Extend(ctx context.Context, token string) (_ string, err error) {
	ctx, span := tracer().Start(ctx, "auth.ExtendSession")
	defer func() { finishSpan(span, err) }()

	raw, _, err := s.lookup(ctx, token)
	if err != nil {
		return "", err
	}

	if err := s.sessions.Set(ctx, token, raw, s.ttl); err != nil {
		return "", oops.Code("SESSION_EXTEND_FAILED").
			With("operation", "refresh session ttl").
			With("token_fp", TokenFingerprint(token)).
			Wrap(err)
	}

	s.logger.DebugContext(ctx, "session extended", "token_fp", TokenFingerprint(token))
	return token, nil
}

// Revoke deletes a session. Revoking an unknown or already revoked token
// succeeds.
func (s *SessionService) Revoke(ctx context.Context, token string) (err error) {
	ctx, span := tracer().Start(ctx, "auth.RevokeSession")
	defer func() { finishSpan(span, err) }()

	if token == "" {
		return nil
	}

	if err := s.sessions.Delete(ctx, token); err != nil {
		return oops.Code("SESSION_REVOKE_FAILED").
			With("operation", "delete session").
			With("token_fp", TokenFingerprint(token)).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "session revoked", "token_fp", TokenFingerprint(token))
	return nil
}

// lookup fetches and decodes a live session.
func (s *SessionService) lookup(ctx context.Context, token string) ([]byte, SessionData, error) {
	if token == "" {
		return nil, SessionData{}, NewNotFoundError("session token")
	}

	raw, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, SessionData{}, NewNotFoundError("session token")
		}
		return nil, SessionData{}, oops.Code("SESSION_LOOKUP_FAILED").
			With("operation", "get session").
			With("token_fp", TokenFingerprint(token)).
			Wrap(err)
	}

	data, err := DecodeSessionData(raw)
	if err != nil {
		return nil, SessionData{}, oops.Code("SESSION_LOOKUP_FAILED").
			With("operation", "decode session").
			With("token_fp", TokenFingerprint(token)).
			Wrap(err)
	}
	return raw, data, nil
}

// upgradeHash replaces a legacy hash after a successful login. Failures are
// logged and do not affect the login.
func (s *SessionService) upgradeHash(ctx context.Context, user *User, password string) {
	if !s.hasher.NeedsUpgrade(user.PasswordHash) {
		return
	}

	newHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "password rehash failed (best-effort)",
			"operation", "upgrade_hash",
			"user_id", user.ID.String(),
			"error", err.Error(),
		)
		return
	}

	if err := s.users.UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
		s.logger.WarnContext(ctx, "password hash update failed (best-effort)",
			"operation", "upgrade_hash",
			"user_id", user.ID.String(),
			"error", err.Error(),
		)
	}
}
