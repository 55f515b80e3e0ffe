// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// UserService registers user accounts.
type UserService struct {
	users  UserDirectory
	hasher PasswordHasher
	logger *slog.Logger
}

// NewUserService creates a UserService that logs to slog.Default().
func NewUserService(users UserDirectory, hasher PasswordHasher) (*UserService, error) {
	return NewUserServiceWithLogger(users, hasher, slog.Default())
}

// NewUserServiceWithLogger creates a UserService with an explicit logger.
func NewUserServiceWithLogger(users UserDirectory, hasher PasswordHasher, logger *slog.Logger) (*UserService, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("user directory is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	return &UserService{
		users:  users,
		hasher: hasher,
		logger: logger,
	}, nil
}

// Register validates the registration, stores the user with a hashed
// password and returns the public view. Validation precedes any write, so
// a rejected registration leaves no record behind.
func (s *UserService) Register(ctx context.Context, reg Registration) (_ *PublicUser, err error) {
	ctx, span := tracer().Start(ctx, "auth.Register")
	defer func() { finishSpan(span, err) }()

	if verr := reg.Validate().Err(); verr != nil {
		return nil, verr
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := s.users.Insert(ctx, &User{
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			fields := DuplicateFields(err)
			if len(fields) == 0 {
				fields = []string{"username"}
			}
			s.logger.InfoContext(ctx, "registration rejected",
				"reason", "duplicate",
				"fields", fields,
			)
			return nil, NewConflictError(fields...)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "insert user").
			With("username", reg.Username).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	return user.Public(), nil
}
