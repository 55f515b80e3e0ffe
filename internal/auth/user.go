// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// User is a stored account. PasswordHash never leaves the service layer;
// callers receive a PublicUser.
type User struct {
	ID           ulid.ULID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// PublicUser is the outward view of a User with secret fields removed.
type PublicUser struct {
	ID       ulid.ULID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

// Public returns the user without its password hash.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
	}
}

// UserDirectory is the persistent store of users. It owns the uniqueness
// constraint on username.
type UserDirectory interface {
	// FindByUsername retrieves a user by exact username.
	// Returns ErrNotFound if no user has the username.
	FindByUsername(ctx context.Context, username string) (*User, error)

	// GetByID retrieves a user by ID.
	// Returns ErrNotFound if the user does not exist.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// Insert stores a new user, assigning an ID when user.ID is zero.
	// Returns an error wrapping ErrDuplicateKey if a unique field collides.
	Insert(ctx context.Context, user *User) (*User, error)

	// UpdatePasswordHash replaces the stored hash for a user.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error
}

// PrepareInsert fills in the directory-assigned fields of a new user.
// Directory implementations call it before writing.
func PrepareInsert(user *User) *User {
	stored := *user
	if stored.ID.Compare(ulid.ULID{}) == 0 {
		stored.ID = ulid.Make()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	return &stored
}
