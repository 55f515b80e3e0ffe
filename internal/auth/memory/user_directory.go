// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/identity/internal/auth"
)

const codeDirectoryCancelled = "USER_DIRECTORY_CANCELLED"

// UserDirectory keeps users in memory, indexed by ID and username.
type UserDirectory struct {
	mu         sync.RWMutex
	byID       map[ulid.ULID]auth.User
	byUsername map[string]ulid.ULID
}

// NewUserDirectory creates an empty UserDirectory.
func NewUserDirectory() *UserDirectory {
	return &UserDirectory{
		byID:       make(map[ulid.ULID]auth.User),
		byUsername: make(map[string]ulid.ULID),
	}
}

// Insert stores a new user. The username check and the write happen under
// one lock, so concurrent inserts of the same username admit exactly one.
func (d *UserDirectory) Insert(ctx context.Context, user *auth.User) (*auth.User, error) {
	if err := checkContext(ctx, codeDirectoryCancelled, "insert user"); err != nil {
		return nil, err
	}

	stored := auth.PrepareInsert(user)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, taken := d.byUsername[stored.Username]; taken {
		return nil, oops.Code("USER_DUPLICATE").
			With("fields", []string{"username"}).
			Wrap(auth.ErrDuplicateKey)
	}
	if _, taken := d.byID[stored.ID]; taken {
		return nil, oops.Code("USER_DUPLICATE").
			With("fields", []string{"id"}).
			Wrap(auth.ErrDuplicateKey)
	}

	d.byID[stored.ID] = *stored
	d.byUsername[stored.Username] = stored.ID

	out := *stored
	return &out, nil
}

// GetByID retrieves a user by ID.
func (d *UserDirectory) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	if err := checkContext(ctx, codeDirectoryCancelled, "get user by id"); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return &user, nil
}

// FindByUsername retrieves a user by exact username.
func (d *UserDirectory) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	if err := checkContext(ctx, codeDirectoryCancelled, "find user by username"); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byUsername[username]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
	}
	user := d.byID[id]
	return &user, nil
}

// UpdatePasswordHash replaces the stored hash for a user.
func (d *UserDirectory) UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error {
	if err := checkContext(ctx, codeDirectoryCancelled, "update password hash"); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok := d.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	user.PasswordHash = passwordHash
	d.byID[id] = user
	return nil
}

// Compile-time interface check.
var _ auth.UserDirectory = (*UserDirectory)(nil)
