// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package sqlite implements the auth UserDirectory on an embedded SQLite
// database, for single-binary deployments without PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	// Register the pure-Go "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/holomush/identity/internal/auth"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

// UserDirectory implements auth.UserDirectory on SQLite.
type UserDirectory struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dsn and ensures the
// schema exists.
func Open(ctx context.Context, dsn string) (*UserDirectory, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, oops.Code("SQLITE_OPEN_FAILED").With("dsn", dsn).Wrap(err)
	}
	// A single connection serializes writers and keeps :memory: databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, oops.Code("SQLITE_OPEN_FAILED").With("operation", "enable wal").Wrap(err)
	}

	d, err := NewUserDirectory(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// NewUserDirectory wraps an existing connection and creates the schema.
func NewUserDirectory(ctx context.Context, db *sql.DB) (*UserDirectory, error) {
	if db == nil {
		return nil, oops.Code("SQLITE_OPEN_FAILED").Errorf("db is required")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, oops.Code("SQLITE_SCHEMA_FAILED").With("operation", "create schema").Wrap(err)
	}
	return &UserDirectory{db: db}, nil
}

// Insert stores a new user.
func (d *UserDirectory) Insert(ctx context.Context, user *auth.User) (*auth.User, error) {
	stored := auth.PrepareInsert(user)

	_, err := d.db.ExecContext(ctx, `
INSERT INTO users (id, username, email, password_hash, created_at)
VALUES (?, ?, ?, ?, ?)`,
		stored.ID.String(),
		stored.Username,
		stored.Email,
		stored.PasswordHash,
		stored.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if field, ok := uniqueViolationField(err); ok {
			return nil, oops.Code("USER_DUPLICATE").
				With("fields", []string{field}).
				Wrap(auth.ErrDuplicateKey)
		}
		return nil, oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", stored.Username).
			Wrap(err)
	}
	return stored, nil
}

// GetByID retrieves a user by ID.
func (d *UserDirectory) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := d.db.QueryRowContext(ctx, `
SELECT id, username, email, password_hash, created_at
FROM users
WHERE id = ?`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").With("id", id.String()).Wrap(err)
	}
	return user, nil
}

// FindByUsername retrieves a user by exact username. SQLite compares TEXT
// with BINARY collation, so the match is case-sensitive.
func (d *UserDirectory) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := d.db.QueryRowContext(ctx, `
SELECT id, username, email, password_hash, created_at
FROM users
WHERE username = ?`, username)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_USERNAME_FAILED").With("username", username).Wrap(err)
	}
	return user, nil
}

// UpdatePasswordHash replaces the stored hash for a user.
func (d *UserDirectory) UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := d.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id.String())
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").With("id", id.String()).Wrap(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").With("id", id.String()).Wrap(err)
	}
	if n == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// Ping checks the database connection.
func (d *UserDirectory) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return oops.Code("SQLITE_PING_FAILED").Wrap(err)
	}
	return nil
}

// Close closes the database.
func (d *UserDirectory) Close() error {
	if err := d.db.Close(); err != nil {
		return oops.Code("SQLITE_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

func scanUser(row *sql.Row) (*auth.User, error) {
	var (
		idStr, username, email, passwordHash, createdStr string
	)
	if err := row.Scan(&idStr, &username, &email, &passwordHash, &createdStr); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with lookup context
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").With("id", idStr).Wrap(err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, createdStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_CREATED_AT").With("created_at", createdStr).Wrap(err)
	}

	return &auth.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt,
	}, nil
}

// uniqueViolationField reports the users column named in a SQLite UNIQUE
// constraint failure.
func uniqueViolationField(err error) (string, bool) {
	const marker = "UNIQUE constraint failed: users."
	msg := err.Error()
	i := strings.Index(msg, marker)
	if i < 0 {
		return "", false
	}
	field := msg[i+len(marker):]
	if j := strings.IndexAny(field, " ,)"); j >= 0 {
		field = field[:j]
	}
	return field, true
}

// Compile-time interface check.
var _ auth.UserDirectory = (*UserDirectory)(nil)
