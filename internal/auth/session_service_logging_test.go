// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/identity/internal/auth"
)

// stubUserDirectoryLogging holds one user and can fail hash updates.
type stubUserDirectoryLogging struct {
	user      *auth.User
	updateErr error
}

func (m *stubUserDirectoryLogging) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	if m.user == nil || m.user.Username != username {
		return nil, auth.ErrNotFound
	}
	userCopy := *m.user
	return &userCopy, nil
}

func (m *stubUserDirectoryLogging) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	if m.user != nil && m.user.ID == id {
		userCopy := *m.user
		return &userCopy, nil
	}
	return nil, auth.ErrNotFound
}

func (m *stubUserDirectoryLogging) Insert(_ context.Context, user *auth.User) (*auth.User, error) {
	return auth.PrepareInsert(user), nil
}

func (m *stubUserDirectoryLogging) UpdatePasswordHash(_ context.Context, _ ulid.ULID, _ string) error {
	return m.updateErr
}

// stubSessionStoreLogging records the last write.
type stubSessionStoreLogging struct {
	values map[string][]byte
}

func (m *stubSessionStoreLogging) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if m.values == nil {
		m.values = map[string][]byte{}
	}
	m.values[key] = value
	return nil
}

func (m *stubSessionStoreLogging) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return nil, auth.ErrNotFound
}

func (m *stubSessionStoreLogging) Delete(_ context.Context, key string) error {
	delete(m.values, key)
	return nil
}

// stubHasherLogging accepts only "correctpassword" and flags bcrypt hashes
// for upgrade.
type stubHasherLogging struct {
	hashErr error
}

func (m *stubHasherLogging) Hash(_ string) (string, error) {
	if m.hashErr != nil {
		return "", m.hashErr
	}
	return "$argon2id$v=19$m=65536,t=1,p=4$salt$hash", nil
}

func (m *stubHasherLogging) Verify(password, _ string) (bool, error) {
	return password == "correctpassword", nil
}

func (m *stubHasherLogging) NeedsUpgrade(hash string) bool {
	return hash == "$2b$10$legacy"
}

type stubTokensLogging struct{}

func (stubTokensLogging) New() (string, error) {
	return "fixed-token", nil
}

type logEntry struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Operation string `json:"operation"`
	Error     string `json:"error"`
	UserID    string `json:"user_id"`
	TokenFP   string `json:"token_fp"`
}

func decodeLogLines(t *testing.T, buf *bytes.Buffer) []logEntry {
	t.Helper()
	var entries []logEntry
	dec := json.NewDecoder(buf)
	for dec.More() {
		var entry logEntry
		require.NoError(t, dec.Decode(&entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestSessionService_Login_LogsUpgradeFailure(t *testing.T) {
	tests := []struct {
		name      string
		hashErr   error
		updateErr error
		wantErr   string
	}{
		{
			name:    "rehash fails",
			hashErr: errors.New("entropy exhausted"),
			wantErr: "entropy exhausted",
		},
		{
			name:      "update fails",
			updateErr: errors.New("database connection lost"),
			wantErr:   "database connection lost",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &auth.User{ID: ulid.Make(), Username: "testuser", PasswordHash: "$2b$10$legacy"}
			users := &stubUserDirectoryLogging{user: user, updateErr: tt.updateErr}

			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

			svc, err := auth.NewSessionService(&stubSessionStoreLogging{}, users,
				&stubHasherLogging{hashErr: tt.hashErr}, stubTokensLogging{},
				auth.WithSessionLogger(logger))
			require.NoError(t, err)

			token, err := svc.Login(context.Background(), auth.Credentials{Username: "testuser", Password: "correctpassword"})
			require.NoError(t, err)
			assert.Equal(t, "fixed-token", token)

			entries := decodeLogLines(t, &buf)
			require.Len(t, entries, 1)
			assert.Equal(t, "WARN", entries[0].Level)
			assert.Contains(t, entries[0].Msg, "best-effort")
			assert.Equal(t, "upgrade_hash", entries[0].Operation)
			assert.Contains(t, entries[0].Error, tt.wantErr)
			assert.Equal(t, user.ID.String(), entries[0].UserID)
		})
	}
}

func TestSessionService_LogsNeverContainToken(t *testing.T) {
	user := &auth.User{ID: ulid.Make(), Username: "testuser", PasswordHash: "$argon2id$x"}

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	svc, err := auth.NewSessionService(&stubSessionStoreLogging{}, &stubUserDirectoryLogging{user: user},
		&stubHasherLogging{}, stubTokensLogging{}, auth.WithSessionLogger(logger))
	require.NoError(t, err)

	ctx := context.Background()
	token, err := svc.Login(ctx, auth.Credentials{Username: "testuser", Password: "correctpassword"})
	require.NoError(t, err)
	_, err = svc.Extend(ctx, token)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, token))

	assert.NotContains(t, buf.String(), token)
	assert.NotContains(t, buf.String(), "correctpassword")

	entries := decodeLogLines(t, &buf)
	require.NotEmpty(t, entries)
	for _, entry := range entries {
		if entry.TokenFP != "" {
			assert.Equal(t, auth.TokenFingerprint(token), entry.TokenFP)
		}
	}
}
