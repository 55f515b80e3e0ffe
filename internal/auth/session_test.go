// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/identity/internal/auth"
	"github.com/holomush/identity/pkg/errutil"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestNewRandomTokenGenerator(t *testing.T) {
	t.Run("rejects sizes below the minimum", func(t *testing.T) {
		gen, err := auth.NewRandomTokenGenerator(auth.SessionTokenBytes - 1)
		require.Error(t, err)
		assert.Nil(t, gen)
		errutil.AssertErrorCode(t, err, "SESSION_TOKEN_SIZE_INVALID")
	})

	t.Run("accepts larger sizes", func(t *testing.T) {
		gen, err := auth.NewRandomTokenGenerator(64)
		require.NoError(t, err)

		token, err := gen.New()
		require.NoError(t, err)
		raw, err := base64.RawURLEncoding.DecodeString(token)
		require.NoError(t, err)
		assert.Len(t, raw, 64)
	})
}

func TestRandomTokenGenerator_New(t *testing.T) {
	gen, err := auth.NewRandomTokenGenerator(auth.SessionTokenBytes)
	require.NoError(t, err)

	t.Run("produces url-safe tokens of fixed length", func(t *testing.T) {
		token, err := gen.New()
		require.NoError(t, err)
		assert.Len(t, token, 44)
		assert.NotContains(t, token, "=")
		assert.NotContains(t, token, "+")
		assert.NotContains(t, token, "/")
	})

	t.Run("produces unique tokens", func(t *testing.T) {
		seen := make(map[string]struct{}, 1000)
		for range 1000 {
			token, err := gen.New()
			require.NoError(t, err)
			_, dup := seen[token]
			require.False(t, dup, "duplicate token %s", token)
			seen[token] = struct{}{}
		}
	})

	t.Run("encodes the entropy source", func(t *testing.T) {
		src := bytes.Repeat([]byte{0xfb}, auth.SessionTokenBytes)
		fixed, err := auth.NewRandomTokenGenerator(auth.SessionTokenBytes,
			auth.WithEntropySource(bytes.NewReader(src)))
		require.NoError(t, err)

		token, err := fixed.New()
		require.NoError(t, err)
		assert.Equal(t, base64.RawURLEncoding.EncodeToString(src), token)
	})

	t.Run("fails when entropy is unavailable", func(t *testing.T) {
		broken, err := auth.NewRandomTokenGenerator(auth.SessionTokenBytes,
			auth.WithEntropySource(failingReader{}))
		require.NoError(t, err)

		token, err := broken.New()
		require.Error(t, err)
		assert.Empty(t, token)
		errutil.AssertErrorCode(t, err, "SESSION_TOKEN_GENERATE_FAILED")
		errutil.AssertErrorContext(t, err, "requested_bytes", auth.SessionTokenBytes)
	})

	t.Run("fails on a short entropy source", func(t *testing.T) {
		short, err := auth.NewRandomTokenGenerator(auth.SessionTokenBytes,
			auth.WithEntropySource(strings.NewReader("too short")))
		require.NoError(t, err)

		_, err = short.New()
		errutil.AssertErrorCode(t, err, "SESSION_TOKEN_GENERATE_FAILED")
	})
}

func TestTokenFingerprint(t *testing.T) {
	t.Run("is stable", func(t *testing.T) {
		assert.Equal(t, auth.TokenFingerprint("abc"), auth.TokenFingerprint("abc"))
	})

	t.Run("differs per token", func(t *testing.T) {
		assert.NotEqual(t, auth.TokenFingerprint("abc"), auth.TokenFingerprint("abd"))
	})

	t.Run("does not contain the token", func(t *testing.T) {
		token := "secret-session-token"
		fp := auth.TokenFingerprint(token)
		assert.Len(t, fp, 12)
		assert.NotContains(t, fp, token)
	})
}

func TestSessionData(t *testing.T) {
	id := ulid.Make()

	t.Run("encodes user_id", func(t *testing.T) {
		raw, err := auth.SessionData{UserID: id}.Encode()
		require.NoError(t, err)
		assert.JSONEq(t, `{"user_id":"`+id.String()+`"}`, string(raw))
	})

	t.Run("decodes what it encodes", func(t *testing.T) {
		raw, err := auth.SessionData{UserID: id}.Encode()
		require.NoError(t, err)

		data, err := auth.DecodeSessionData(raw)
		require.NoError(t, err)
		assert.Equal(t, id, data.UserID)
	})

	t.Run("rejects malformed values", func(t *testing.T) {
		tests := []struct {
			name string
			raw  string
		}{
			{name: "not json", raw: "garbage"},
			{name: "missing user_id", raw: `{}`},
			{name: "invalid ulid", raw: `{"user_id":"nope"}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := auth.DecodeSessionData([]byte(tt.raw))
				errutil.AssertErrorCode(t, err, "SESSION_DECODE_FAILED")
			})
		}
	})
}

func TestHashSessionToken(t *testing.T) {
	t.Run("produces consistent hash", func(t *testing.T) {
		assert.Equal(t, auth.HashSessionToken("testtoken123"), auth.HashSessionToken("testtoken123"))
	})

	t.Run("hash is SHA256 hex-encoded", func(t *testing.T) {
		hash := auth.HashSessionToken("testtoken123")
		assert.Len(t, hash, 64)
		assert.NotEqual(t, "testtoken123", hash)
	})

	t.Run("fingerprint is a prefix of the hash", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(auth.HashSessionToken("tok"), auth.TokenFingerprint("tok")))
	})
}
