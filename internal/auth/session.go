// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes = 33                 // 33 bytes = 44 base64url chars
	DefaultSessionTTL = 3600 * time.Second // rolling expiry window
)

// SessionStore is a key-value store with per-key expiry. The store is the
// single source of truth for session existence and expiry.
type SessionStore interface {
	// Set upserts value and resets the key's expiry to ttl from now.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the current value, or ErrNotFound if the key is absent
	// or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// SessionData is the value stored under a session token.
type SessionData struct {
	UserID ulid.ULID `json:"user_id"`
}

// Encode serializes the session value as {"user_id": "<id>"}.
func (d SessionData) Encode() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
	}
	return data, nil
}

// DecodeSessionData parses a stored session value.
func DecodeSessionData(raw []byte) (SessionData, error) {
	var d SessionData
	if err := json.Unmarshal(raw, &d); err != nil {
		return SessionData{}, oops.Code("SESSION_DECODE_FAILED").Wrap(err)
	}
	if d.UserID.Compare(ulid.ULID{}) == 0 {
		return SessionData{}, oops.Code("SESSION_DECODE_FAILED").Errorf("session value has no user_id")
	}
	return d, nil
}

// TokenGenerator produces opaque session tokens.
type TokenGenerator interface {
	New() (string, error)
}

// TokenGeneratorOption configures a RandomTokenGenerator.
type TokenGeneratorOption func(*RandomTokenGenerator)

// WithEntropySource replaces crypto/rand as the byte source.
func WithEntropySource(r io.Reader) TokenGeneratorOption {
	return func(g *RandomTokenGenerator) {
		g.random = r
	}
}

// RandomTokenGenerator draws random bytes and encodes them URL-safe.
type RandomTokenGenerator struct {
	size   int
	random io.Reader
}

// NewRandomTokenGenerator creates a generator producing tokens from size
// random bytes. Sizes below SessionTokenBytes are rejected.
func NewRandomTokenGenerator(size int, opts ...TokenGeneratorOption) (*RandomTokenGenerator, error) {
	if size < SessionTokenBytes {
		return nil, oops.Code("SESSION_TOKEN_SIZE_INVALID").
			With("size", size).
			With("min", SessionTokenBytes).
			Errorf("session token size must be at least %d bytes", SessionTokenBytes)
	}
	g := &RandomTokenGenerator{size: size, random: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// New returns a fresh base64url token without padding.
func (g *RandomTokenGenerator) New() (string, error) {
	buf := make([]byte, g.size)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", g.size).
			Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashSessionToken returns the SHA-256 hex digest of a token. Stores that
// persist sessions to disk key them by this digest instead of the token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// TokenFingerprint returns a short, non-reversible identifier for a token
// that is safe to log.
func TokenFingerprint(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:6])
}
