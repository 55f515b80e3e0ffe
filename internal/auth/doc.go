// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth implements the identity core: credential hashing, session
// token issuance, and the user and session services built on them.
//
// # Collaborators
//
// The services depend only on interfaces:
//   - PasswordHasher - salted one-way hashing (Argon2idHasher)
//   - TokenGenerator - opaque URL-safe tokens (RandomTokenGenerator)
//   - SessionStore - key-value store with per-key expiry
//   - UserDirectory - persistent users with a unique username
//
// Implementations of SessionStore and UserDirectory live in the memory,
// redis, postgres and sqlite subpackages.
//
// # Sessions
//
// A session is valid while its token exists in the SessionStore. Expiry is
// delegated entirely to the store: Login writes the token with the session
// TTL, Extend rewrites the same value with a fresh TTL, Revoke deletes it.
//
// # Errors
//
// Every operation returns either a value or one error. KindOf classifies
// the error into the kinds callers map to transport status codes.
package auth
