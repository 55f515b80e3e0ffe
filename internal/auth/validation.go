// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"fmt"
	"unicode/utf8"
)

// Field limits match the width of the users table columns.
const (
	MaxUsernameLength = 50
	MaxEmailLength    = 50
)

// Validation reasons.
const (
	ReasonRequired = "required"
)

// FieldErrors maps a field name to the reasons it failed validation.
type FieldErrors map[string][]string

// Add records a reason for field.
func (fe FieldErrors) Add(field, reason string) {
	fe[field] = append(fe[field], reason)
}

// Empty reports whether no field failed.
func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

// Err returns a validation error carrying fe, or nil if fe is empty.
func (fe FieldErrors) Err() error {
	if fe.Empty() {
		return nil
	}
	return NewValidationError(fe)
}

// Registration is the input to UserService.Register.
type Registration struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// Validate checks that every field is present and within limits.
func (r Registration) Validate() FieldErrors {
	fe := FieldErrors{}
	requireString(fe, "username", r.Username, MaxUsernameLength)
	requireString(fe, "password", r.Password, 0)
	requireString(fe, "email", r.Email, MaxEmailLength)
	return fe
}

// Credentials is the input to SessionService.Login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks that both fields are present.
func (c Credentials) Validate() FieldErrors {
	fe := FieldErrors{}
	requireString(fe, "username", c.Username, 0)
	requireString(fe, "password", c.Password, 0)
	return fe
}

// requireString flags an empty value, and a value longer than maxLen runes
// when maxLen is positive.
func requireString(fe FieldErrors, field, value string, maxLen int) {
	if value == "" {
		fe.Add(field, ReasonRequired)
		return
	}
	if maxLen > 0 && utf8.RuneCountInString(value) > maxLen {
		fe.Add(field, fmt.Sprintf("max length is %d", maxLen))
	}
}
