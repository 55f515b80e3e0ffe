// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"
	"strings"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateKey is returned by a UserDirectory when an insert violates a
// uniqueness constraint. The conflicting fields are attached under the
// "fields" context key.
var ErrDuplicateKey = errors.New("duplicate key")

// Error codes that tag the caller-visible error kinds.
const (
	CodeValidation         = "AUTH_VALIDATION_FAILED"
	CodeDecode             = "REQUEST_DECODE_FAILED"
	CodeConflict           = "AUTH_CONFLICT"
	CodeNotFound           = "AUTH_NOT_FOUND"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
)

// ErrorKind classifies every error a core operation can return.
// The string value is the name used on the wire.
type ErrorKind string

// Error kinds.
const (
	KindValidation         ErrorKind = "ValidationError"
	KindDecode             ErrorKind = "JSONDecodeError"
	KindConflict           ErrorKind = "ConflictError"
	KindNotFound           ErrorKind = "NotFoundError"
	KindInvalidCredentials ErrorKind = "InvalidCredentialsError"
	KindInternal           ErrorKind = "InternalError"
)

func (k ErrorKind) String() string {
	return string(k)
}

// KindOf returns the kind of err. Errors that carry none of the kind codes
// are internal. A nil error has no kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return KindInternal
	}
	switch oopsErr.Code() {
	case CodeValidation:
		return KindValidation
	case CodeDecode:
		return KindDecode
	case CodeConflict:
		return KindConflict
	case CodeNotFound:
		return KindNotFound
	case CodeInvalidCredentials:
		return KindInvalidCredentials
	default:
		return KindInternal
	}
}

// NewValidationError reports malformed or missing input.
func NewValidationError(fields FieldErrors) error {
	return oops.Code(CodeValidation).
		With("fields", fields).
		Errorf("validation failed")
}

// NewDecodeError reports a request payload that could not be decoded.
func NewDecodeError(cause error) error {
	return oops.Code(CodeDecode).Errorf("%s", cause.Error())
}

// NewConflictError reports a uniqueness violation on the named fields.
func NewConflictError(fields ...string) error {
	return oops.Code(CodeConflict).
		With("fields", fields).
		Errorf("%s field(s) must be unique", strings.Join(fields, ", "))
}

// NewNotFoundError reports a missing resource, e.g. "user" or "session token".
func NewNotFoundError(resource string) error {
	return oops.Code(CodeNotFound).
		With("resource", resource).
		Errorf("%s not found", resource)
}

// NewInvalidCredentialsError reports a known username with a wrong password.
func NewInvalidCredentialsError() error {
	return oops.Code(CodeInvalidCredentials).Errorf("incorrect username or password")
}

// ValidationFields returns the field errors carried by a validation error.
func ValidationFields(err error) FieldErrors {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	if fields, ok := oopsErr.Context()["fields"].(FieldErrors); ok {
		return fields
	}
	return nil
}

// DuplicateFields returns the conflicting field names attached to a
// duplicate-key or conflict error.
func DuplicateFields(err error) []string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	if fields, ok := oopsErr.Context()["fields"].([]string); ok {
		return fields
	}
	return nil
}
