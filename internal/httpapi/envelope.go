// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/holomush/identity/internal/auth"
)

// Envelope statuses.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// Transport-only error kinds; the core never returns these.
const (
	kindMethodNotAllowed = "MethodNotAllowedError"
)

// Fixed client-facing messages.
const (
	msgResourceNotFound = "resource not found"
	msgMethodNotAllowed = "method not allowed"
	msgInternal         = "internal server error"
)

// envelope is the body of every response. Message is omitted on success.
type envelope struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Data    any    `json:"data"`
	Message any    `json:"message,omitempty"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind auth.ErrorKind) int {
	switch kind {
	case auth.KindValidation, auth.KindDecode, auth.KindInvalidCredentials:
		return http.StatusBadRequest
	case auth.KindConflict:
		return http.StatusConflict
	case auth.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{
		Code:   http.StatusOK,
		Status: statusSuccess,
		Data:   data,
	})
}

func writeFailure(c *gin.Context, code int, kind string, message any) {
	c.AbortWithStatusJSON(code, envelope{
		Code:    code,
		Status:  statusError,
		Data:    kind,
		Message: message,
	})
}

// errorMessage is the client-facing message for err of the given kind.
// Validation errors carry the field map; internal errors a fixed string.
func errorMessage(kind auth.ErrorKind, err error) any {
	switch kind {
	case auth.KindValidation:
		if fields := auth.ValidationFields(err); fields != nil {
			return fields
		}
		return err.Error()
	case auth.KindInternal:
		return msgInternal
	default:
		return err.Error()
	}
}
