// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/holomush/identity/internal/auth"
)

// reasonNotString is reported for a field holding a non-string JSON value.
const reasonNotString = "must be of string type"

var errNotObject = errors.New("request body must be a JSON object")

// bindStrings decodes a JSON object body and returns the named string
// fields. A body that is not a JSON object is a decode error. A named field
// of another JSON type is reported in the returned FieldErrors; a missing
// or null field is left empty for the service's validation to flag.
func bindStrings(c *gin.Context, names ...string) (map[string]string, auth.FieldErrors, error) {
	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, nil, auth.NewDecodeError(errNotObject)
		}
		return nil, nil, auth.NewDecodeError(err)
	}

	values := make(map[string]string, len(names))
	fe := auth.FieldErrors{}
	for _, name := range names {
		msg, ok := raw[name]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			fe.Add(name, reasonNotString)
			continue
		}
		values[name] = s
	}
	return values, fe, nil
}

// mergeFieldErrors adds the reasons in extra for fields not already in fe.
func mergeFieldErrors(fe, extra auth.FieldErrors) auth.FieldErrors {
	for field, reasons := range extra {
		if _, seen := fe[field]; seen {
			continue
		}
		fe[field] = reasons
	}
	return fe
}
