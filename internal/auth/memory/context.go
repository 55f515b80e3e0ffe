// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory

import (
	"context"

	"github.com/samber/oops"
)

// checkContext returns ctx's error, coded, once ctx is done. Operations call
// it before touching state so a cancelled caller leaves nothing behind.
func checkContext(ctx context.Context, code, operation string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code(code).With("operation", operation).Wrap(err)
	}
	return nil
}
