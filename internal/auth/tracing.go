// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/holomush/identity/internal/auth"

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// finishSpan tags the span with the error kind and ends it. Only internal
// errors mark the span as failed; the rest are expected outcomes.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		kind := KindOf(err)
		span.SetAttributes(attribute.String("auth.error_kind", kind.String()))
		if kind == KindInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, "internal error")
		}
	}
	span.End()
}
