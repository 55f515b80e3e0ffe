// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package tracing installs the process-wide OpenTelemetry tracer provider.
package tracing

import (
	"context"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config selects the exporter and sampling.
type Config struct {
	ServiceName string
	Version     string
	// Endpoint is the OTLP/HTTP collector host:port. Empty disables export;
	// spans are still created so trace IDs reach the logs.
	Endpoint string
	Insecure bool
	// SampleRatio is the fraction of root spans sampled, in [0, 1].
	SampleRatio float64
}

// Option customizes Setup.
type Option func(*options)

type options struct {
	exporter sdktrace.SpanExporter
	syncer   bool
}

// WithExporter replaces the OTLP exporter, e.g. with a tracetest exporter.
// Spans are exported synchronously so tests see them on End.
func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) {
		o.exporter = exp
		o.syncer = true
	}
}

// ShutdownFunc flushes and stops the provider.
type ShutdownFunc func(ctx context.Context) error

// Setup builds a tracer provider from cfg and installs it, along with the
// W3C trace-context propagator, as the otel global.
func Setup(ctx context.Context, cfg Config, opts ...Option) (*sdktrace.TracerProvider, ShutdownFunc, error) {
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return nil, nil, oops.Code("TRACING_CONFIG_INVALID").
			With("sample_ratio", cfg.SampleRatio).
			Errorf("sample ratio must be between 0 and 1")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.Version),
	)

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	}

	exporter := o.exporter
	if exporter == nil && cfg.Endpoint != "" {
		httpOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, httpOpts...)
		if err != nil {
			return nil, nil, oops.Code("TRACING_EXPORTER_FAILED").
				With("endpoint", cfg.Endpoint).
				Wrap(err)
		}
		exporter = exp
	}

	switch {
	case exporter == nil:
	case o.syncer:
		tpOpts = append(tpOpts, sdktrace.WithSyncer(exporter))
	default:
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	shutdown := func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return oops.Code("TRACING_SHUTDOWN_FAILED").Wrap(err)
		}
		return nil
	}
	return tp, shutdown, nil
}
