// Package telemetry wires the OpenTelemetry tracer provider for the policy
// store and offers enrichment helpers that attach policy metadata to spans so
// operators can correlate administrative mutations with evaluation-cache
// churn downstream.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/Arbiter-AC/arbiter/internal/domain/policy"
)

// TracerName is the instrumentation scope for policy store spans.
const TracerName = "github.com/Arbiter-AC/arbiter/policystore"

// SetupProvider initialises the process-wide tracer provider with a stdout
// span exporter and returns a shutdown function that callers must invoke
// during graceful termination to flush buffered spans. When enabled is
// false it returns a no-op shutdown and leaves the global provider alone.
func SetupProvider(ctx context.Context, serviceName string, enabled bool) (func(context.Context) error, error) {
	if !enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// RecordMutation annotates the span with the policy mutation being applied.
func RecordMutation(span trace.Span, policyID string, action policy.InvalidationAction) {
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.String("policy.id", policyID),
		attribute.String("policy.action", string(action)),
	)
}

// RecordInvalidation marks the dispatch of an evaluation cache invalidation.
func RecordInvalidation(span trace.Span, inv policy.Invalidation) {
	if !span.IsRecording() {
		return
	}
	span.AddEvent("cache.invalidated", trace.WithAttributes(
		attribute.String("invalidation.event_id", inv.EventID),
		attribute.String("invalidation.action", string(inv.Action)),
	))
}
