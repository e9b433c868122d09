// Package telemetry wraps dispatch in an optional OTel span, off by
// default (no-op tracer): operators running an OTel collector against
// this server get matching producer-side spans on Browse and Publish.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps a trace.Tracer, defaulting to the global no-op tracer so
// Server works unmodified when no TracerProvider is supplied.
type Tracer struct {
	tracer trace.Tracer
}

func New(provider trace.TracerProvider) *Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracer{tracer: provider.Tracer("opcuad")}
}

// StartSpan opens a span named after the service being dispatched
// ("Browse", "Publish", ...). Callers must end the returned span.
func (t *Tracer) StartSpan(ctx context.Context, service string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, service)
}
