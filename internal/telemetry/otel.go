// Package telemetry is a per-turn span tracer built on
// go.opentelemetry.io/otel (resource/exporter/provider setup and an
// attribute-typed span wrapper), plus an append-only event sink and
// aggregate counters satisfying interfaces.TelemetrySink.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerProvider owns the process-wide OTel tracer and its exporter.
type TracerProvider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewTracerProvider builds a TracerProvider. If otlpEndpoint is empty,
// spans are exported to stdout (useful for local runs without a
// collector); otherwise an OTLP/gRPC exporter is used.
func NewTracerProvider(serviceName, otlpEndpoint string) (*TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	if otlpEndpoint == "" {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	} else {
		exporter, err = otlptracegrpc.New(context.Background(),
			otlptracegrpc.WithEndpoint(otlpEndpoint),
			otlptracegrpc.WithInsecure(),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("telemetry: build exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &TracerProvider{tp: tp, tracer: tp.Tracer("sentra")}, nil
}

// StartTurnSpan starts the root span for one orchestrated turn.
func (p *TracerProvider) StartTurnSpan(ctx context.Context, sessionID string, turn int, mode string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "session.turn", trace.WithAttributes(
		attribute.String("session_id", sessionID),
		attribute.Int("turn", turn),
		attribute.String("mode", mode),
	))
}

// StartStageSpan starts a child span for one pipeline stage.
func (p *TracerProvider) StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "session.stage."+stage)
}

// Shutdown flushes and tears down the tracer provider.
func (p *TracerProvider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}
