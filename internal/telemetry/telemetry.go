// Package telemetry wires optional OpenTelemetry instrumentation: stdout
// trace and metric exporters, counters for processed messages and fallback
// activations, and an LLM latency histogram. Everything is nil-safe so the
// bot pays nothing when telemetry is off.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const meterName = "alicebot"

type Telemetry struct {
	tracer trace.Tracer

	messages   metric.Int64Counter
	fallbacks  metric.Int64Counter
	llmLatency metric.Float64Histogram
}

// Setup builds the providers and instruments. enabled=false returns a nil
// *Telemetry (all methods no-op) and a no-op shutdown func.
func Setup(ctx context.Context, enabled bool, version string) (*Telemetry, func(), error) {
	if !enabled {
		return nil, func() {}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(meterName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry resource: %w", err)
	}

	traceExporter, err := stdouttrace.New()
	if err != nil {
		return nil, nil, fmt.Errorf("trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricExporter, err := stdoutmetric.New()
	if err != nil {
		return nil, nil, fmt.Errorf("metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				metricExporter,
				sdkmetric.WithInterval(30*time.Second),
			),
		),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter(meterName)

	messages, err := meter.Int64Counter(
		"bot.messages.processed",
		metric.WithDescription("Messages answered, by reply source"),
	)
	if err != nil {
		return nil, nil, err
	}
	fallbacks, err := meter.Int64Counter(
		"bot.fallback.activations",
		metric.WithDescription("Replies produced by the template responder because the LLM was unavailable"),
	)
	if err != nil {
		return nil, nil, err
	}
	llmLatency, err := meter.Float64Histogram(
		"llm.client.request.duration",
		metric.WithDescription("LLM request duration in milliseconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	t := &Telemetry{
		tracer:     tp.Tracer(meterName),
		messages:   messages,
		fallbacks:  fallbacks,
		llmLatency: llmLatency,
	}

	shutdown := func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shCtx); err != nil {
			slog.Warn("telemetry_trace_shutdown_error", "error", err.Error())
		}
		if err := mp.Shutdown(shCtx); err != nil {
			slog.Warn("telemetry_metric_shutdown_error", "error", err.Error())
		}
	}
	return t, shutdown, nil
}

// StartSpan opens a span when telemetry is on; otherwise it returns the
// context unchanged and a no-op end func.
func (t *Telemetry) StartSpan(ctx context.Context, name string) (context.Context, func()) {
	if t == nil {
		return ctx, func() {}
	}
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, func() { span.End() }
}

// RecordMessage counts one answered message. source is "llm" or "template".
func (t *Telemetry) RecordMessage(ctx context.Context, source string) {
	if t == nil {
		return
	}
	t.messages.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordFallback counts a reply that degraded to the template responder.
func (t *Telemetry) RecordFallback(ctx context.Context) {
	if t == nil {
		return
	}
	t.fallbacks.Add(ctx, 1)
}

// RecordLLMLatency records one LLM round trip.
func (t *Telemetry) RecordLLMLatency(ctx context.Context, d time.Duration) {
	if t == nil {
		return
	}
	t.llmLatency.Record(ctx, float64(d.Milliseconds()))
}
