// Package observability wires the OpenTelemetry SDK exporters declared
// in go.mod (stdout for development, OTLP for production) into the
// global trace and meter providers every other package's
// otel.Tracer/otel.Meter calls resolve against (SPEC_FULL §4.8).
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/opencausal/latticegraphd/internal/config"
)

// ServiceName is the resource attribute every exported span and metric
// carries.
const ServiceName = "latticegraphd"

// Shutdown flushes and stops every exporter Init registered. Callers
// should defer it and pass a context with a short deadline.
type Shutdown func(context.Context) error

// Init installs a TracerProvider and MeterProvider selected by
// cfg.OTel.Exporter. Every store span and metric (SPEC_FULL §4.8) is
// emitted against whichever provider Init installed (eventbus log lines
// go to slog, not to these providers); before Init runs, otel.Tracer/otel.Meter already return
// working no-op implementations, so callers that never call Init still
// compile and run correctly (e.g. in tests).
func Init(ctx context.Context, cfg config.OTel) (Shutdown, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	switch cfg.Exporter {
	case "", "stdout":
		return initStdout(ctx, res)
	case "otlp":
		return initOTLP(ctx, res, cfg.Endpoint)
	default:
		return nil, fmt.Errorf("observability: unknown exporter %q", cfg.Exporter)
	}
}

func initStdout(ctx context.Context, res *resource.Resource) (Shutdown, error) {
	traceExp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("observability: stdout trace exporter: %w", err)
	}
	metricExp, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("observability: stdout metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	mp := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metricExp)),
		metric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return shutdownBoth(tp, mp), nil
}

func initOTLP(ctx context.Context, res *resource.Resource, endpoint string) (Shutdown, error) {
	metricExp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(endpoint), otlpmetrichttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("observability: otlp metric exporter: %w", err)
	}

	// Only metrics go to the OTLP endpoint; traces are written by the
	// stdout trace exporter, batched independently of metrics (go.mod
	// carries no OTLP trace-exporter module).
	traceExp, err := stdouttrace.New()
	if err != nil {
		return nil, fmt.Errorf("observability: trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	mp := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metricExp)),
		metric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return shutdownBoth(tp, mp), nil
}

func shutdownBoth(tp *sdktrace.TracerProvider, mp *metric.MeterProvider) Shutdown {
	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("observability: shutdown tracer provider: %w", err)
		}
		if err := mp.Shutdown(ctx); err != nil {
			return fmt.Errorf("observability: shutdown meter provider: %w", err)
		}
		return nil
	}
}
