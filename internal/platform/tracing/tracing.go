package tracing

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Options struct {
	Enabled     bool
	Stdout      bool
	ServiceName string
	Logger      *slog.Logger
}

// Setup installs the global tracer provider. Spans go to an OTLP/HTTP
// endpoint configured through the OTEL_EXPORTER_OTLP_* variables, or to
// stdout when Stdout is set. The returned func flushes and stops the
// provider; it is a no-op when tracing is disabled.
func Setup(ctx context.Context, opts Options) (func(context.Context) error, error) {
	if !opts.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	if opts.Stdout {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	} else {
		exporter, err = otlptracehttp.New(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", opts.ServiceName),
	)
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	if opts.Logger != nil {
		opts.Logger.Info("tracing enabled",
			"event", "tracing_enabled",
			"module", "internal/platform/tracing",
			"layer", "platform",
			"stdout", opts.Stdout,
		)
	}
	return provider.Shutdown, nil
}
