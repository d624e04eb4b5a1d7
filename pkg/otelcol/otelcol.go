package otelcol

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("otelcol",
	fx.Provide(
		ProvideHTTPExporter,
		ProvideTrace,
	),
	fx.Invoke(Register),
)

func ProvideTrace(exporter *otlptrace.Exporter) *trace.TracerProvider {
	return trace.NewTracerProvider(
		trace.WithResource(resource.Default()),
		trace.WithBatcher(exporter),
	)
}

// Register installs tp as the global tracer provider and flushes spans on
// shutdown.
func Register(lc fx.Lifecycle, tp *trace.TracerProvider) {
	otel.SetTracerProvider(tp)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
}
