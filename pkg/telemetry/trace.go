package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
)

const serviceName = "mongodb-dc-topology"

// Tracer is used for every orchestration span. Without SetupTracing it resolves to the global no-op provider.
func Tracer() trace.Tracer {
	return otel.Tracer(serviceName)
}

// StartSpan opens a span named after an orchestration step.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// SetupTracing installs an OTLP/gRPC exporting tracer provider if endpoint is set. The returned provider must be
// shut down by the caller; it is nil when tracing stays disabled.
func SetupTracing(ctx context.Context, endpoint string, log *zap.SugaredLogger) (*sdktrace.TracerProvider, error) {
	if endpoint == "" {
		log.Debug("tracing endpoint missing, not configuring tracing")
		return nil, nil
	}

	log.Debugf("Setting up tracing with endpoint=%s", endpoint)

	exporter, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		log.Warnf("Failed to create OTLP exporter: %v", err)
		return nil, err
	}

	bsp := sdktrace.NewBatchSpanProcessor(
		exporter,
		sdktrace.WithBatchTimeout(5*time.Second),
	)

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
		attribute.String("component", "orchestrator"),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)

	return tp, nil
}
