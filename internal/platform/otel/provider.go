// Package otel wires opt-in OTLP trace export for service processes.
package otel

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Setup initialises tracing for the named service and returns a shutdown
// function that flushes pending spans.
//
// Export is opt-in: with no KOTHA_OTEL_ENDPOINT, or with KOTHA_OTEL_ENABLED
// set to "false", the shutdown function is a no-op and no global provider is
// registered.
func Setup(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	endpoint, enabled := exportTarget()
	if !enabled {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return provider.Shutdown, nil
}

func exportTarget() (endpoint string, enabled bool) {
	if strings.EqualFold(os.Getenv("KOTHA_OTEL_ENABLED"), "false") {
		return "", false
	}
	endpoint = strings.TrimSpace(os.Getenv("KOTHA_OTEL_ENDPOINT"))
	return endpoint, endpoint != ""
}
