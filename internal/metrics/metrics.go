// Package metrics holds the process-wide OTel instruments handlers and the
// graph layer record against, plus Init, which wires the global meter
// provider to an exporter. Until Init runs, otel's default no-op provider
// backs every instrument, so recording a metric before Init is harmless.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const instrumentationName = "github.com/andburman/graphkeep"

// handlerMetrics holds the instruments every tool handler records against.
// Registered once at package init against the process's meter, matching
// the storage layer's doltMetrics instrument-registration idiom.
var handlerMetrics struct {
	callCount   metric.Int64Counter
	callLatency metric.Float64Histogram
	errorCount  metric.Int64Counter
}

func init() {
	m := otel.Meter(instrumentationName)
	handlerMetrics.callCount, _ = m.Int64Counter("graphkeep.handler.calls",
		metric.WithDescription("Tool handler invocations"),
		metric.WithUnit("{call}"),
	)
	handlerMetrics.callLatency, _ = m.Float64Histogram("graphkeep.handler.latency_ms",
		metric.WithDescription("Tool handler latency"),
		metric.WithUnit("ms"),
	)
	handlerMetrics.errorCount, _ = m.Int64Counter("graphkeep.handler.errors",
		metric.WithDescription("Tool handler invocations that returned an error"),
		metric.WithUnit("{call}"),
	)
}

// RecordCall records one handler invocation's outcome and latency,
// tagged with the handler's name so a dashboard can break down calls
// per operation (graph_plan, graph_next, graph_resolve, ...).
func RecordCall(ctx context.Context, handler string, latencyMs float64, err error) {
	attrs := metric.WithAttributes(attribute.String("handler", handler))
	handlerMetrics.callCount.Add(ctx, 1, attrs)
	handlerMetrics.callLatency.Record(ctx, latencyMs, attrs)
	if err != nil {
		handlerMetrics.errorCount.Add(ctx, 1, attrs)
	}
}

// ShutdownFunc flushes and stops the exporter started by Init.
type ShutdownFunc func(context.Context) error

// Init builds a stdout-exporting meter provider and installs it as the
// global provider, so every instrument registered via otel.Meter (in this
// package and the storage layer) starts emitting readings on its
// collection interval. Returns a shutdown func the caller defers.
func Init(ctx context.Context, serviceName string) (ShutdownFunc, error) {
	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("metrics init: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("metrics init: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}
