package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	metrics "github.com/tigerroll/postchunk/pkg/batch/core/metrics"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/logger"
)

const tracerName = "github.com/tigerroll/postchunk"

// TracingConfig selects the OTLP/HTTP collector spans are exported to.
type TracingConfig struct {
	ServiceName string
	// Endpoint is the collector host:port. Empty disables export.
	Endpoint string
	Insecure bool
}

// OpenTelemetryTracer is an implementation of metrics.Tracer using OpenTelemetry.
type OpenTelemetryTracer struct {
	tracer   trace.Tracer
	shutdown func(context.Context) error
	log      logger.Logger
}

// NewOpenTelemetryTracer creates a tracer exporting over OTLP/HTTP.
// Without an endpoint the tracer is backed by a no-op provider.
func NewOpenTelemetryTracer(ctx context.Context, cfg TracingConfig, log logger.Logger) (*OpenTelemetryTracer, error) {
	if cfg.Endpoint == "" {
		return &OpenTelemetryTracer{
			tracer:   noop.NewTracerProvider().Tracer(tracerName),
			shutdown: func(context.Context) error { return nil },
			log:      log.Named("tracing"),
		}, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	return newTracer(sdktrace.WithBatcher(exporter), cfg.ServiceName, log), nil
}

// NewOpenTelemetryTracerWithExporter creates a tracer that exports synchronously to exporter.
func NewOpenTelemetryTracerWithExporter(exporter sdktrace.SpanExporter, serviceName string, log logger.Logger) *OpenTelemetryTracer {
	return newTracer(sdktrace.WithSyncer(exporter), serviceName, log)
}

func newTracer(exportOpt sdktrace.TracerProviderOption, serviceName string, log logger.Logger) *OpenTelemetryTracer {
	provider := sdktrace.NewTracerProvider(
		exportOpt,
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	return &OpenTelemetryTracer{
		tracer:   provider.Tracer(tracerName),
		shutdown: provider.Shutdown,
		log:      log.Named("tracing"),
	}
}

// StartSpan implements metrics.Tracer.
func (t *OpenTelemetryTracer) StartSpan(ctx context.Context, name string, attributes map[string]interface{}) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attributes)...))
	return ctx, func() { span.End() }
}

// RecordError implements metrics.Tracer.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("module", module)))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent implements metrics.Tracer.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(toAttributes(attributes)...))
}

// Shutdown implements metrics.Tracer.
func (t *OpenTelemetryTracer) Shutdown(ctx context.Context) error {
	if err := t.shutdown(ctx); err != nil {
		t.log.Warnf("Failed to shut down tracer provider: %v", err)
		return err
	}
	return nil
}

func toAttributes(m map[string]interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprint(val)))
		}
	}
	return attrs
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
