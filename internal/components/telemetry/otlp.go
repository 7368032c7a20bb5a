package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"petstay-backend/internal/components/configutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Collector points one signal at an OTLP collector, the grpc endpoint wins
// when both are set.
type Collector struct {
	GrpcEndpoint string            `json:"grpc_endpoint"`
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

func (c Collector) protocol() string {
	if c.GrpcEndpoint != "" {
		return "grpc"
	}
	return "http"
}

// Config is the shape of telemetry.json5.
type Config struct {
	Traces  Collector `json:"traces"`
	Metrics Collector `json:"metrics"`
	// SampleRatio is the fraction of runs traced, zero traces every run.
	SampleRatio float64 `json:"sample_ratio"`
	// MetricIntervalSeconds is how often metrics are pushed, default 15.
	MetricIntervalSeconds int `json:"metric_interval_seconds"`
	// Attributes are added to the resource of every span and metric, the
	// host a scheduled collector runs on for example.
	Attributes map[string]string `json:"attributes"`
}

// Providers are the installed global otel providers.
type Providers struct {
	Tracer *trace.TracerProvider
	Meter  *metric.MeterProvider
}

// Shutdown flushes whatever spans and metrics are still buffered.
func (p Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if p.Tracer != nil {
		errs = append(errs, p.Tracer.Shutdown(ctx))
	}
	if p.Meter != nil {
		errs = append(errs, p.Meter.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// SetupFromEnv looks for telemetry.json5 in the working directory and its
// parents and installs exporters from it. os.ErrNotExist means no file was
// found and nothing was installed.
func SetupFromEnv(ctx context.Context, serviceName string) (Providers, error) {
	cfg, err := configutil.ReadRecursively[Config]("telemetry.json5")
	if err != nil {
		return Providers{}, err
	}
	return Setup(ctx, serviceName, cfg)
}

// Setup installs OTLP trace and metric exporters as the global providers.
func Setup(ctx context.Context, serviceName string, cfg Config) (Providers, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	r, err := newResource(serviceName, cfg.Attributes)
	if err != nil {
		return Providers{}, fmt.Errorf("telemetry resource: %w", err)
	}

	spans, err := traceExporter(ctx, cfg.Traces)
	if err != nil {
		return Providers{}, fmt.Errorf("trace exporter: %w", err)
	}
	sampler := trace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = trace.ParentBased(trace.TraceIDRatioBased(cfg.SampleRatio))
	}
	tracer := trace.NewTracerProvider(
		trace.WithBatcher(spans),
		trace.WithResource(r),
		trace.WithSampler(sampler),
	)

	metrics, err := metricExporter(ctx, cfg.Metrics)
	if err != nil {
		return Providers{Tracer: tracer}, fmt.Errorf("metric exporter: %w", err)
	}
	interval := 15 * time.Second
	if cfg.MetricIntervalSeconds > 0 {
		interval = time.Duration(cfg.MetricIntervalSeconds) * time.Second
	}
	meter := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metrics, metric.WithInterval(interval))),
		metric.WithResource(r),
	)

	otel.SetTracerProvider(tracer)
	otel.SetMeterProvider(meter)
	slog.Info(
		"telemetry exporting",
		"traces", cfg.Traces.protocol(),
		"metrics", cfg.Metrics.protocol(),
		"interval", interval,
	)
	return Providers{Tracer: tracer, Meter: meter}, nil
}

func newResource(serviceName string, extra map[string]string) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	for k, v := range extra {
		attrs = append(attrs, attribute.String(k, v))
	}
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, attrs...),
	)
}

func traceExporter(ctx context.Context, c Collector) (trace.SpanExporter, error) {
	if c.protocol() == "grpc" {
		return otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpointURL(c.GrpcEndpoint),
			otlptracegrpc.WithHeaders(c.Headers),
		)
	}
	return otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpointURL(c.HttpEndpoint),
		otlptracehttp.WithHeaders(c.Headers),
	)
}

func metricExporter(ctx context.Context, c Collector) (metric.Exporter, error) {
	if c.protocol() == "grpc" {
		return otlpmetricgrpc.New(
			ctx,
			otlpmetricgrpc.WithEndpointURL(c.GrpcEndpoint),
			otlpmetricgrpc.WithHeaders(c.Headers),
		)
	}
	return otlpmetrichttp.New(
		ctx,
		otlpmetrichttp.WithEndpointURL(c.HttpEndpoint),
		otlpmetrichttp.WithHeaders(c.Headers),
	)
}
