package telemetry

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry captures every span and metric produced through the global
// otel providers.
type TestTelemetry struct {
	Spans  *tracetest.InMemoryExporter
	reader *metric.ManualReader
}

var (
	setupTestOnce sync.Once
	testTelemetry *TestTelemetry
)

// SetupForTesting installs in memory trace and metric pipelines as the
// global providers. Package level tracers bind to the first provider they
// see, so the pipeline is shared by every test in the binary and only the
// spans are cleared between calls.
func SetupForTesting(t testing.TB, serviceName string) *TestTelemetry {
	setupTestOnce.Do(func() {
		r, err := newResource(serviceName, nil)
		if err != nil {
			t.Fatal(err)
		}
		exporter := tracetest.NewInMemoryExporter()
		reader := metric.NewManualReader()
		otel.SetTracerProvider(trace.NewTracerProvider(
			trace.WithSyncer(exporter),
			trace.WithResource(r),
		))
		otel.SetMeterProvider(metric.NewMeterProvider(
			metric.WithReader(reader),
			metric.WithResource(r),
		))
		testTelemetry = &TestTelemetry{Spans: exporter, reader: reader}
	})
	testTelemetry.Spans.Reset()
	return testTelemetry
}

// Sum returns the cumulative value of the int64 counter called name.
func (tt *TestTelemetry) Sum(t testing.TB, name string) int64 {
	var rm metricdata.ResourceMetrics
	err := tt.reader.Collect(context.Background(), &rm)
	if err != nil {
		t.Fatal(err)
	}
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, point := range sum.DataPoints {
				total += point.Value
			}
		}
	}
	return total
}

// Named returns the finished spans called name.
func (tt *TestTelemetry) Named(name string) tracetest.SpanStubs {
	var out tracetest.SpanStubs
	for _, span := range tt.Spans.GetSpans() {
		if span.Name == name {
			out = append(out, span)
		}
	}
	return out
}
