package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var perfMeter = otel.Meter("petstay/process")

// InstrumentPerfStats registers process health gauges that are read on
// every metric export. Child processes are counted because each browser
// fetch runs its own chrome, a number that keeps climbing between runs
// means sessions are not being torn down.
func InstrumentPerfStats(ctx context.Context) error {
	self, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return fmt.Errorf("inspect own process: %w", err)
	}

	cpuPercent, err := perfMeter.Float64ObservableGauge("process.cpu.percent")
	if err != nil {
		return err
	}
	heap, err := perfMeter.Int64ObservableGauge("process.heap", metric.WithUnit("By"))
	if err != nil {
		return err
	}
	goroutines, err := perfMeter.Int64ObservableGauge("process.goroutines")
	if err != nil {
		return err
	}
	children, err := perfMeter.Int64ObservableGauge(
		"process.children",
		metric.WithDescription("live child processes, mostly headless browsers"),
	)
	if err != nil {
		return err
	}

	_, err = perfMeter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		o.ObserveInt64(heap, int64(mem.HeapAlloc))
		o.ObserveInt64(goroutines, int64(runtime.NumGoroutine()))

		if pct, err := self.CPUPercentWithContext(ctx); err == nil {
			o.ObserveFloat64(cpuPercent, pct)
		}
		kids, err := self.ChildrenWithContext(ctx)
		switch {
		case err == nil:
			o.ObserveInt64(children, int64(len(kids)))
		case errors.Is(err, process.ErrorNoChildren):
			o.ObserveInt64(children, 0)
		}
		return nil
	}, cpuPercent, heap, goroutines, children)
	return err
}
