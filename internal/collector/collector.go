// Package collector wires the acquisition stages together: it turns a
// config into strategies, and a batch of targets into results.
package collector

import (
	"context"
	"fmt"
	"math/rand/v2"
	"petstay-backend/internal/acquire"
	"petstay-backend/internal/acquire/coordinator"
	"petstay-backend/internal/acquire/normalize"
	"petstay-backend/internal/acquire/ratelimit"
	"petstay-backend/internal/acquire/retry"
	"petstay-backend/internal/acquire/sources"
	"petstay-backend/internal/acquire/transport"
	"petstay-backend/internal/components/assert"
	"petstay-backend/internal/components/chrono"
	"petstay-backend/internal/components/telemetry"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_collector_run = "collector.run"
)

var tracer = otel.Tracer("petstay/collector")

// Default worker pool sizes, browser backed runs are far more expensive
// per task.
const (
	DefaultMaxInFlight        = 10
	DefaultBrowserMaxInFlight = 5
)

type Collector struct {
	cfg        Config
	clock      chrono.Clock
	tel        telemetry.API
	guard      ratelimit.Config
	normalizer normalize.Normalizer
	chains     map[acquire.TargetType][]transport.Strategy
}

// New builds a collector from cfg. strategies may be nil, otherwise it
// replaces the strategy constructed for each kind it contains.
func New(cfg Config, clock chrono.Clock, tel telemetry.API, strategies map[transport.Kind]transport.Strategy) (*Collector, error) {
	assert.NotNil(clock)
	assert.NotNil(tel)

	guard, err := cfg.guard()
	if err != nil {
		return nil, err
	}
	normalizer, err := normalize.New(cfg.Normalize, clock)
	if err != nil {
		return nil, err
	}
	kinds, err := cfg.chains()
	if err != nil {
		return nil, err
	}

	built := buildStrategies(cfg, clock, tel)
	for kind, strategy := range strategies {
		built[kind] = strategy
	}

	chains := make(map[acquire.TargetType][]transport.Strategy, len(kinds))
	for t, chain := range kinds {
		for _, kind := range chain {
			strategy, ok := built[kind]
			if !ok {
				return nil, fmt.Errorf("no %s strategy available for %s", kind, t)
			}
			chains[t] = append(chains[t], strategy)
		}
	}

	return &Collector{
		cfg:        cfg,
		clock:      clock,
		tel:        telemetry.NewScopedAPI("collector", tel),
		guard:      guard,
		normalizer: normalizer,
		chains:     chains,
	}, nil
}

func buildStrategies(cfg Config, clock chrono.Clock, tel telemetry.API) map[transport.Kind]transport.Strategy {
	var agents transport.UserAgents = transport.DesktopUserAgents{}
	if len(cfg.UserAgents) > 0 {
		agents = transport.NewFixedUserAgents(cfg.UserAgents...)
	}
	var markers []string
	if len(cfg.BlockMarkers) > 0 {
		markers = cfg.BlockMarkers
	}

	opts := func(kind transport.Kind) transport.Options {
		return transport.Options{
			Sources:    sources.NewRegistry(cfg.Sources),
			UserAgents: agents,
			Detector:   transport.NewBlockDetector(markers),
			Timeout:    cfg.timeout(kind),
			Clock:      clock,
			Tel:        tel,
		}
	}

	return map[transport.Kind]transport.Strategy{
		transport.KindDirect: transport.NewDirect(opts(transport.KindDirect), cfg.DirectRequestsPerSecond),
		transport.KindHybrid: transport.NewHybrid(opts(transport.KindHybrid), transport.HybridOptions{
			StateKeys:     cfg.Hybrid.StateKeys,
			ScriptTimeout: time.Duration(cfg.Hybrid.ScriptTimeout),
		}),
		transport.KindBrowser: transport.NewBrowser(opts(transport.KindBrowser), transport.BrowserOptions{
			ExecPath: cfg.Browser.ExecPath,
			Headless: !cfg.Browser.Headful,
		}),
	}
}

// MaxInFlightFor picks the pool size for a batch of targets.
func (c *Collector) MaxInFlightFor(targets []acquire.Target) int {
	if c.cfg.MaxInFlight > 0 {
		return c.cfg.MaxInFlight
	}
	for _, t := range targets {
		for _, strategy := range c.chains[t.Type] {
			if strategy.Kind() == transport.KindBrowser {
				return DefaultBrowserMaxInFlight
			}
		}
	}
	return DefaultMaxInFlight
}

type RunOptions struct {
	// MaxInFlight overrides both the config and the default pool size.
	MaxInFlight int
	Progress    *coordinator.Progress
	// Rand seeds the rate limit guard, nil draws a random seed.
	Rand *rand.Rand
}

// Run fetches and normalizes every target. The returned error is nil or a
// *acquire.RunError, per target failures are only found in the results.
func (c *Collector) Run(ctx context.Context, targets []acquire.Target, opts RunOptions) ([]acquire.Result, error) {
	runID := uuid.NewString()
	maxInFlight := opts.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = c.MaxInFlightFor(targets)
	}

	ctx, span := tracer.Start(ctx, "collector.Run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("run.targets", len(targets)),
	))
	defer span.End()

	c.tel.ReportDebug(report_collector_run, runID, len(targets), maxInFlight)

	// the guard reacts to how the upstream treated this run only
	guard := ratelimit.NewGuard(c.guard, c.clock, opts.Rand, c.tel)
	controller := retry.NewController(c.cfg.Retry, c.clock, guard, c.normalizer, c.tel)

	results, err := coordinator.Run(ctx, targets, coordinator.Options{
		MaxInFlight: maxInFlight,
		Progress:    opts.Progress,
	}, func(ctx context.Context, target acquire.Target) acquire.Result {
		return controller.Execute(ctx, target, c.chains[target.Type]...)
	})

	summary := acquire.Summarize(results)
	span.SetAttributes(
		attribute.Int("run.failed", len(summary.Failed)),
		attribute.Int("run.records", summary.Records),
	)
	if len(summary.Failed) > 0 {
		c.tel.ReportWarning(report_collector_run, runID, summary.FailureLine())
	}
	c.tel.ReportCount(report_collector_run, int64(summary.Records))
	return results, err
}
