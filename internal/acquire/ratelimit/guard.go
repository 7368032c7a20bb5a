// Package ratelimit spaces out requests to upstream services and backs off
// harder when they start blocking.
package ratelimit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"petstay-backend/internal/acquire/transport"
	"petstay-backend/internal/components/assert"
	"petstay-backend/internal/components/chrono"
	"petstay-backend/internal/components/telemetry"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const report_guard_escalate = "guard.escalate"

var meter = otel.Meter("petstay/acquire/ratelimit")
var escalationCounter, _ = meter.Int64Counter(
	"guard.escalations",
	metric.WithDescription("run-wide rate limit escalations"),
)

// Range is an inclusive jitter window.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Config shapes a Guard, zero values fall back to DefaultConfig.
type Config struct {
	Delays map[transport.Kind]Range
	// EscalateAfter is the number of consecutive blocked outcomes that
	// raise the escalation level by one.
	EscalateAfter int
	// Multiplier is applied once per escalation level.
	Multiplier float64
	MaxLevel   int
}

var DefaultConfig = Config{
	Delays: map[transport.Kind]Range{
		transport.KindDirect:  {Min: 100 * time.Millisecond, Max: 500 * time.Millisecond},
		transport.KindHybrid:  {Min: 500 * time.Millisecond, Max: 2 * time.Second},
		transport.KindBrowser: {Min: 3 * time.Second, Max: 6 * time.Second},
	},
	EscalateAfter: 3,
	Multiplier:    2,
	MaxLevel:      4,
}

func (c Config) withDefaults() Config {
	delays := make(map[transport.Kind]Range, len(DefaultConfig.Delays))
	for kind, r := range DefaultConfig.Delays {
		delays[kind] = r
	}
	for kind, r := range c.Delays {
		delays[kind] = r
	}
	c.Delays = delays
	if c.EscalateAfter <= 0 {
		c.EscalateAfter = DefaultConfig.EscalateAfter
	}
	if c.Multiplier <= 1 {
		c.Multiplier = DefaultConfig.Multiplier
	}
	if c.MaxLevel <= 0 {
		c.MaxLevel = DefaultConfig.MaxLevel
	}
	return c
}

func (c Config) Validate() error {
	for kind, r := range c.Delays {
		if r.Min < 0 || r.Max < r.Min {
			return fmt.Errorf("invalid %s delay range [%s, %s]", kind, r.Min, r.Max)
		}
	}
	return nil
}

// Guard is shared by every task of one run. All of its state sits behind a
// single mutex so concurrent tasks see a consistent escalation level.
type Guard struct {
	cfg   Config
	clock chrono.Clock
	tel   telemetry.API

	mutex       sync.Mutex
	rnd         *rand.Rand
	consecutive int
	level       int
}

// NewGuard creates a guard, rnd may be nil in which case a randomly seeded
// source is used.
func NewGuard(cfg Config, clock chrono.Clock, rnd *rand.Rand, tel telemetry.API) *Guard {
	assert.NotNil(clock)
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Guard{
		cfg:   cfg.withDefaults(),
		clock: clock,
		tel:   telemetry.NewScopedAPI("ratelimit", tel),
		rnd:   rnd,
	}
}

// Delay picks the wait before the next request of the given kind, it
// includes the current escalation.
func (g *Guard) Delay(kind transport.Kind) time.Duration {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	r := g.cfg.Delays[kind]
	d := r.Min
	if span := r.Max - r.Min; span > 0 {
		d += time.Duration(g.rnd.Int64N(int64(span) + 1))
	}
	for i := 0; i < g.level; i++ {
		d = time.Duration(float64(d) * g.cfg.Multiplier)
	}
	return d
}

// Wait sleeps for Delay(kind), it returns early with the context's error
// when ctx is cancelled.
func (g *Guard) Wait(ctx context.Context, kind transport.Kind) error {
	return g.clock.Sleep(ctx, g.Delay(kind))
}

// Observe feeds the outcome of one request back into the guard. A success
// resets the consecutive block counter but keeps the escalation level, so a
// service that just blocked us is not hammered again right away.
func (g *Guard) Observe(blocked bool) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if !blocked {
		g.consecutive = 0
		return
	}
	g.consecutive++
	if g.consecutive < g.cfg.EscalateAfter {
		return
	}
	g.consecutive = 0
	if g.level < g.cfg.MaxLevel {
		g.level++
		g.tel.ReportWarning(report_guard_escalate, g.level)
		escalationCounter.Add(context.Background(), 1, metric.WithAttributes(
			attribute.Int("level", g.level),
		))
	}
}

func (g *Guard) Level() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.level
}
