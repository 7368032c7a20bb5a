package ratelimit

import (
	"context"
	"math/rand/v2"
	"petstay-backend/internal/acquire/transport"
	"petstay-backend/internal/components/chrono"
	"petstay-backend/internal/components/telemetry"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestGuard(cfg Config) (*Guard, *chrono.FakeClock, *telemetry.Recorder) {
	clock := chrono.NewFakeClock(time.Date(2024, 6, 1, 9, 0, 0, 0, chrono.Seoul()))
	tel := &telemetry.Recorder{}
	return NewGuard(cfg, clock, rand.New(rand.NewPCG(1, 2)), tel), clock, tel
}

func TestDelayWithinRange(t *testing.T) {
	guard, _, _ := newTestGuard(Config{})

	for kind, r := range DefaultConfig.Delays {
		for i := 0; i < 200; i++ {
			d := guard.Delay(kind)
			require.GreaterOrEqual(t, d, r.Min, kind.String())
			require.LessOrEqual(t, d, r.Max, kind.String())
		}
	}
}

func TestWaitSleepsOnClock(t *testing.T) {
	guard, clock, _ := newTestGuard(Config{
		Delays: map[transport.Kind]Range{
			transport.KindDirect: {Min: time.Second, Max: time.Second},
		},
	})

	require.NoError(t, guard.Wait(context.Background(), transport.KindDirect))
	require.Equal(t, []time.Duration{time.Second}, clock.Sleeps())
}

func TestWaitCancelled(t *testing.T) {
	guard, clock, _ := newTestGuard(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, guard.Wait(ctx, transport.KindBrowser), context.Canceled)
	require.Empty(t, clock.Sleeps())
}

func TestEscalation(t *testing.T) {
	fixed := Config{
		Delays: map[transport.Kind]Range{
			transport.KindDirect: {Min: 100 * time.Millisecond, Max: 100 * time.Millisecond},
		},
	}

	cases := []struct {
		name     string
		outcomes []bool
		level    int
		delay    time.Duration
	}{
		{
			name:     "no blocks",
			outcomes: []bool{false, false, false},
			level:    0,
			delay:    100 * time.Millisecond,
		},
		{
			name:     "two blocks are tolerated",
			outcomes: []bool{true, true},
			level:    0,
			delay:    100 * time.Millisecond,
		},
		{
			name:     "three consecutive blocks escalate",
			outcomes: []bool{true, true, true},
			level:    1,
			delay:    200 * time.Millisecond,
		},
		{
			name:     "success breaks the streak",
			outcomes: []bool{true, true, false, true, true},
			level:    0,
			delay:    100 * time.Millisecond,
		},
		{
			name:     "success keeps the level",
			outcomes: []bool{true, true, true, false, false},
			level:    1,
			delay:    200 * time.Millisecond,
		},
		{
			name:     "level is capped",
			outcomes: repeat(true, 3*10),
			level:    4,
			delay:    1600 * time.Millisecond,
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			guard, _, tel := newTestGuard(fixed)
			for _, blocked := range test.outcomes {
				guard.Observe(blocked)
			}
			require.Equal(t, test.level, guard.Level())
			require.Equal(t, test.delay, guard.Delay(transport.KindDirect))
			require.Len(t, tel.Reports("warning"), test.level)
		})
	}
}

func TestGuardConcurrentObserve(t *testing.T) {
	guard, _, _ := newTestGuard(Config{})

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			guard.Observe(true)
			guard.Delay(transport.KindDirect)
		}()
	}
	wg.Wait()

	require.Equal(t, 4, guard.Level())
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultConfig.Validate())
	require.Error(t, Config{
		Delays: map[transport.Kind]Range{
			transport.KindHybrid: {Min: time.Second, Max: time.Millisecond},
		},
	}.Validate())
}

func repeat(v bool, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = v
	}
	return out
}
