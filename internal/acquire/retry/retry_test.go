package retry

import (
	"context"
	"errors"
	"fmt"
	"petstay-backend/internal/acquire"
	"petstay-backend/internal/acquire/sources"
	"petstay-backend/internal/acquire/transport"
	"petstay-backend/internal/components/chrono"
	"petstay-backend/internal/components/telemetry"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptedStrategy returns the queued outcomes in order, repeating the last
// one once the queue is drained.
type scriptedStrategy struct {
	kind     transport.Kind
	mutex    sync.Mutex
	outcomes []error
	calls    int
}

func (s *scriptedStrategy) Kind() transport.Kind {
	return s.kind
}

func (s *scriptedStrategy) Fetch(ctx context.Context, target acquire.Target) (transport.Payload, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	idx := s.calls
	if idx >= len(s.outcomes) {
		idx = len(s.outcomes) - 1
	}
	s.calls++
	err := s.outcomes[idx]
	if err != nil {
		return transport.Payload{}, err
	}
	return transport.Payload{Pages: [][]byte{[]byte(`{}`)}, Format: sources.FormatJSON}, nil
}

func (s *scriptedStrategy) Calls() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.calls
}

type fakeGuard struct {
	mutex    sync.Mutex
	waits    []transport.Kind
	observed []bool
}

func (g *fakeGuard) Wait(ctx context.Context, kind transport.Kind) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.waits = append(g.waits, kind)
	return ctx.Err()
}

func (g *fakeGuard) Observe(blocked bool) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.observed = append(g.observed, blocked)
}

type fakeNormalizer struct {
	err error
}

func (n fakeNormalizer) Normalize(t acquire.TargetType, payload transport.Payload) ([]acquire.Record, error) {
	if n.err != nil {
		return nil, n.err
	}
	return []acquire.Record{{acquire.FieldBizItemID: "1", acquire.FieldBizItemName: "room"}}, nil
}

func blocked() error {
	return acquire.NewTransportError(acquire.FailureBlocked, 429, fmt.Errorf("too many requests"))
}

func network() error {
	return acquire.NewTransportError(acquire.FailureNetwork, 502, fmt.Errorf("bad gateway"))
}

var target = acquire.NewTarget("items-1", acquire.TargetBookingItems, map[string]string{
	acquire.ParamBusinessID: "1",
})

type fixture struct {
	clock *chrono.FakeClock
	guard *fakeGuard
	tel   *telemetry.Recorder
}

func newController(policy Policy, normalizer Normalizer) (*Controller, fixture) {
	f := fixture{
		clock: chrono.NewFakeClock(time.Date(2024, 6, 1, 9, 0, 0, 0, chrono.Seoul())),
		guard: &fakeGuard{},
		tel:   &telemetry.Recorder{},
	}
	return NewController(policy, f.clock, f.guard, normalizer, f.tel), f
}

func TestExecuteOutcomes(t *testing.T) {
	policy := Policy{
		MaxRetries:        3,
		Base:              Duration(time.Second),
		BlockedMultiplier: 2,
		MaxDelay:          Duration(time.Minute),
	}

	cases := []struct {
		name     string
		outcomes []error
		status   acquire.Status
		attempts int
		sleeps   []time.Duration
	}{
		{
			name:     "first attempt succeeds",
			outcomes: []error{nil},
			status:   acquire.StatusSuccess,
			attempts: 1,
		},
		{
			name:     "success after one network failure",
			outcomes: []error{network(), nil},
			status:   acquire.StatusSuccess,
			attempts: 2,
			sleeps:   []time.Duration{time.Second},
		},
		{
			name:     "blocked every time",
			outcomes: []error{blocked()},
			status:   acquire.StatusBlocked,
			attempts: 3,
			sleeps:   []time.Duration{2 * time.Second, 4 * time.Second},
		},
		{
			name:     "network every time",
			outcomes: []error{network()},
			status:   acquire.StatusRetriesExhausted,
			attempts: 3,
			sleeps:   []time.Duration{time.Second, 2 * time.Second},
		},
		{
			name:     "timeout then blocked then network",
			outcomes: []error{context.DeadlineExceeded, blocked(), network()},
			status:   acquire.StatusRetriesExhausted,
			attempts: 3,
			sleeps:   []time.Duration{time.Second, 4 * time.Second},
		},
		{
			name:     "delay never shrinks after a blocked attempt",
			outcomes: []error{blocked(), network(), nil},
			status:   acquire.StatusSuccess,
			attempts: 3,
			sleeps:   []time.Duration{2 * time.Second, 2 * time.Second},
		},
		{
			name:     "request cannot be built",
			outcomes: []error{fmt.Errorf("%w: missing param", acquire.ErrRequest)},
			status:   acquire.StatusError,
			attempts: 1,
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			controller, f := newController(policy, fakeNormalizer{})
			strategy := &scriptedStrategy{kind: transport.KindDirect, outcomes: test.outcomes}

			result := controller.Execute(context.Background(), target, strategy)

			require.Equal(t, test.status, result.Status)
			require.Equal(t, test.attempts, result.AttemptsUsed)
			require.Equal(t, test.attempts, strategy.Calls())
			require.Equal(t, test.sleeps, f.clock.Sleeps())
			require.LessOrEqual(t, result.AttemptsUsed, policy.MaxRetries+1)
			require.Len(t, f.guard.waits, test.attempts)
			if test.status == acquire.StatusSuccess {
				require.Len(t, result.Records, 1)
				require.Empty(t, result.ErrorDetail)
			} else {
				require.Empty(t, result.Records)
				require.NotEmpty(t, result.ErrorDetail)
			}
		})
	}
}

func TestSchemaMismatchIsNotRetried(t *testing.T) {
	controller, f := newController(DefaultPolicy, fakeNormalizer{
		err: acquire.NewSchemaMismatch(acquire.TargetBookingItems, "missing bizItems", nil),
	})
	strategy := &scriptedStrategy{kind: transport.KindDirect, outcomes: []error{nil}}

	result := controller.Execute(context.Background(), target, strategy)

	require.Equal(t, acquire.StatusError, result.Status)
	require.Equal(t, 1, result.AttemptsUsed)
	require.Contains(t, result.ErrorDetail, "schema mismatch")
	require.Empty(t, f.clock.Sleeps())
	require.Len(t, f.tel.Reports("warning"), 1)
}

func TestBlockedDelaysExceedGeneric(t *testing.T) {
	policies := map[string]Policy{
		"default":         DefaultPolicy,
		"large base":      {MaxRetries: 5, Base: Duration(time.Minute), BlockedMultiplier: 2, MaxDelay: Duration(2 * time.Minute)},
		"small step":      {MaxRetries: 10, Base: Duration(time.Second), BlockedMultiplier: 1.5, MaxDelay: Duration(4 * time.Second)},
		"no cap":          {MaxRetries: 4, Base: Duration(time.Second), BlockedMultiplier: 3},
		"many attempts":   {MaxRetries: 12, Base: DefaultPolicy.Base, BlockedMultiplier: 2, MaxDelay: DefaultPolicy.MaxDelay},
		"cap below base":  {MaxRetries: 3, Base: Duration(time.Minute), BlockedMultiplier: 2, MaxDelay: Duration(time.Second)},
		"defaults filled": {MaxRetries: 9},
	}
	for name, policy := range policies {
		t.Run(name, func(t *testing.T) {
			for attempt := 1; attempt < policy.MaxRetries; attempt++ {
				generic := policy.Delay(attempt, acquire.FailureNetwork)
				blockedDelay := policy.Delay(attempt, acquire.FailureBlocked)
				require.Greater(t, blockedDelay, generic, "attempt %d", attempt)
				require.Greater(t, generic, time.Duration(0))
				if policy.MaxDelay > 0 {
					require.LessOrEqual(t, blockedDelay, time.Duration(policy.MaxDelay))
				}
			}
		})
	}
}

func TestGenericDelayCap(t *testing.T) {
	policy := Policy{MaxRetries: 3, Base: Duration(time.Minute), BlockedMultiplier: 2, MaxDelay: Duration(2 * time.Minute)}
	require.Equal(t, time.Minute, policy.Delay(2, acquire.FailureNetwork))
	require.Equal(t, 2*time.Minute, policy.Delay(2, acquire.FailureBlocked))
	require.Equal(t, time.Minute, DefaultPolicy.Delay(8, acquire.FailureNetwork))
	require.Equal(t, 2*time.Minute, DefaultPolicy.Delay(8, acquire.FailureBlocked))
}

func TestDefaultPolicyDelays(t *testing.T) {
	require.Equal(t, 15*time.Second, DefaultPolicy.Delay(1, acquire.FailureTimeout))
	require.Equal(t, 30*time.Second, DefaultPolicy.Delay(2, acquire.FailureParse))
	require.Equal(t, 60*time.Second, DefaultPolicy.Delay(2, acquire.FailureBlocked))
	require.Equal(t, 2*time.Minute, DefaultPolicy.Delay(10, acquire.FailureBlocked))
}

func TestGuardSeesEveryOutcome(t *testing.T) {
	controller, f := newController(Policy{MaxRetries: 3, Base: Duration(time.Millisecond)}, fakeNormalizer{})
	strategy := &scriptedStrategy{kind: transport.KindHybrid, outcomes: []error{blocked(), network(), nil}}

	result := controller.Execute(context.Background(), target, strategy)

	require.Equal(t, acquire.StatusSuccess, result.Status)
	require.Equal(t, []bool{true, false, false}, f.guard.observed)
	require.Equal(t, []transport.Kind{transport.KindHybrid, transport.KindHybrid, transport.KindHybrid}, f.guard.waits)
}

func TestFallbackChain(t *testing.T) {
	controller, f := newController(Policy{MaxRetries: 3, Base: Duration(time.Second)}, fakeNormalizer{})
	direct := &scriptedStrategy{kind: transport.KindDirect, outcomes: []error{blocked()}}
	browser := &scriptedStrategy{kind: transport.KindBrowser, outcomes: []error{nil}}

	result := controller.Execute(context.Background(), target, direct, browser)

	require.Equal(t, acquire.StatusSuccess, result.Status)
	require.Equal(t, 2, result.AttemptsUsed)
	require.Equal(t, "browser", result.Strategy)
	require.Equal(t, 1, direct.Calls())
	require.Equal(t, 1, browser.Calls())
	require.Len(t, f.tel.Reports("warning"), 1)
}

func TestNoFallbackOnLastAttempt(t *testing.T) {
	controller, f := newController(Policy{MaxRetries: 1, Base: Duration(time.Second)}, fakeNormalizer{})
	direct := &scriptedStrategy{kind: transport.KindDirect, outcomes: []error{blocked()}}
	hybrid := &scriptedStrategy{kind: transport.KindHybrid, outcomes: []error{nil}}

	result := controller.Execute(context.Background(), target, direct, hybrid)

	require.Equal(t, acquire.StatusBlocked, result.Status)
	require.Equal(t, 1, result.AttemptsUsed)
	require.Equal(t, "direct", result.Strategy)
	require.Equal(t, 0, hybrid.Calls())
	require.Empty(t, f.tel.Reports("warning"))
}

func TestFallbackSharesBudget(t *testing.T) {
	controller, _ := newController(Policy{MaxRetries: 3, Base: Duration(time.Second)}, fakeNormalizer{})
	direct := &scriptedStrategy{kind: transport.KindDirect, outcomes: []error{blocked()}}
	hybrid := &scriptedStrategy{kind: transport.KindHybrid, outcomes: []error{blocked()}}

	result := controller.Execute(context.Background(), target, direct, hybrid)

	require.Equal(t, acquire.StatusBlocked, result.Status)
	require.Equal(t, 3, result.AttemptsUsed)
	require.Equal(t, 1, direct.Calls())
	require.Equal(t, 2, hybrid.Calls())
}

func TestCancelledDuringBackoff(t *testing.T) {
	controller, _ := newController(DefaultPolicy, fakeNormalizer{})
	ctx, cancel := context.WithCancel(context.Background())
	strategy := &cancellingStrategy{cancel: cancel}

	result := controller.Execute(ctx, target, strategy)

	require.Equal(t, acquire.StatusRetriesExhausted, result.Status)
	require.Equal(t, 1, result.AttemptsUsed)
	require.Contains(t, result.ErrorDetail, "backoff interrupted")
}

type cancellingStrategy struct {
	cancel context.CancelFunc
}

func (s *cancellingStrategy) Kind() transport.Kind {
	return transport.KindDirect
}

func (s *cancellingStrategy) Fetch(ctx context.Context, target acquire.Target) (transport.Payload, error) {
	s.cancel()
	return transport.Payload{}, network()
}

func TestEmptyChain(t *testing.T) {
	controller, _ := newController(DefaultPolicy, fakeNormalizer{})
	result := controller.Execute(context.Background(), target)
	require.Equal(t, acquire.StatusError, result.Status)
	require.Equal(t, 0, result.AttemptsUsed)
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	require.Equal(t, Duration(90*time.Second), d)
	require.Error(t, d.UnmarshalText([]byte("soon")))

	text, err := d.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "1m30s", string(text))
}

func TestStateString(t *testing.T) {
	require.Equal(t, "backoff", StateBackoff.String())
	require.True(t, errors.Is(fmt.Errorf("%w", acquire.ErrRequest), acquire.ErrRequest))
}

func TestExecuteTraces(t *testing.T) {
	tt := telemetry.SetupForTesting(t, "retry-test")
	before := tt.Sum(t, "acquire.attempts")

	controller, _ := newController(DefaultPolicy, fakeNormalizer{})
	strategy := &scriptedStrategy{kind: transport.KindDirect, outcomes: []error{blocked()}}
	result := controller.Execute(context.Background(), target, strategy)
	require.Equal(t, acquire.StatusBlocked, result.Status)

	require.Equal(t, int64(3), tt.Sum(t, "acquire.attempts")-before)

	spans := tt.Named("retry.Execute")
	require.Len(t, spans, 1)
	backoffs := 0
	for _, event := range spans[0].Events {
		if event.Name == "backoff" {
			backoffs++
		}
	}
	require.Equal(t, 2, backoffs)

	status := ""
	for _, attr := range spans[0].Attributes {
		if attr.Key == "result.status" {
			status = attr.Value.AsString()
		}
	}
	require.Equal(t, "blocked", status)
}
