// Package retry wraps transport calls with bounded attempts, failure
// classification and backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"petstay-backend/internal/acquire"
	"petstay-backend/internal/acquire/transport"
	"petstay-backend/internal/components/assert"
	"petstay-backend/internal/components/chrono"
	"petstay-backend/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_controller_attempt   = "controller.attempt"
	report_controller_normalize = "controller.normalize"
	report_controller_fallback  = "controller.fallback"
)

var tracer = otel.Tracer("petstay/acquire/retry")
var meter = otel.Meter("petstay/acquire/retry")
var attemptCounter, _ = meter.Int64Counter(
	"acquire.attempts",
	metric.WithDescription("transport attempts by strategy and outcome"),
)

// Guard is consulted around every attempt, see the ratelimit package.
type Guard interface {
	Wait(ctx context.Context, kind transport.Kind) error
	Observe(blocked bool)
}

// Normalizer turns a successful payload into records.
type Normalizer interface {
	Normalize(t acquire.TargetType, payload transport.Payload) ([]acquire.Record, error)
}

type Controller struct {
	policy     Policy
	clock      chrono.Clock
	guard      Guard
	normalizer Normalizer
	tel        telemetry.API
}

func NewController(policy Policy, clock chrono.Clock, guard Guard, normalizer Normalizer, tel telemetry.API) *Controller {
	assert.NotNil(clock)
	assert.NotNil(guard)
	assert.NotNil(normalizer)
	assert.NotNil(tel)
	return &Controller{
		policy:     policy.withDefaults(),
		clock:      clock,
		guard:      guard,
		normalizer: normalizer,
		tel:        telemetry.NewScopedAPI("retry", tel),
	}
}

func (c *Controller) Policy() Policy {
	return c.policy
}

// Execute fetches target with chain[0], moving to the next strategy in the
// chain after a Blocked attempt. The attempt budget is shared by the whole
// chain. Failures are returned as data, Execute never fails.
func (c *Controller) Execute(ctx context.Context, target acquire.Target, chain ...transport.Strategy) acquire.Result {
	if len(chain) == 0 {
		return acquire.Failed(target, acquire.StatusError, 0, fmt.Errorf("%w: no transport strategy", acquire.ErrRequest))
	}

	ctx, span := tracer.Start(ctx, "retry.Execute", trace.WithAttributes(
		attribute.String("target.id", target.ID),
		attribute.String("target.type", string(target.Type)),
	))
	defer span.End()

	start := c.clock.Now()
	state := RetryState{State: StateIdle}
	var result acquire.Result

	for {
		switch state.State {
		case StateIdle:
			state.State = StateAttempting

		case StateAttempting:
			state.Attempt++
			strategy := chain[state.Strategy]
			records, err := c.attempt(ctx, target, strategy, state.Attempt)
			if err == nil {
				result = acquire.Result{
					TargetID: target.ID,
					Type:     target.Type,
					Status:   acquire.StatusSuccess,
					Records:  records,
				}
				state.State = StateSucceeded
				continue
			}

			var normErr *acquire.NormalizeError
			if errors.As(err, &normErr) || errors.Is(err, acquire.ErrRequest) {
				result = acquire.Failed(target, acquire.StatusError, state.Attempt, err)
				state.State = StateSucceeded
				continue
			}

			state.fail(c.policy, err)
			// an exhausted target has no next attempt to hand over
			if state.State == StateBackoff && state.LastFailure == acquire.FailureBlocked && state.Strategy+1 < len(chain) {
				state.Strategy++
				c.tel.ReportWarning(
					report_controller_fallback,
					target.ID,
					strategy.Kind().String(),
					chain[state.Strategy].Kind().String(),
				)
			}

		case StateBackoff:
			span.AddEvent("backoff", trace.WithAttributes(
				attribute.Int("attempt", state.Attempt),
				attribute.String("failure", state.LastFailure.String()),
				attribute.String("delay", state.NextDelay.String()),
			))
			err := c.clock.Sleep(ctx, state.NextDelay)
			if err != nil {
				state.LastErr = fmt.Errorf("backoff interrupted: %w", err)
				state.State = StateExhausted
				continue
			}
			state.State = StateAttempting

		case StateExhausted:
			result = acquire.Failed(target, state.terminalStatus(), state.Attempt, state.LastErr)
			state.State = StateSucceeded

		case StateSucceeded:
			result.AttemptsUsed = state.Attempt
			result.Strategy = chain[state.Strategy].Kind().String()
			result.Duration = c.clock.Now().Sub(start)
			if result.Status != acquire.StatusSuccess {
				result.Records = nil
				span.SetStatus(codes.Error, result.Status.String())
			}
			span.SetAttributes(
				attribute.String("result.status", result.Status.String()),
				attribute.Int("result.attempts", result.AttemptsUsed),
				attribute.Int("result.records", len(result.Records)),
			)
			return result
		}
	}
}

// attempt performs exactly one guarded transport call and normalizes its
// payload.
func (c *Controller) attempt(ctx context.Context, target acquire.Target, strategy transport.Strategy, n int) ([]acquire.Record, error) {
	kind := strategy.Kind()
	err := c.guard.Wait(ctx, kind)
	if err != nil {
		return nil, acquire.NewTransportError(acquire.FailureNetwork, 0, fmt.Errorf("rate limit wait: %w", err))
	}

	payload, err := strategy.Fetch(ctx, target)
	failure := acquire.ClassifyFailure(err)
	if !errors.Is(err, acquire.ErrRequest) {
		c.guard.Observe(failure == acquire.FailureBlocked)
	}
	attemptCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("strategy", kind.String()),
		attribute.String("outcome", failure.String()),
	))
	if err != nil {
		c.tel.ReportDebug(report_controller_attempt, target.ID, n, kind.String(), err)
		return nil, err
	}

	records, err := c.normalizer.Normalize(target.Type, payload)
	if err != nil {
		c.tel.ReportWarning(report_controller_normalize, target.ID, err)
		return nil, err
	}
	return records, nil
}
