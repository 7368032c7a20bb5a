// Package coordinator runs a batch of independent targets on a bounded
// worker pool.
package coordinator

import (
	"context"
	"fmt"
	"petstay-backend/internal/acquire"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("petstay/acquire/coordinator")

// Work fetches a single target to completion, every failure must be folded
// into the returned result.
type Work func(ctx context.Context, target acquire.Target) acquire.Result

type Options struct {
	// MaxInFlight bounds the number of targets worked on at once, it must
	// be positive.
	MaxInFlight int
	// Progress is updated as targets complete, it may be nil.
	Progress *Progress
}

// Run calls work once for every target with at most MaxInFlight calls
// running at any instant. A failing target never affects its siblings.
//
// Cancelling ctx stops new targets from being dispatched, targets already
// started run to completion. Run then returns their results together with
// a *acquire.RunError matching acquire.ErrRunCancelled.
func Run(ctx context.Context, targets []acquire.Target, opts Options, work Work) ([]acquire.Result, error) {
	if opts.MaxInFlight <= 0 {
		return nil, fmt.Errorf("max in flight must be positive, got %d", opts.MaxInFlight)
	}
	err := acquire.ValidateAll(targets)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "coordinator.Run", trace.WithAttributes(
		attribute.Int("targets", len(targets)),
		attribute.Int("max_in_flight", opts.MaxInFlight),
	))
	defer span.End()

	progress := opts.Progress
	if progress == nil {
		progress = &Progress{}
	}
	progress.start(len(targets))

	// started tasks must not observe the run being cancelled
	taskCtx := context.WithoutCancel(ctx)

	var mutex sync.Mutex
	results := make([]acquire.Result, 0, len(targets))

	group := &errgroup.Group{}
	group.SetLimit(opts.MaxInFlight)

	var skipped atomic.Bool
	for _, target := range targets {
		// Go blocks until a slot is free, the task checks again once it
		// holds one.
		if ctx.Err() != nil {
			skipped.Store(true)
			break
		}
		group.Go(func() error {
			if ctx.Err() != nil {
				skipped.Store(true)
				return nil
			}
			result := work(taskCtx, target)

			mutex.Lock()
			results = append(results, result)
			mutex.Unlock()

			progress.done(result)
			return nil
		})
	}
	group.Wait()

	if skipped.Load() {
		span.AddEvent("cancelled")
		return results, &acquire.RunError{Kind: acquire.RunCancelled, Err: context.Cause(ctx)}
	}
	return results, nil
}
