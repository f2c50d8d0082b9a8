package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/playtest/internal/sim"
)

// Engine is the content engine collaborator.
//
// Implementations must be safe for concurrent use by independent runs.
// Fields a TurnResult omits are treated as zero by the harness.
type Engine interface {
	// Start returns the opening bundle for a scenario.
	Start(ctx context.Context, scenario sim.Scenario) (sim.Bundle, error)

	// Turn executes decision against bundle. simCtx is the pre-turn state.
	Turn(ctx context.Context, bundle sim.Bundle, simCtx sim.Context, decision sim.Decision) (sim.TurnResult, error)
}

// ErrCallPanic is returned when a collaborator call panics on the goroutine
// WithDeadline runs it on.
var ErrCallPanic = errors.New("content engine call panicked")

// ErrCallDeadline is returned when a collaborator call exceeds its deadline.
var ErrCallDeadline = errors.New("content engine call exceeded deadline")

// WithDeadline wraps engine so every call returns within d even if the
// underlying engine ignores context cancellation. d <= 0 returns engine as is.
func WithDeadline(engine Engine, d time.Duration) Engine {
	if d <= 0 {
		return engine
	}
	return &deadlineEngine{inner: engine, deadline: d}
}

type deadlineEngine struct {
	inner    Engine
	deadline time.Duration
}

func (e *deadlineEngine) Start(ctx context.Context, scenario sim.Scenario) (sim.Bundle, error) {
	return call(ctx, e.deadline, "start", func(ctx context.Context) (sim.Bundle, error) {
		return e.inner.Start(ctx, scenario)
	})
}

func (e *deadlineEngine) Turn(ctx context.Context, bundle sim.Bundle, simCtx sim.Context, decision sim.Decision) (sim.TurnResult, error) {
	return call(ctx, e.deadline, "turn", func(ctx context.Context) (sim.TurnResult, error) {
		return e.inner.Turn(ctx, bundle, simCtx, decision)
	})
}

// call runs fn in its own goroutine and abandons it once the deadline
// passes. The result channel is buffered so an abandoned call can finish.
func call[T any](ctx context.Context, d time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				var zero T
				done <- outcome{zero, fmt.Errorf("%s: %w: %v", op, ErrCallPanic, p)}
			}
		}()
		v, err := fn(ctx)
		done <- outcome{v, err}
	}()

	select {
	case out := <-done:
		return out.v, out.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%s after %s: %w", op, d, ErrCallDeadline)
		}
		return zero, fmt.Errorf("%s: %w", op, ctx.Err())
	}
}
