package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/gamesense/gamesense/pkg/logger"
)

// Sleeper blocks for a delay or until the context is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// TimerSleeper sleeps on a real timer.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Attempt describes the attempt about to run.
type Attempt struct {
	// Number is 1-based.
	Number int
	// LastErr is the error of the previous attempt, nil on the first one.
	LastErr error
}

// Exhaustion is handed to the recovery hook once no attempt is left.
type Exhaustion struct {
	Operation string
	Attempts  int
	LastErr   error
	// Cause is the context error when cancellation cut the retries short.
	Cause error
}

// Outcome is the result of Execute.
type Outcome[T any] struct {
	Value T
	// Attempts is the number of times the action ran.
	Attempts int
	// Degraded is true when the value came from the recovery hook.
	Degraded bool
	LastErr  error
}

// Retrier runs actions under a Policy. It holds no per-invocation state and
// may be shared across goroutines.
type Retrier struct {
	sleeper Sleeper
	log     logger.Logger
}

// Option configures a Retrier.
type Option func(*Retrier)

func WithSleeper(s Sleeper) Option {
	return func(r *Retrier) { r.sleeper = s }
}

func WithLogger(l logger.Logger) Option {
	return func(r *Retrier) { r.log = l }
}

func New(opts ...Option) *Retrier {
	r := &Retrier{sleeper: TimerSleeper{}, log: logger.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute invokes action until it succeeds or the policy runs out of attempts.
//
// Every error returned by action is treated as retryable. Between attempts the
// caller's goroutine sleeps for policy.NextDelay; nothing sleeps after the
// final attempt. When the context is cancelled during a sleep no further
// attempt is made.
//
// Once attempts are exhausted onExhausted is called exactly once and its value
// is returned as a degraded success with a nil error. When onExhausted is nil
// the terminal error is returned instead, wrapping ErrExhausted and the last
// action error. The hook receives a context that is never cancelled.
func Execute[T any](
	ctx context.Context,
	r *Retrier,
	operation string,
	policy Policy,
	action func(ctx context.Context, a Attempt) (T, error),
	onExhausted func(ctx context.Context, ex Exhaustion) T,
) (Outcome[T], error) {
	if err := policy.Validate(); err != nil {
		var zero Outcome[T]
		return zero, err
	}
	policy.Reset()

	var (
		lastErr error
		cause   error
		n       int
	)
	for n = 1; n <= policy.MaxAttempts; n++ {
		value, err := action(ctx, Attempt{Number: n, LastErr: lastErr})
		if err == nil {
			if n > 1 {
				r.log.Info("retry succeeded", "operation", operation, "attempt", n)
			}
			return Outcome[T]{Value: value, Attempts: n, LastErr: lastErr}, nil
		}
		lastErr = err

		delay, again := policy.NextDelay(n-1, err)
		if !again {
			r.log.Warn("attempt failed, no attempts left",
				"operation", operation, "attempt", n, "max_attempts", policy.MaxAttempts, "error", err)
			break
		}
		r.log.Warn("attempt failed, retrying",
			"operation", operation, "attempt", n, "max_attempts", policy.MaxAttempts,
			"next_delay", delay, "error", err)

		if serr := r.sleeper.Sleep(ctx, delay); serr != nil {
			cause = serr
			r.log.Warn("retry interrupted", "operation", operation, "attempt", n, "error", serr)
			break
		}
	}
	if n > policy.MaxAttempts {
		n = policy.MaxAttempts
	}

	ex := Exhaustion{Operation: operation, Attempts: n, LastErr: lastErr, Cause: cause}
	if onExhausted == nil {
		var zero T
		return Outcome[T]{Value: zero, Attempts: n, LastErr: lastErr},
			fmt.Errorf("%s: %w after %d attempts: %w", operation, ErrExhausted, n, lastErr)
	}
	r.log.Error("retries exhausted, recovering",
		"operation", operation, "attempts", n, "error", lastErr)
	// recovery runs even when cancellation ended the retries
	value := onExhausted(context.WithoutCancel(ctx), ex)
	return Outcome[T]{Value: value, Attempts: n, Degraded: true, LastErr: lastErr}, nil
}

// Do is Execute for actions that return only an error.
func Do(
	ctx context.Context,
	r *Retrier,
	operation string,
	policy Policy,
	action func(ctx context.Context, a Attempt) error,
	onExhausted func(ctx context.Context, ex Exhaustion),
) (Outcome[struct{}], error) {
	var hook func(ctx context.Context, ex Exhaustion) struct{}
	if onExhausted != nil {
		hook = func(ctx context.Context, ex Exhaustion) struct{} {
			onExhausted(ctx, ex)
			return struct{}{}
		}
	}
	return Execute(ctx, r, operation, policy,
		func(ctx context.Context, a Attempt) (struct{}, error) {
			return struct{}{}, action(ctx, a)
		}, hook)
}
