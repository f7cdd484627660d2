package retry

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Retryer defines the interface for implementing retry strategies
type Retryer interface {
	// NextDelay returns the delay before the next retry attempt
	// retry is 0-based (0 for first retry, 1 for second, etc.)
	// Returns the delay duration and whether to continue retrying
	NextDelay(retry int, lastErr error) (time.Duration, bool)

	// Reset resets the retry strategy state
	Reset()
}

// Policy is an exponential backoff policy with a bounded number of attempts.
//
// The delay slept after failed attempt n (1-based) is
//
//	min(MaxDelay, InitialDelay * Multiplier^(n-1))
//
// and no delay follows the final attempt.
type Policy struct {
	// MaxAttempts is the total number of attempts, the first one included.
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelay is the delay after the first failed attempt.
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay caps every delay.
	MaxDelay time.Duration `yaml:"max_delay"`

	// Multiplier is the exponential backoff multiplier
	Multiplier float64 `yaml:"multiplier"`

	// Jitter adds randomness to the delay to avoid thundering herd
	Jitter bool `yaml:"jitter"`

	// JitterFactor is the maximum jitter as a fraction of the delay (0.0 to 1.0)
	JitterFactor float64 `yaml:"jitter_factor"`
}

var _ Retryer = Policy{}

// DefaultPolicy returns 3 attempts, 1s initial delay, 10s cap, doubling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// SingleAttempt is a policy that never retries.
func SingleAttempt() Policy {
	return Policy{MaxAttempts: 1, Multiplier: 1}
}

var (
	ErrInvalidPolicy = errors.New("invalid retry policy")
	// ErrExhausted is returned when every attempt failed and no recovery hook was given.
	ErrExhausted = errors.New("retry attempts exhausted")
)

// Validate checks the policy invariants.
func (p Policy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return fmt.Errorf("%w: max attempts must be at least 1, got %d", ErrInvalidPolicy, p.MaxAttempts)
	case p.InitialDelay < 0:
		return fmt.Errorf("%w: initial delay must not be negative", ErrInvalidPolicy)
	case p.MaxDelay < p.InitialDelay:
		return fmt.Errorf("%w: max delay %s is below initial delay %s", ErrInvalidPolicy, p.MaxDelay, p.InitialDelay)
	case p.Multiplier < 1 || math.IsNaN(p.Multiplier) || math.IsInf(p.Multiplier, 0):
		return fmt.Errorf("%w: multiplier must be a finite number >= 1, got %v", ErrInvalidPolicy, p.Multiplier)
	case p.JitterFactor < 0 || p.JitterFactor > 1:
		return fmt.Errorf("%w: jitter factor must be within [0, 1], got %v", ErrInvalidPolicy, p.JitterFactor)
	}
	return nil
}

// Delay returns the backoff after failed attempt n (1-based), without jitter.
// It saturates at MaxDelay for any n.
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(n-1))
	if math.IsNaN(delay) || delay >= float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// NextDelay implements Retryer
func (p Policy) NextDelay(retry int, lastErr error) (time.Duration, bool) {
	if retry+1 >= p.MaxAttempts {
		return 0, false
	}

	delay := float64(p.Delay(retry + 1))

	if p.Jitter && p.JitterFactor > 0 {
		//nolint:gosec // math/rand is fine for jitter, not security-critical
		delay += delay * p.JitterFactor * (2*rand.Float64() - 1) // -jitterFactor to +jitterFactor
		if delay < 0 {
			delay = 0
		}
		if delay > float64(p.MaxDelay) {
			delay = float64(p.MaxDelay)
		}
	}

	return time.Duration(delay), true
}

// Reset implements Retryer
func (p Policy) Reset() {
	// No state to reset for exponential backoff
}
