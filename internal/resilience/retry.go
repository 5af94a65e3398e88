// Package resilience wraps collaborator calls (extraction, analysis,
// notability, publishing) with bounded retries. The pure view computations
// never retry; all retry policy lives here, at the orchestrator's boundary.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behavior with exponential backoff and jitter.
type Policy struct {
	// Attempts is the total number of tries including the first.
	// Zero or negative means the default of 3.
	Attempts int

	// BaseDelay seeds the backoff. Default 500ms.
	BaseDelay time.Duration

	// MaxDelay caps a single backoff sleep. Default 30s.
	MaxDelay time.Duration

	// Retryable overrides the transient check when set.
	Retryable func(err error) bool
}

// DefaultPolicy is a sensible policy for collaborator API calls.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second}
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// Do runs fn under the policy, retrying transient failures. Context
// cancellation stops retries immediately and returns the last error.
func Do[T any](ctx context.Context, policy Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	policy = policy.normalized()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !policy.Retryable(err) || attempt == policy.Attempts {
			break
		}

		zap.L().Warn("retrying after transient failure",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		timer := time.NewTimer(backoff(attempt, policy))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// backoff doubles the delay per attempt, capped at MaxDelay, with ±25%
// jitter to keep concurrent retries from herding.
func backoff(attempt int, policy Policy) time.Duration {
	delay := float64(policy.BaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}
	delay *= 1 + (rand.Float64()*0.5 - 0.25)
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
