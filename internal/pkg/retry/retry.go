// Package retry implements exponential backoff with jitter for outbound
// calls to the embedding service, the vector index, and the LLM.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"
)

// Policy controls attempt count and backoff shape.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultPolicy matches the engine-wide retry configuration.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
	}
}

// PermanentError wraps an error that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsRetryable classifies an error. Network failures, timeouts and transient
// HTTP statuses (429, 5xx) retry; anything wrapped in PermanentError does not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var perm *PermanentError
	if errors.As(err, &perm) {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, token := range []string{
		"connection reset", "connection refused", "timeout", "timed out",
		"status 429", "status 5", "too many requests", "service unavailable",
		"rate limit", "temporarily",
	} {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

// Delay returns the backoff before attempt n (0-based), with ±25% jitter
// around the exponential schedule capped at MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	base := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt))
	if max := float64(p.MaxDelay); base > max {
		base = max
	}
	// ±25% jitter keeps concurrent retries from thundering-herding a
	// recovering upstream.
	jitter := 0.75 + rand.Float64()*0.5
	return time.Duration(base * jitter)
}

// BaseDelay returns the un-jittered backoff before attempt n (0-based).
func (p Policy) BaseDelay(attempt int) time.Duration {
	base := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt))
	if max := float64(p.MaxDelay); base > max {
		base = max
	}
	return time.Duration(base)
}

// Do runs fn up to MaxRetries+1 times. It stops early on non-retryable
// errors and on context cancellation; the sleep between attempts is
// cancellable with ctx.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay(attempt - 1)):
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			var perm *PermanentError
			if errors.As(lastErr, &perm) {
				return perm.Err
			}
			return lastErr
		}
	}
	return lastErr
}
