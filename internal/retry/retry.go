// Package retry runs bounded retries for calls to external services.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy bounds a retry loop. A Multiplier of 0 or 1 keeps the delay fixed.
type Policy struct {
	MaxRetries int
	Delay      time.Duration
	Multiplier float64
}

// Fixed returns a policy with a constant delay between attempts.
func Fixed(maxRetries int, delay time.Duration) Policy {
	return Policy{MaxRetries: maxRetries, Delay: delay}
}

// Exponential returns a policy that doubles the delay after each attempt.
func Exponential(maxRetries int, baseDelay time.Duration) Policy {
	return Policy{MaxRetries: maxRetries, Delay: baseDelay, Multiplier: 2}
}

// WithDefaults returns def when p is unset. Otherwise only a missing delay is taken from def.
func (p Policy) WithDefaults(def Policy) Policy {
	if p == (Policy{}) {
		return def
	}
	if p.Delay <= 0 {
		p.Delay = def.Delay
	}
	return p
}

type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }

func (e *terminalError) Unwrap() error { return e.err }

// Terminal marks err as not worth retrying.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// IsTerminal reports whether err was marked with Terminal.
func IsTerminal(err error) bool {
	var marked *terminalError
	return errors.As(err, &marked)
}

// Do calls fn until it succeeds, returns a terminal error, or the policy is exhausted.
func Do(ctx context.Context, policy Policy, fn func(context.Context) error) error {
	maxRetries := policy.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := policy.Delay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries || IsTerminal(err) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if policy.Multiplier > 1 {
			delay = time.Duration(float64(delay) * policy.Multiplier)
		}
	}
}
