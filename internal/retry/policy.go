// Package retry implements bounded exponential backoff with additive jitter.
package retry

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"
)

// Defaults used when a Policy field is left zero.
const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxJitter   = 500 * time.Millisecond
)

// Policy computes backoff delays between attempts.
type Policy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxJitter   time.Duration
	jitter      func(limit time.Duration) time.Duration
}

// Config controls a Policy.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
}

// NewPolicy builds a Policy. A zero MaxAttempts falls back to
// DefaultMaxAttempts; zero delays are honored so tests can run without sleeping.
func NewPolicy(cfg Config) *Policy {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	return &Policy{
		maxAttempts: attempts,
		baseDelay:   cfg.BaseDelay,
		maxJitter:   cfg.MaxJitter,
		jitter:      randomJitter,
	}
}

// MaxAttempts returns the attempt ceiling.
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

// Backoff returns the delay to wait after the given failed attempt (1-based):
// base * 2^(attempt-1) plus a uniform jitter in [0, maxJitter).
func (p *Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(math.MaxInt64/2) {
		delay = float64(math.MaxInt64 / 2)
	}
	return time.Duration(delay) + p.jitter(p.maxJitter)
}

// Wait sleeps for Backoff(attempt) or until ctx is done.
func (p *Policy) Wait(ctx context.Context, attempt int) error {
	if err := Sleep(ctx, p.Backoff(attempt)); err != nil {
		return fmt.Errorf("backoff canceled: %w", err)
	}
	return nil
}

// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter
// case. A non-positive d only checks ctx.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
