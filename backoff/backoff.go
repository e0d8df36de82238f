// Package backoff provides delay strategies for redialing lost peers.
// Strategies are stateless and safe for concurrent use.
package backoff

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a reconnect attempt.
type Strategy interface {
	// Delay returns how long to wait before attempt n (1-indexed).
	// Attempt 1 is the first redial after the connection was lost.
	Delay(attempt int) time.Duration
}

// Strategy names accepted by New.
const (
	NameConstant    = "constant"
	NameLinear      = "linear"
	NameExponential = "exponential"
	NameJitter      = "jitter"
)

// New returns the strategy called name. Constant strategies redial every
// initial; the others grow from initial up to maxDelay.
func New(name string, initial, maxDelay time.Duration) (Strategy, error) {
	if initial <= 0 {
		return nil, fmt.Errorf("backoff: initial delay must be positive, got %s", initial)
	}
	switch name {
	case NameConstant:
		return NewConstant(initial), nil
	case NameLinear:
		return NewLinear(initial, maxDelay), nil
	case NameExponential:
		return NewExponential(initial, maxDelay), nil
	case "", NameJitter:
		return NewExponentialWithJitter(initial, maxDelay), nil
	default:
		return nil, fmt.Errorf("backoff: unknown strategy %q", name)
	}
}

// capped limits d to limit when limit is set.
func capped(d, limit time.Duration) time.Duration {
	if limit > 0 && d > limit {
		return limit
	}
	return d
}

// doubling returns initial * 2^(attempt-1) without overflowing.
func doubling(initial time.Duration, attempt int) time.Duration {
	f := float64(initial) * math.Pow(2, float64(max(attempt, 1)-1))
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return time.Duration(f)
}

// ── Constant ─────────────────────────────────────

// Constant redials at a fixed interval.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

func (c *Constant) Delay(_ int) time.Duration { return c.Interval }

// ── Linear ───────────────────────────────────────

// Linear waits Step more for every failed attempt, up to Max.
type Linear struct {
	Step time.Duration
	Max  time.Duration
}

// NewLinear creates a linear strategy.
func NewLinear(step, maxDelay time.Duration) *Linear {
	return &Linear{Step: step, Max: maxDelay}
}

func (l *Linear) Delay(attempt int) time.Duration {
	return capped(l.Step*time.Duration(max(attempt, 1)), l.Max)
}

// ── Exponential ──────────────────────────────────

// Exponential doubles the wait after every failed attempt, up to Max.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

func (e *Exponential) Delay(attempt int) time.Duration {
	return capped(doubling(e.Initial, attempt), e.Max)
}

// ── Exponential with full jitter ─────────────────

// ExponentialWithJitter picks a random wait in [0, exponential delay], so
// members that lost the same peer do not redial in lockstep.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates a jittered exponential strategy.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	ceiling := capped(doubling(e.Initial, attempt), e.Max)
	return time.Duration(rand.Float64() * float64(ceiling)) //nolint:gosec // jitter does not need crypto rand
}

// DefaultStrategy returns the backoff used between peer redials:
// ExponentialWithJitter with 500ms initial and 30s max.
func DefaultStrategy() Strategy {
	return NewExponentialWithJitter(500*time.Millisecond, 30*time.Second)
}
