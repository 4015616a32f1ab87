// Package backoff provides wait policies for polling loops and request retries.
package backoff

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy decides how long to wait before a given attempt.
// Attempts are 1-based.
type Policy interface {
	Delay(attempt int) time.Duration
}

// Fixed waits the same interval before every attempt.
type Fixed struct {
	Interval time.Duration
}

// Delay implements Policy.
func (f Fixed) Delay(int) time.Duration { return f.Interval }

// Exponential waits Base * 2^(attempt-1), capped at Max, plus up to Jitter (fraction) extra.
type Exponential struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64

	rnd func() float64
}

// NewExponential returns an exponential policy with 10% jitter.
func NewExponential(base, max time.Duration) *Exponential {
	return &Exponential{Base: base, Max: max, Jitter: 0.1, rnd: rand.Float64}
}

// Delay implements Policy.
func (e *Exponential) Delay(attempt int) time.Duration {
	delay := e.capped(attempt)
	if e.Jitter > 0 {
		rnd := e.rnd
		if rnd == nil {
			rnd = rand.Float64
		}
		delay += time.Duration(rnd() * e.Jitter * float64(delay))
	}
	return delay
}

// Ceiling is the largest value Delay can return for attempt.
func (e *Exponential) Ceiling(attempt int) time.Duration {
	delay := e.capped(attempt)
	return delay + time.Duration(e.Jitter*float64(delay))
}

func (e *Exponential) capped(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(float64(e.Base) * math.Pow(2, float64(attempt-1)))
	if e.Max > 0 && (delay > e.Max || delay < 0) {
		delay = e.Max
	}
	return delay
}

// New builds a policy by strategy name. Unknown names fall back to Fixed.
func New(strategy string, interval, max time.Duration) Policy {
	if strategy == "exponential" {
		return NewExponential(interval, max)
	}
	return Fixed{Interval: interval}
}

// Budget is the longest total wait p can produce before attempts 1 through n.
func Budget(p Policy, n int) time.Duration {
	var total time.Duration
	for i := 1; i <= n; i++ {
		if c, ok := p.(interface{ Ceiling(int) time.Duration }); ok {
			total += c.Ceiling(i)
		} else {
			total += p.Delay(i)
		}
	}
	return total
}

// Wait blocks for d or until ctx is done.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
