package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"pinscraper/pkg/config"
)

// Backoff yields the pause before the attempt following attempt (1-based)
type Backoff interface {
	Delay(attempt int) time.Duration
}

// Exponential grows the delay by Multiplier per attempt up to Max, with a
// symmetric random jitter of Jitter times the delay.
type Exponential struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64

	// rand returns values in [0, 1); nil uses math/rand
	rand func() float64
}

// NewExponential builds the backoff described by the retry settings
func NewExponential(rc config.RetryConfig) *Exponential {
	return &Exponential{
		Base:       rc.BaseDelay,
		Max:        rc.MaxDelay,
		Multiplier: rc.Multiplier,
		Jitter:     rc.JitterFactor,
	}
}

func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	d := float64(e.Base) * math.Pow(e.Multiplier, float64(attempt-1))
	if e.Max > 0 && d > float64(e.Max) {
		d = float64(e.Max)
	}

	if e.Jitter > 0 {
		r := rand.Float64
		if e.rand != nil {
			r = e.rand
		}
		d += d * e.Jitter * (2*r() - 1)
	}
	return time.Duration(math.Max(d, 0))
}

// Fixed waits the same duration before every retry
type Fixed time.Duration

func (f Fixed) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return time.Duration(f)
}

// sleep pauses for d unless ctx ends first
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
