package extract

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the attempts made for one page.
type RetryPolicy struct {
	MaxAttempts int
	MinWait     time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy is three attempts with 10s then 20s between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, MinWait: 10 * time.Second, MaxWait: 60 * time.Second, Multiplier: 2}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.MinWait < 0 {
		p.MinWait = 0
	}
	if p.MaxWait < p.MinWait {
		p.MaxWait = p.MinWait
	}
	if p.Multiplier <= 0 {
		p.Multiplier = d.Multiplier
	}
	return p
}

// schedule returns a fresh deterministic backoff: wait n is MinWait*Multiplier^(n-1) capped at MaxWait.
func (p RetryPolicy) schedule() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.MinWait,
		RandomizationFactor: 0,
		Multiplier:          p.Multiplier,
		MaxInterval:         p.MaxWait,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// Waits lists the pauses taken between attempts, MaxAttempts-1 entries.
func (p RetryPolicy) Waits() []time.Duration {
	p = p.withDefaults()
	b := p.schedule()
	out := make([]time.Duration, 0, p.MaxAttempts-1)
	for i := 1; i < p.MaxAttempts; i++ {
		out = append(out, b.NextBackOff())
	}
	return out
}
