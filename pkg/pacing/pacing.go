// Package pacing provides fixed post-operation delays with optional jitter,
// used to keep external API call rates under upstream limits.
package pacing

import (
	"context"
	"math/rand"
	"time"
)

// Pacer sleeps a fixed base delay, with optional random jitter, between
// operations. It is safe for concurrent use by multiple goroutines.
type Pacer struct {
	delay  time.Duration
	jitter float64 // 0.0 to 1.0
}

// New creates a pacer with the given base delay and jitter factor. A delay
// of zero makes Wait a no-op. Jitter is clamped to [0, 1].
func New(delay time.Duration, jitter float64) *Pacer {
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}
	return &Pacer{delay: delay, jitter: jitter}
}

// Wait blocks for the configured delay (plus or minus jitter), or until the
// context is canceled.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.delay <= 0 {
		return nil
	}

	d := p.delay
	if p.jitter > 0 {
		// Random factor in [-1, 1] scaled by the jitter fraction.
		factor := (rand.Float64() * 2) - 1.0
		d += time.Duration(float64(p.delay) * p.jitter * factor)
		if d < 0 {
			d = 0
		}
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
