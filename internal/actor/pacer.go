package actor

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer throttles a bursty producer (a reliable writer resending history,
// a participant announcing SPDP) to a steady rate so it never saturates a
// slow receiver or the local NIC. Grounded on the teacher's use of
// golang.org/x/time/rate for outbound message pacing.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer builds a pacer allowing eventsPerSecond steady-state, with up to
// burst events permitted instantaneously.
func NewPacer(eventsPerSecond float64, burst int) *Pacer {
	if burst < 1 {
		burst = 1
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), burst)}
}

// Wait blocks until the next event is permitted or ctx is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Allow reports whether an event may proceed right now, without blocking.
func (p *Pacer) Allow() bool {
	return p.limiter.Allow()
}

// SetLimit changes the steady-state rate, e.g. when a reader proxy's
// negative-acknowledgment load indicates it needs to slow down.
func (p *Pacer) SetLimit(eventsPerSecond float64) {
	p.limiter.SetLimit(rate.Limit(eventsPerSecond))
}
