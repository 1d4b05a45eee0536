package app

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// DelayFunc holds a send back before it reaches the gateway. It is a
// side call: errors are logged and never fail the primary send path.
type DelayFunc func(ctx context.Context, lineID uuid.UUID) error

// NoDelay sends immediately. Used in tests and when pacing is disabled.
func NoDelay(context.Context, uuid.UUID) error { return nil }

// LinePacer spaces sends per line so a single line never bursts at
// machine speed. Each line gets its own token-bucket limiter, created
// on first use.
type LinePacer struct {
	mu       sync.Mutex
	limiters map[uuid.UUID]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewLinePacer allows sendsPerSecond sustained sends per line with the
// given burst allowance.
func NewLinePacer(sendsPerSecond float64, burst int) *LinePacer {
	if burst < 1 {
		burst = 1
	}
	return &LinePacer{
		limiters: make(map[uuid.UUID]*rate.Limiter),
		limit:    rate.Limit(sendsPerSecond),
		burst:    burst,
	}
}

// Wait blocks until the line's limiter grants a token or the context
// ends.
func (p *LinePacer) Wait(ctx context.Context, lineID uuid.UUID) error {
	return p.limiter(lineID).Wait(ctx)
}

func (p *LinePacer) limiter(lineID uuid.UUID) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	limiter, ok := p.limiters[lineID]
	if !ok {
		limiter = rate.NewLimiter(p.limit, p.burst)
		p.limiters[lineID] = limiter
	}
	return limiter
}
