package search

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Pacer spaces successive calls at least minInterval (plus jitter) apart.
// It is safe for concurrent use; concurrent callers are serialized.
type Pacer struct {
	last        time.Time
	mu          sync.Mutex
	minInterval time.Duration
	jitter      time.Duration
}

// NewPacer creates a pacer. A zero interval and jitter never waits.
func NewPacer(minInterval, jitter time.Duration) *Pacer {
	return &Pacer{minInterval: minInterval, jitter: jitter}
}

// Wait blocks until the next call may proceed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() {
		delay := p.minInterval
		if p.jitter > 0 {
			delay += rand.N(p.jitter) //nolint:gosec // pacing jitter, not security sensitive
		}
		if wait := delay - time.Since(p.last); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}

	p.last = time.Now()
	return nil
}
