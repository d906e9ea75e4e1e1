package httpcache

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Limiter spaces out every fetch made through this package, per host.
var Limiter = NewHostLimiter(500 * time.Millisecond)

// HostLimiter hands out request slots at least a fixed delay apart for each host.
// Callers reserve a slot and then sleep until it; a cancelled wait keeps its slot.
type HostLimiter struct {
	mu     sync.Mutex
	next   map[string]time.Time
	delays map[string]time.Duration
	delay  time.Duration
}

// NewHostLimiter returns a limiter with delay between requests to the same host.
func NewHostLimiter(delay time.Duration) *HostLimiter {
	return &HostLimiter{
		next:   make(map[string]time.Time),
		delays: make(map[string]time.Duration),
		delay:  delay,
	}
}

// SetDelay changes the default spacing.
func (l *HostLimiter) SetDelay(d time.Duration) {
	l.mu.Lock()
	l.delay = d
	l.mu.Unlock()
}

// SetHostDelay overrides the spacing for one host.
func (l *HostLimiter) SetHostDelay(host string, d time.Duration) {
	l.mu.Lock()
	l.delays[strings.ToLower(host)] = d
	l.mu.Unlock()
}

// Wait blocks until a request to rawURL's host may go out, or ctx is done.
// URLs without a host are not limited.
func (l *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil //nolint:nilerr // nothing to pace
	}
	host := strings.ToLower(u.Host)

	l.mu.Lock()
	now := time.Now()
	slot := l.next[host]
	if slot.Before(now) {
		slot = now
	}
	d, ok := l.delays[host]
	if !ok {
		d = l.delay
	}
	l.next[host] = slot.Add(d)
	l.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
