// Package search defines the candidate source interface and the policy that
// wraps every call to one: timeout, retry, circuit breaking, and pacing.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/sony/gobreaker"

	"github.com/codeGROOVE-dev/doppelganger/pkg/httpcache"
	"github.com/codeGROOVE-dev/doppelganger/pkg/metrics"
	"github.com/codeGROOVE-dev/doppelganger/pkg/persona"
)

// Source runs one web search. It may return fewer hits than requested; an empty
// slice means no results, not an error.
type Source interface {
	Search(ctx context.Context, query string, maxResults int) ([]persona.RawHit, error)
}

// Policy controls how a Source is called.
type Policy struct {
	Attempts    uint          // total tries per query, including the first
	Backoff     time.Duration // fixed delay between tries
	Timeout     time.Duration // per-try deadline
	MinInterval time.Duration // minimum spacing between calls
	Jitter      time.Duration // random extra spacing, [0, Jitter)

	// Breaker settings; BreakerFailures == 0 disables the breaker.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// DefaultPolicy is two tries one second apart, a 10s deadline, and 1-2s between calls.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:        2,
		Backoff:         time.Second,
		Timeout:         10 * time.Second,
		MinInterval:     time.Second,
		Jitter:          time.Second,
		BreakerFailures: 5,
		BreakerCooldown: time.Minute,
	}
}

// Resilient applies a Policy around a Source.
type Resilient struct {
	src     Source
	cb      *gobreaker.CircuitBreaker
	pacer   *Pacer
	logger  *slog.Logger
	metrics *metrics.Metrics
	policy  Policy
	name    string
}

// Option configures a Resilient source.
type Option func(*Resilient)

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resilient) { r.logger = logger }
}

// WithMetrics records retries and failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resilient) { r.metrics = m }
}

// WithName names the source in logs and breaker state changes.
func WithName(name string) Option {
	return func(r *Resilient) { r.name = name }
}

// NewResilient wraps src with policy p.
func NewResilient(src Source, p Policy, opts ...Option) *Resilient {
	if p.Attempts == 0 {
		p.Attempts = 1
	}
	r := &Resilient{
		src:    src,
		policy: p,
		logger: slog.Default(),
		name:   "search",
	}
	for _, opt := range opts {
		opt(r)
	}
	r.pacer = NewPacer(p.MinInterval, p.Jitter)

	if p.BreakerFailures > 0 {
		logger := r.logger
		r.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        r.name,
			MaxRequests: 1,
			Timeout:     p.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= p.BreakerFailures
			},
			IsSuccessful: func(err error) bool {
				// Caller cancellation says nothing about the source's health.
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("search circuit breaker state change", "source", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return r
}

// Search runs query through the policy. The returned error is non-nil only when
// every try failed; callers treat that as an empty result.
func (r *Resilient) Search(ctx context.Context, query string, maxResults int) ([]persona.RawHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hits, err := retry.DoWithData(
		func() ([]persona.RawHit, error) {
			if err := r.pacer.Wait(ctx); err != nil {
				return nil, err
			}
			return r.try(ctx, query, maxResults)
		},
		retry.Context(ctx),
		retry.Attempts(r.policy.Attempts),
		retry.Delay(r.policy.Backoff),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			r.metrics.SourceRetried()
			r.logger.DebugContext(ctx, "retrying search", "source", r.name, "attempt", n+1, "query", query, "error", err)
		}),
	)
	if err != nil {
		r.metrics.SourceFailed()
		return nil, fmt.Errorf("%s search %q: %w", r.name, query, err)
	}
	return hits, nil
}

func (r *Resilient) try(ctx context.Context, query string, maxResults int) ([]persona.RawHit, error) {
	if r.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
		defer cancel()
	}

	if r.cb == nil {
		return r.src.Search(ctx, query, maxResults)
	}
	v, err := r.cb.Execute(func() (interface{}, error) {
		return r.src.Search(ctx, query, maxResults)
	})
	if err != nil {
		return nil, err
	}
	hits, _ := v.([]persona.RawHit) //nolint:errcheck // nil on empty result
	return hits, nil
}

// retryable reports whether another try could help.
func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, persona.ErrRateLimited) {
		return true
	}
	return httpcache.IsRetryable(err)
}
