package search

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/doppelganger/pkg/httpcache"
	"github.com/codeGROOVE-dev/doppelganger/pkg/persona"
)

// fakeSource fails the first `failures` calls with err, then returns hits.
type fakeSource struct {
	err      error
	hits     []persona.RawHit
	calls    atomic.Int32
	failures int32
	delay    time.Duration
}

func (f *fakeSource) Search(ctx context.Context, _ string, _ int) ([]persona.RawHit, error) {
	n := f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if n <= f.failures {
		return nil, f.err
	}
	return f.hits, nil
}

func fastPolicy() Policy {
	return Policy{Attempts: 2, Backoff: time.Millisecond, Timeout: time.Second}
}

func TestResilientRetriesThenSucceeds(t *testing.T) {
	hits := []persona.RawHit{{URL: "https://www.linkedin.com/in/a"}}
	src := &fakeSource{err: errors.New("connection reset"), failures: 1, hits: hits}

	got, err := NewResilient(src, fastPolicy()).Search(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if diff := cmp.Diff(hits, got); diff != "" {
		t.Errorf("Search() mismatch (-want +got):\n%s", diff)
	}
	if n := src.calls.Load(); n != 2 {
		t.Errorf("source called %d times, want 2", n)
	}
}

func TestResilientExhaustsRetries(t *testing.T) {
	src := &fakeSource{err: errors.New("connection reset"), failures: 100}

	got, err := NewResilient(src, fastPolicy()).Search(context.Background(), "q", 10)
	if err == nil {
		t.Fatal("Search() error = nil, want failure after retries")
	}
	if got != nil {
		t.Errorf("Search() = %v, want nil", got)
	}
	if n := src.calls.Load(); n != 2 {
		t.Errorf("source called %d times, want 2", n)
	}
}

func TestResilientDoesNotRetryPermanentErrors(t *testing.T) {
	src := &fakeSource{err: &httpcache.HTTPError{StatusCode: http.StatusUnauthorized}, failures: 100}

	if _, err := NewResilient(src, fastPolicy()).Search(context.Background(), "q", 10); err == nil {
		t.Fatal("Search() error = nil")
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("source called %d times, want 1", n)
	}
}

func TestResilientTimeout(t *testing.T) {
	src := &fakeSource{delay: time.Second, hits: []persona.RawHit{{URL: "x"}}}
	p := fastPolicy()
	p.Timeout = 10 * time.Millisecond

	start := time.Now()
	_, err := NewResilient(src, p).Search(context.Background(), "q", 10)
	if err == nil {
		t.Fatal("Search() error = nil, want timeout")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Search() took %v, want per-try timeout to apply", elapsed)
	}
}

func TestResilientBreakerOpens(t *testing.T) {
	src := &fakeSource{err: errors.New("boom"), failures: 1000}
	p := Policy{Attempts: 1, Timeout: time.Second, BreakerFailures: 3, BreakerCooldown: time.Hour}
	r := NewResilient(src, p, WithName("test"))

	for range 5 {
		if _, err := r.Search(context.Background(), "q", 10); err == nil {
			t.Fatal("Search() error = nil")
		}
	}
	if n := src.calls.Load(); n != 3 {
		t.Errorf("source called %d times, want 3 before the breaker opened", n)
	}
}

func TestResilientCanceledContext(t *testing.T) {
	src := &fakeSource{hits: []persona.RawHit{{URL: "x"}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewResilient(src, fastPolicy()).Search(ctx, "q", 10); err == nil {
		t.Error("Search() with canceled context succeeded")
	}
}

func TestPacer(t *testing.T) {
	p := NewPacer(30*time.Millisecond, 0)
	ctx := context.Background()

	start := time.Now()
	for range 3 {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("3 paced calls took %v, want >= 60ms", elapsed)
	}

	slow := NewPacer(time.Hour, 0)
	if err := slow.Wait(ctx); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}
	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := slow.Wait(cctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}
