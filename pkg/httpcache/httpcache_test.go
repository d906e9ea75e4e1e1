package httpcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	Limiter.SetDelay(0)
	os.Exit(m.Run())
}

func newCache(t *testing.T) *Cache {
	t.Helper()
	c, err := NewWithPath(time.Hour, t.TempDir())
	if err != nil {
		t.Fatalf("NewWithPath() error = %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Logf("close cache: %v", err)
		}
	})
	return c
}

func get(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestFetchCaches(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, "hello")
	}))
	defer server.Close()

	cache := newCache(t)
	ResetStats()
	for range 3 {
		body, err := Fetch(context.Background(), http.DefaultClient, get(t, server.URL), WithCache(cache))
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if string(body) != "hello" {
			t.Errorf("Fetch() = %q, want hello", body)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times, want 1", got)
	}
	if s := CacheStats(); s.Hits != 2 || s.Misses != 1 {
		t.Errorf("CacheStats() = %+v, want 2 hits and 1 miss", s)
	}
}

func TestFetchCachesHTTPErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cache := newCache(t)
	for range 2 {
		_, err := Fetch(context.Background(), http.DefaultClient, get(t, server.URL), WithCache(cache))
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
			t.Fatalf("Fetch() error = %v, want HTTP 404", err)
		}
		if httpErr.URL != server.URL {
			t.Errorf("HTTPError.URL = %q, want %q", httpErr.URL, server.URL)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times, want 1 (404 is not retried and is cached)", got)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	body, err := Fetch(context.Background(), http.DefaultClient, get(t, server.URL))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(body) != "ok" || calls.Load() != 2 {
		t.Errorf("Fetch() = %q after %d calls, want ok after 2", body, calls.Load())
	}
}

func TestFetchWithValidator(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, "<title>LinkedIn</title>")
	}))
	defer server.Close()

	cache := newCache(t)
	reject := func([]byte) bool { return false }
	for range 2 {
		body, err := Fetch(context.Background(), http.DefaultClient, get(t, server.URL), WithCache(cache), WithValidator(reject))
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if string(body) != "<title>LinkedIn</title>" {
			t.Errorf("body = %q", body)
		}
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server called %d times, want 2 (invalid bodies are not cached)", got)
	}
}

func TestFetchBodyLooksLikeEntryKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "s404")
	}))
	defer server.Close()

	cache := newCache(t)
	for range 2 {
		body, err := Fetch(context.Background(), http.DefaultClient, get(t, server.URL), WithCache(cache))
		if err != nil || string(body) != "s404" {
			t.Errorf("Fetch() = %q, %v; want the body verbatim", body, err)
		}
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    string
		status  int
		wantErr bool
	}{
		{name: "body", data: "bhello", want: "hello"},
		{name: "empty_body", data: "b", want: ""},
		{name: "status", data: "s429", status: 429, wantErr: true},
		{name: "network", data: "nconnection refused", wantErr: true},
		{name: "corrupt_status", data: "sabc", wantErr: true},
		{name: "unknown_kind", data: "xdata", wantErr: true},
		{name: "empty", data: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decode("https://example.com", []byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if string(got) != tt.want {
				t.Errorf("decode() = %q, want %q", got, tt.want)
			}
			var httpErr *HTTPError
			if tt.status != 0 && (!errors.As(err, &httpErr) || httpErr.StatusCode != tt.status) {
				t.Errorf("decode() error = %v, want HTTP %d", err, tt.status)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", &HTTPError{StatusCode: http.StatusTooManyRequests}, true},
		{"503", &HTTPError{StatusCode: http.StatusServiceUnavailable}, true},
		{"404", &HTTPError{StatusCode: http.StatusNotFound}, false},
		{"401 wrapped", fmt.Errorf("search: %w", &HTTPError{StatusCode: http.StatusUnauthorized}), false},
		{"network", errors.New("connection refused"), true},
		{"canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestHostLimiter(t *testing.T) {
	l := NewHostLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for range 3 {
		if err := l.Wait(ctx, "https://example.com/a"); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("3 waits took %v, want >= 100ms", elapsed)
	}

	start = time.Now()
	if err := l.Wait(ctx, "https://other.example/a"); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 40*time.Millisecond {
		t.Errorf("first request to new host waited %v", elapsed)
	}

	l.SetHostDelay("slow.example", time.Hour)
	if err := l.Wait(ctx, "https://slow.example/"); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(cctx, "https://slow.example/"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}

	if err := l.Wait(ctx, "not a url"); err != nil {
		t.Errorf("Wait(no host) error = %v", err)
	}
}

func TestKey(t *testing.T) {
	a := Key("brave", "q", "10")
	b := Key("brave", "q1", "0")
	if a == b {
		t.Error("Key() collides across part boundaries")
	}
	if a[:6] != "brave:" {
		t.Errorf("Key() = %q, want brave: prefix", a)
	}
}
