package httpcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// UserAgent is sent with page and image fetches.
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:146.0) Gecko/20100101 Firefox/146.0"

const (
	maxBodySize    = 8 << 20
	defaultTimeout = 10 * time.Second
)

// Cached entries carry a one-byte kind prefix so failures can be cached too.
const (
	kindBody    byte = 'b'
	kindStatus  byte = 's'
	kindNetwork byte = 'n'
)

// HTTPError is a non-200 response.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// FetchOption configures Fetch.
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	cache    Cacher
	logger   *slog.Logger
	validate func(body []byte) bool
	timeout  time.Duration
}

// WithCache stores responses in c. Without it every call goes to the network.
func WithCache(c Cacher) FetchOption {
	return func(fc *fetchConfig) { fc.cache = c }
}

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) FetchOption {
	return func(fc *fetchConfig) { fc.logger = logger }
}

// WithValidator only caches bodies for which valid returns true. Invalid bodies
// are still returned to the caller.
func WithValidator(valid func(body []byte) bool) FetchOption {
	return func(fc *fetchConfig) { fc.validate = valid }
}

// WithTimeout bounds the whole fetch, retries included. Default 10s.
func WithTimeout(d time.Duration) FetchOption {
	return func(fc *fetchConfig) { fc.timeout = d }
}

// Fetch sends req and returns the body of a 200 response. Other statuses come back
// as *HTTPError. With a cache, 4xx/5xx and network failures are remembered for the
// entry's TTL, so a dead URL is not retried on every run. Requests that carry
// cookies are cached separately from anonymous ones.
func Fetch(ctx context.Context, client *http.Client, req *http.Request, opts ...FetchOption) ([]byte, error) {
	fc := &fetchConfig{logger: slog.Default(), timeout: defaultTimeout}
	for _, opt := range opts {
		opt(fc)
	}
	if fc.cache == nil {
		return roundTrip(ctx, client, req, fc)
	}

	url := req.URL.String()
	auth := "anon"
	if client.Jar != nil && len(client.Jar.Cookies(req.URL)) > 0 {
		auth = "session"
	}

	data, err := fc.cache.GetSet(ctx, Key("url", url, auth), func(ctx context.Context) ([]byte, error) {
		fc.logger.DebugContext(ctx, "cache miss", "url", url)
		body, err := roundTrip(ctx, client, req, fc)
		var httpErr *HTTPError
		switch {
		case errors.As(err, &httpErr):
			return append([]byte{kindStatus}, strconv.Itoa(httpErr.StatusCode)...), nil
		case err != nil && ctx.Err() != nil:
			return nil, err
		case err != nil:
			return append([]byte{kindNetwork}, err.Error()...), nil
		case fc.validate != nil && !fc.validate(body):
			fc.logger.DebugContext(ctx, "not caching invalid response", "url", url)
			return nil, &uncacheable{body: body}
		}
		return append([]byte{kindBody}, body...), nil
	}, fc.cache.TTL())

	var u *uncacheable
	if errors.As(err, &u) {
		return u.body, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(url, data)
}

// uncacheable carries a body the validator rejected out of GetSet.
type uncacheable struct{ body []byte }

func (*uncacheable) Error() string { return "response failed validation" }

func decode(url string, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty cache entry for %s", url)
	}
	switch data[0] {
	case kindBody:
		return data[1:], nil
	case kindStatus:
		code, err := strconv.Atoi(string(data[1:]))
		if err != nil {
			return nil, fmt.Errorf("corrupt cache entry for %s: %w", url, err)
		}
		return nil, &HTTPError{URL: url, StatusCode: code}
	case kindNetwork:
		return nil, fmt.Errorf("fetch %s (cached failure): %s", url, data[1:])
	default:
		return nil, fmt.Errorf("unknown cache entry kind %q for %s", data[0], url)
	}
}

func roundTrip(ctx context.Context, client *http.Client, req *http.Request, fc *fetchConfig) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fc.timeout)
	defer cancel()
	url := req.URL.String()

	return retry.DoWithData(
		func() ([]byte, error) {
			if err := Limiter.Wait(ctx, url); err != nil {
				return nil, err
			}
			resp, err := client.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close() //nolint:errcheck // best effort cleanup

			if resp.StatusCode != http.StatusOK {
				return nil, &HTTPError{URL: url, StatusCode: resp.StatusCode}
			}
			return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(200*time.Millisecond),
		retry.MaxJitter(100*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			fc.logger.DebugContext(ctx, "retrying fetch", "attempt", n+1, "url", url, "error", err)
		}),
	)
}

// IsRetryable reports whether err is transient: 429, a 5xx gateway or server
// error, or a network failure. Cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return true
	}
	switch httpErr.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
