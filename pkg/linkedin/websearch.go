package linkedin

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/doppelganger/pkg/httpcache"
	"github.com/codeGROOVE-dev/doppelganger/pkg/persona"
)

// SearchCacheTTL is how long search responses are cached.
const SearchCacheTTL = 30 * 24 * time.Hour

// searchAPI adapts one hosted search provider.
type searchAPI interface {
	// name labels logs, errors, and cache keys.
	name() string
	// limit is the most results one request can return.
	limit() int
	request(ctx context.Context, query string, n int) (*http.Request, error)
	parse(body []byte) ([]persona.RawHit, error)
}

// WebSearcher is a candidate source backed by a hosted web search API.
type WebSearcher struct {
	api        searchAPI
	scope      string
	httpClient *http.Client
	cache      httpcache.Cacher
	logger     *slog.Logger
	cacheTTL   time.Duration
}

// SearchOption configures a WebSearcher.
type SearchOption func(*WebSearcher)

// WithSearchCache stores raw responses keyed by provider, query, and count.
func WithSearchCache(cache httpcache.Cacher) SearchOption {
	return func(s *WebSearcher) { s.cache = cache }
}

// WithSearchCacheTTL overrides SearchCacheTTL.
func WithSearchCacheTTL(ttl time.Duration) SearchOption {
	return func(s *WebSearcher) { s.cacheTTL = ttl }
}

// WithSearchLogger sets a logger.
func WithSearchLogger(logger *slog.Logger) SearchOption {
	return func(s *WebSearcher) { s.logger = logger }
}

// WithSearchHTTPClient replaces the HTTP client.
func WithSearchHTTPClient(c *http.Client) SearchOption {
	return func(s *WebSearcher) { s.httpClient = c }
}

func newWebSearcher(api searchAPI, scope string, opts []SearchOption) *WebSearcher {
	s := &WebSearcher{
		api:        api,
		scope:      scope,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     slog.Default(),
		cacheTTL:   SearchCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider names the backing API, e.g. "brave".
func (s *WebSearcher) Provider() string { return s.api.name() }

// Search runs query, asking for maxResults hits clamped to what one request allows.
func (s *WebSearcher) Search(ctx context.Context, query string, maxResults int) ([]persona.RawHit, error) {
	n := min(max(maxResults, 1), s.api.limit())

	var body []byte
	var err error
	if s.cache == nil {
		body, err = s.get(ctx, query, n)
	} else {
		key := httpcache.Key(s.api.name(), s.scope, query, strconv.Itoa(n))
		body, err = s.cache.GetSet(ctx, key, func(ctx context.Context) ([]byte, error) {
			return s.get(ctx, query, n)
		}, s.cacheTTL)
	}
	if err != nil {
		return nil, err
	}

	hits, err := s.api.parse(body)
	if err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", s.api.name(), err)
	}
	return hits, nil
}

func (s *WebSearcher) get(ctx context.Context, query string, n int) ([]byte, error) {
	req, err := s.api.request(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", s.api.name(), err)
	}
	req.Header.Set("Accept", "application/json")

	s.logger.DebugContext(ctx, "web search", "provider", s.api.name(), "query", query, "n", n)

	// Errors report only the endpoint; query strings may carry API keys.
	endpoint := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path

	resp, err := s.httpClient.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = endpoint
		}
		return nil, fmt.Errorf("%s: %w", s.api.name(), err)
	}
	defer resp.Body.Close() //nolint:errcheck // best effort cleanup

	if resp.StatusCode != http.StatusOK {
		e := &httpcache.HTTPError{URL: endpoint, StatusCode: resp.StatusCode}
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512)) //nolint:errcheck // detail only
		if detail := strings.TrimSpace(string(msg)); detail != "" {
			return nil, fmt.Errorf("%s API: %w: %s", s.api.name(), e, detail)
		}
		return nil, fmt.Errorf("%s API: %w", s.api.name(), e)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", s.api.name(), err)
	}
	return body, nil
}

var emphasis = strings.NewReplacer("<strong>", "", "</strong>", "", "<b>", "", "</b>", "")

// plainSnippet drops the highlight markup search APIs wrap around matched
// terms and decodes entities.
func plainSnippet(s string) string {
	return strings.TrimSpace(html.UnescapeString(emphasis.Replace(s)))
}

// dotfileFields returns the whitespace-separated fields of ~/name.
func dotfileFields(name string) []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(home, name))
	if err != nil {
		return nil
	}
	return strings.Fields(string(data))
}
