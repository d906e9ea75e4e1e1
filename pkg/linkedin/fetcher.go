package linkedin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/doppelganger/pkg/auth"
	"github.com/codeGROOVE-dev/doppelganger/pkg/htmlutil"
	"github.com/codeGROOVE-dev/doppelganger/pkg/httpcache"
	"github.com/codeGROOVE-dev/doppelganger/pkg/persona"
)

// Fetcher resolves a profile URL to the display name and photo on its public page.
type Fetcher struct {
	httpClient *http.Client
	cache      httpcache.Cacher
	logger     *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*fetcherConfig)

type fetcherConfig struct {
	cache          httpcache.Cacher
	logger         *slog.Logger
	httpClient     *http.Client
	cookies        map[string]string
	browserCookies bool
}

// WithCookies sets explicit session cookies (li_at, JSESSIONID, ...).
func WithCookies(cookies map[string]string) FetcherOption {
	return func(c *fetcherConfig) { c.cookies = cookies }
}

// WithBrowserCookies enables reading session cookies from local browsers.
func WithBrowserCookies() FetcherOption {
	return func(c *fetcherConfig) { c.browserCookies = true }
}

// WithFetcherCache sets the HTTP response cache.
func WithFetcherCache(cache httpcache.Cacher) FetcherOption {
	return func(c *fetcherConfig) { c.cache = cache }
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(c *fetcherConfig) { c.logger = logger }
}

// WithFetcherHTTPClient replaces the HTTP client; its cookie jar is replaced when cookies are found.
func WithFetcherHTTPClient(client *http.Client) FetcherOption {
	return func(c *fetcherConfig) { c.httpClient = client }
}

// NewFetcher creates a profile fetcher. Cookies come from, in order: WithCookies,
// LINKEDIN_* environment variables, and (when enabled) browser stores.
// Without cookies, pages are fetched anonymously, which LinkedIn often answers with a login wall.
func NewFetcher(ctx context.Context, opts ...FetcherOption) (*Fetcher, error) {
	cfg := &fetcherConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	sources := []auth.Source{auth.Static(cfg.cookies), auth.Env()}
	if cfg.browserCookies {
		sources = append(sources, auth.Browser(cfg.logger))
	}
	session, err := auth.LinkedIn.Find(ctx, sources...)
	if err != nil {
		return nil, fmt.Errorf("cookie retrieval failed: %w", err)
	}

	client := cfg.httpClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if session.Empty() {
		cfg.logger.WarnContext(ctx, "no linkedin cookies; profile pages will be fetched anonymously",
			"env", auth.LinkedIn.EnvVarNames())
	} else {
		if missing := session.Missing(); len(missing) > 0 {
			cfg.logger.InfoContext(ctx, "linkedin session incomplete", "source", session.Source, "missing", missing)
		}
		jar, err := session.Jar()
		if err != nil {
			return nil, fmt.Errorf("cookie jar creation failed: %w", err)
		}
		client.Jar = jar
	}

	return &Fetcher{httpClient: client, cache: cfg.cache, logger: cfg.logger}, nil
}

// Fetch returns the profile's display name and image. It returns (nil, nil) when
// the page does not exist or carries no profile data.
func (f *Fetcher) Fetch(ctx context.Context, profileURL string) (*persona.Profile, error) {
	if !strings.HasPrefix(profileURL, "http") {
		profileURL = ProfileURL(profileURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, profileURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("request creation failed: %w", err)
	}
	setHeaders(req)

	f.logger.DebugContext(ctx, "fetching linkedin profile", "url", profileURL)

	// Shell pages are returned but never cached.
	body, err := httpcache.Fetch(ctx, f.httpClient, req,
		httpcache.WithCache(f.cache),
		httpcache.WithLogger(f.logger),
		httpcache.WithValidator(isValidProfilePage),
	)
	if err != nil {
		var httpErr *httpcache.HTTPError
		if errors.As(err, &httpErr) && (httpErr.StatusCode == http.StatusNotFound || httpErr.StatusCode == http.StatusGone) {
			return nil, nil //nolint:nilnil // missing profile is a null result
		}
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("fetch %s: %w", profileURL, persona.ErrRateLimited)
		}
		return nil, fmt.Errorf("fetch %s: %w", profileURL, err)
	}

	prof, err := parseProfilePage(string(body))
	if errors.Is(err, persona.ErrProfileNotFound) {
		f.logger.DebugContext(ctx, "linkedin profile unavailable", "url", profileURL)
		return nil, nil //nolint:nilnil // missing profile is a null result
	}
	return prof, err
}

// isValidProfilePage reports whether a response carries profile data.
// LinkedIn sometimes returns SPA shell pages titled just "LinkedIn".
func isValidProfilePage(body []byte) bool {
	hasGenericTitle := bytes.Contains(body, []byte("<title>LinkedIn</title>"))
	hasProfileData := bytes.Contains(body, []byte("og:title")) ||
		bytes.Contains(body, []byte(`"publicIdentifier"`)) ||
		bytes.Contains(body, []byte(`"firstName"`))
	return hasProfileData || !hasGenericTitle
}

func parseProfilePage(content string) (*persona.Profile, error) {
	page := htmlutil.Parse(content)
	if page.NotFound() {
		return nil, persona.ErrProfileNotFound
	}

	name := displayName(page.Meta("og:title"))
	if name == "" {
		name = displayName(page.Title())
	}
	if name == "" {
		return nil, persona.ErrProfileNotFound
	}
	return &persona.Profile{Name: name, ImageURL: page.Image()}, nil
}

// displayName extracts "Jane Doe" from titles like "Jane Doe - Staff Engineer - Acme | LinkedIn".
func displayName(title string) string {
	title = strings.TrimSpace(title)
	for _, sep := range []string{" | ", " - ", " – ", " — "} {
		if i := strings.Index(title, sep); i > 0 {
			title = title[:i]
		}
	}
	title = strings.TrimSpace(title)
	if strings.EqualFold(title, "linkedin") || strings.EqualFold(title, "sign up") || strings.EqualFold(title, "log in") {
		return ""
	}
	return title
}

func setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", httpcache.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("DNT", "1")
	req.Header.Set("Sec-GPC", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-User", "?1")
}
