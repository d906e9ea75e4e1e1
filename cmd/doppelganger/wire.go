package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeGROOVE-dev/doppelganger/pkg/avatar"
	"github.com/codeGROOVE-dev/doppelganger/pkg/config"
	"github.com/codeGROOVE-dev/doppelganger/pkg/deepface"
	"github.com/codeGROOVE-dev/doppelganger/pkg/doppelganger"
	"github.com/codeGROOVE-dev/doppelganger/pkg/embedding"
	"github.com/codeGROOVE-dev/doppelganger/pkg/httpcache"
	"github.com/codeGROOVE-dev/doppelganger/pkg/linkedin"
	"github.com/codeGROOVE-dev/doppelganger/pkg/metrics"
	"github.com/codeGROOVE-dev/doppelganger/pkg/search"
	"github.com/codeGROOVE-dev/doppelganger/pkg/similarity"
)

// components is everything a resolve run owns.
type components struct {
	resolver *doppelganger.Resolver
	cache    *httpcache.Cache
	server   *http.Server
}

func (c *components) Close(ctx context.Context, logger *slog.Logger) {
	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			logger.Warn("failed to stop metrics server", "error", err)
		}
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			logger.Warn("failed to close cache", "error", err)
		}
	}
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*components, error) {
	c := &components{}

	var m *metrics.Metrics
	if cfg.Metrics.Addr != "" {
		m = metrics.New()
		reg := prometheus.NewRegistry()
		if err := m.Register(reg); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		c.server = serveMetrics(cfg.Metrics.Addr, reg, logger)
	}

	c.cache = buildCache(cfg.Cache, logger)

	src, err := buildSource(cfg, c.cache, logger, m)
	if err != nil {
		c.Close(ctx, logger)
		return nil, err
	}
	fetcher, err := buildFetcher(ctx, cfg, c.cache, logger)
	if err != nil {
		c.Close(ctx, logger)
		return nil, err
	}
	embedder, err := buildEmbedder(cfg.Embedding, c.cache, logger)
	if err != nil {
		c.Close(ctx, logger)
		return nil, err
	}

	c.resolver, err = doppelganger.New(
		doppelganger.WithSource(src),
		doppelganger.WithFaceComparator(buildFaces(cfg.Face, c.cache, logger)),
		doppelganger.WithProfileFetcher(fetcher),
		doppelganger.WithEmbedder(embedder),
		doppelganger.WithStrategy(doppelganger.Strategy(cfg.Resolve.Strategy)),
		doppelganger.WithTables(cfg.Tables()),
		doppelganger.WithWeights(cfg.Weights),
		doppelganger.WithQualifier(cfg.Search.Qualifier),
		doppelganger.WithMaxResults(cfg.Resolve.MaxResults),
		doppelganger.WithLogger(logger),
		doppelganger.WithMetrics(m),
	)
	if err != nil {
		c.Close(ctx, logger)
		return nil, err
	}
	return c, nil
}

func buildCache(cc config.CacheConfig, logger *slog.Logger) *httpcache.Cache {
	if !cc.Enabled {
		return httpcache.NewNull()
	}
	var (
		cache *httpcache.Cache
		err   error
	)
	if cc.Dir != "" {
		cache, err = httpcache.NewWithPath(cc.TTL, cc.Dir)
	} else {
		cache, err = httpcache.New(cc.TTL)
	}
	if err != nil {
		logger.Warn("failed to initialize cache, continuing without cache", "error", err)
		return httpcache.NewNull()
	}
	logger.Debug("HTTP cache initialized", "ttl", cc.TTL.String())
	return cache
}

func buildSource(cfg *config.Config, cache httpcache.Cacher, logger *slog.Logger, m *metrics.Metrics) (search.Source, error) {
	var ws *linkedin.WebSearcher
	opts := []linkedin.SearchOption{
		linkedin.WithSearchCache(cache),
		linkedin.WithSearchCacheTTL(cfg.Search.CacheTTL),
		linkedin.WithSearchLogger(logger),
	}
	switch cfg.Search.Provider {
	case "google":
		key, cx := cfg.Search.GoogleAPIKey, cfg.Search.GoogleEngineID
		if key == "" || cx == "" {
			fileKey, fileCX := linkedin.LoadGoogleCredentials()
			key, cx = cmp.Or(key, fileKey), cmp.Or(cx, fileCX)
		}
		if key == "" || cx == "" {
			return nil, errors.New("no Google credentials: set GOOGLE_API_KEY and GOOGLE_CSE_ID or write ~/.google-cse")
		}
		ws = linkedin.NewGoogleSearcher(key, cx, opts...)
	default:
		key := cmp.Or(cfg.Search.BraveAPIKey, linkedin.LoadBraveAPIKey())
		if key == "" {
			return nil, errors.New("no Brave API key: set BRAVE_API_KEY or write ~/.brave")
		}
		ws = linkedin.NewBraveSearcher(key, opts...)
	}
	return search.NewResilient(ws, cfg.Policy(),
		search.WithName(ws.Provider()),
		search.WithLogger(logger),
		search.WithMetrics(m),
	), nil
}

func buildFaces(fc config.FaceConfig, cache httpcache.Cacher, logger *slog.Logger) doppelganger.FaceComparator {
	switch fc.Comparator {
	case "deepface":
		return deepface.New(fc.DeepfaceURL,
			deepface.WithModel(fc.DeepfaceModel),
			deepface.WithDetector(fc.DeepfaceDetector),
			deepface.WithLogger(logger),
		)
	case "none":
		return nil
	default:
		return avatar.New(avatar.WithCache(cache), avatar.WithLogger(logger))
	}
}

func buildFetcher(ctx context.Context, cfg *config.Config, cache httpcache.Cacher, logger *slog.Logger) (doppelganger.ProfileFetcher, error) {
	if !cfg.LinkedIn.FetchProfiles {
		return nil, nil //nolint:nilnil // fetching disabled
	}
	httpcache.Limiter.SetHostDelay("www.linkedin.com", cfg.LinkedIn.FetchInterval)

	opts := []linkedin.FetcherOption{
		linkedin.WithFetcherCache(cache),
		linkedin.WithFetcherLogger(logger),
	}
	if len(cfg.LinkedIn.Cookies) > 0 {
		opts = append(opts, linkedin.WithCookies(cfg.LinkedIn.Cookies))
	}
	if cfg.LinkedIn.BrowserCookies {
		opts = append(opts, linkedin.WithBrowserCookies())
	}
	f, err := linkedin.NewFetcher(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create profile fetcher: %w", err)
	}
	return f, nil
}

func buildEmbedder(ec config.EmbeddingConfig, cache httpcache.Cacher, logger *slog.Logger) (similarity.Embedder, error) {
	if !ec.Enabled {
		return nil, nil //nolint:nilnil // embeddings disabled
	}
	opts := []embedding.Option{
		embedding.WithModel(ec.Model),
		embedding.WithCache(cache),
		embedding.WithLogger(logger),
	}
	if ec.BaseURL != "" {
		opts = append(opts, embedding.WithBaseURL(ec.BaseURL))
	}
	e, err := embedding.NewOpenAI(ec.APIKey, opts...)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}
