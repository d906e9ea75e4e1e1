// Package config loads doppelganger settings from a config file, DOPPELGANGER_*
// environment variables, and command-line flags bound by the CLI.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/codeGROOVE-dev/doppelganger/pkg/auth"
	"github.com/codeGROOVE-dev/doppelganger/pkg/lookup"
	"github.com/codeGROOVE-dev/doppelganger/pkg/search"
	"github.com/codeGROOVE-dev/doppelganger/pkg/similarity"
)

// EnvPrefix prefixes environment overrides: DOPPELGANGER_SEARCH_PROVIDER, ...
const EnvPrefix = "DOPPELGANGER"

// Allowed enum values.
var (
	Providers   = []string{"brave", "google"}
	Strategies  = []string{"profile", "snippet"}
	Comparators = []string{"avatar", "deepface", "none"}
	LogFormats  = []string{"text", "json"}
)

// Config holds all configuration for the application.
type Config struct {
	Log       LogConfig          `mapstructure:"log"`
	Resolve   ResolveConfig      `mapstructure:"resolve"`
	Search    SearchConfig       `mapstructure:"search"`
	Face      FaceConfig         `mapstructure:"face"`
	Embedding EmbeddingConfig    `mapstructure:"embedding"`
	LinkedIn  LinkedInConfig     `mapstructure:"linkedin"`
	Cache     CacheConfig        `mapstructure:"cache"`
	Metrics   MetricsConfig      `mapstructure:"metrics"`
	Weights   similarity.Weights `mapstructure:"weights"`
	Lookup    lookup.Overrides   `mapstructure:"lookup"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json
}

// ResolveConfig controls the resolution pipeline.
type ResolveConfig struct {
	K           int    `mapstructure:"k"`
	Strategy    string `mapstructure:"strategy"` // profile, snippet
	Concurrency int    `mapstructure:"concurrency"`
	MaxResults  int    `mapstructure:"max_results"` // hits requested per query
}

// SearchConfig selects and tunes the candidate source.
type SearchConfig struct {
	Provider        string        `mapstructure:"provider"` // brave, google
	Qualifier       string        `mapstructure:"qualifier"`
	BraveAPIKey     string        `mapstructure:"brave_api_key"`
	GoogleAPIKey    string        `mapstructure:"google_api_key"`
	GoogleEngineID  string        `mapstructure:"google_engine_id"`
	Attempts        uint          `mapstructure:"attempts"`
	Backoff         time.Duration `mapstructure:"backoff"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MinInterval     time.Duration `mapstructure:"min_interval"`
	Jitter          time.Duration `mapstructure:"jitter"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"` // raw API responses
}

// FaceConfig selects the face comparator.
type FaceConfig struct {
	Comparator       string `mapstructure:"comparator"` // avatar, deepface, none
	DeepfaceURL      string `mapstructure:"deepface_url"`
	DeepfaceModel    string `mapstructure:"deepface_model"`
	DeepfaceDetector string `mapstructure:"deepface_detector"`
}

// EmbeddingConfig enables the semantic signal.
type EmbeddingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// LinkedInConfig configures profile fetching.
type LinkedInConfig struct {
	FetchProfiles  bool              `mapstructure:"fetch_profiles"`
	BrowserCookies bool              `mapstructure:"browser_cookies"`
	Cookies        map[string]string `mapstructure:"cookies"`
	FetchInterval  time.Duration     `mapstructure:"fetch_interval"` // spacing between profile page requests
}

// CacheConfig configures the on-disk HTTP cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	Dir     string        `mapstructure:"dir"` // empty uses ~/.cache/doppelganger
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables
}

// Load reads configuration into a Config. path may be empty; flags should already
// be bound to v.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.LinkedIn.Cookies = canonicalCookies(cfg.LinkedIn.Cookies, auth.LinkedIn.Essential)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("resolve.k", 3)
	v.SetDefault("resolve.strategy", "profile")
	v.SetDefault("resolve.concurrency", 2)
	v.SetDefault("resolve.max_results", 10)

	p := search.DefaultPolicy()
	v.SetDefault("search.provider", "brave")
	v.SetDefault("search.qualifier", "linkedin")
	v.SetDefault("search.brave_api_key", "")
	v.SetDefault("search.google_api_key", "")
	v.SetDefault("search.google_engine_id", "")
	v.SetDefault("search.attempts", p.Attempts)
	v.SetDefault("search.backoff", p.Backoff)
	v.SetDefault("search.timeout", p.Timeout)
	v.SetDefault("search.min_interval", p.MinInterval)
	v.SetDefault("search.jitter", p.Jitter)
	v.SetDefault("search.breaker_failures", p.BreakerFailures)
	v.SetDefault("search.breaker_cooldown", p.BreakerCooldown)
	v.SetDefault("search.cache_ttl", 30*24*time.Hour)

	v.SetDefault("face.comparator", "avatar")
	v.SetDefault("face.deepface_url", "http://localhost:5005")
	v.SetDefault("face.deepface_model", "VGG-Face")
	v.SetDefault("face.deepface_detector", "opencv")

	v.SetDefault("embedding.enabled", false)
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.api_key", "")

	v.SetDefault("linkedin.fetch_profiles", true)
	v.SetDefault("linkedin.browser_cookies", false)
	v.SetDefault("linkedin.fetch_interval", time.Second)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", 7*24*time.Hour)
	v.SetDefault("cache.dir", "")

	v.SetDefault("metrics.addr", "")

	w := similarity.DefaultWeights()
	v.SetDefault("weights.name", w.Name)
	v.SetDefault("weights.company_role", w.CompanyRole)
	v.SetDefault("weights.industry_size", w.IndustrySize)
	v.SetDefault("weights.location", w.Location)
	v.SetDefault("weights.social", w.Social)
}

// Validate checks enum values and ranges.
func (c *Config) Validate() error {
	var errs []error
	check := func(field, value string, allowed []string) {
		if !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Errorf("%s: %q is not one of %s", field, value, strings.Join(allowed, ", ")))
		}
	}
	check("search.provider", c.Search.Provider, Providers)
	check("resolve.strategy", c.Resolve.Strategy, Strategies)
	check("face.comparator", c.Face.Comparator, Comparators)
	check("log.format", c.Log.Format, LogFormats)

	if c.Resolve.K < 1 {
		errs = append(errs, fmt.Errorf("resolve.k: must be at least 1, got %d", c.Resolve.K))
	}
	if c.Resolve.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("resolve.concurrency: must be at least 1, got %d", c.Resolve.Concurrency))
	}
	if c.Resolve.MaxResults < 1 {
		errs = append(errs, fmt.Errorf("resolve.max_results: must be at least 1, got %d", c.Resolve.MaxResults))
	}
	if c.LinkedIn.FetchInterval < 0 {
		errs = append(errs, fmt.Errorf("linkedin.fetch_interval: must not be negative, got %s", c.LinkedIn.FetchInterval))
	}
	w := c.Weights
	if w.Name < 0 || w.CompanyRole < 0 || w.IndustrySize < 0 || w.Location < 0 || w.Social < 0 {
		errs = append(errs, errors.New("weights: must not be negative"))
	}
	return errors.Join(errs...)
}

// canonicalCookies restores the case of known cookie names, which viper lowercases.
func canonicalCookies(cookies map[string]string, known []string) map[string]string {
	if len(cookies) == 0 {
		return nil
	}
	out := make(map[string]string, len(cookies))
	for name, value := range cookies {
		for _, k := range known {
			if strings.EqualFold(name, k) {
				name = k
				break
			}
		}
		out[name] = value
	}
	return out
}

// Policy returns the search call policy.
func (c *Config) Policy() search.Policy {
	return search.Policy{
		Attempts:        c.Search.Attempts,
		Backoff:         c.Search.Backoff,
		Timeout:         c.Search.Timeout,
		MinInterval:     c.Search.MinInterval,
		Jitter:          c.Search.Jitter,
		BreakerFailures: c.Search.BreakerFailures,
		BreakerCooldown: c.Search.BreakerCooldown,
	}
}

// Tables builds the lookup tables with configured overrides merged in.
func (c *Config) Tables() *lookup.Tables {
	return lookup.New(c.Lookup)
}
