package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codeGROOVE-dev/doppelganger/pkg/config"
)

// app carries state shared by subcommands once the root has loaded config.
type app struct {
	v       *viper.Viper
	cfg     *config.Config
	logger  *slog.Logger
	cfgFile string
	debug   bool
	noCache bool
}

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"log-format":      "log.format",
	"k":               "resolve.k",
	"strategy":        "resolve.strategy",
	"max-results":     "resolve.max_results",
	"provider":        "search.provider",
	"face":            "face.comparator",
	"deepface-url":    "face.deepface_url",
	"embeddings":      "embedding.enabled",
	"fetch-profiles":  "linkedin.fetch_profiles",
	"browser-cookies": "linkedin.browser_cookies",
	"cache-ttl":       "cache.ttl",
	"metrics-addr":    "metrics.addr",
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "doppelganger",
		Short: "Resolve personas to professional-network profiles",
		Long: `doppelganger searches the web for a persona's professional-network profile,
scores each candidate against the persona, optionally compares profile photos,
and prints the best matches with a bounded confidence.

Configuration comes from --config, DOPPELGANGER_* environment variables, and flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.cfgFile, "config", "", "config file (yaml, json, or toml)")
	f.BoolVar(&a.debug, "debug", false, "enable debug logging")
	f.BoolVar(&a.noCache, "no-cache", false, "disable HTTP caching")
	f.String("log-format", "text", "log format (text, json)")
	f.Int("k", 3, "matches to keep per persona")
	f.String("strategy", "profile", "scoring strategy (profile, snippet)")
	f.Int("max-results", 10, "search hits requested per query")
	f.String("provider", "brave", "search provider (brave, google)")
	f.String("face", "avatar", "face comparator (avatar, deepface, none)")
	f.String("deepface-url", "http://localhost:5005", "DeepFace service URL")
	f.Bool("embeddings", false, "add OpenAI embedding similarity to snippet scoring")
	f.Bool("fetch-profiles", true, "fetch shortlisted profiles for name and photo")
	f.Bool("browser-cookies", false, "read LinkedIn session cookies from local browsers")
	f.Duration("cache-ttl", 7*24*time.Hour, "cache time-to-live")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")

	for name, key := range flagKeys {
		if err := a.v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}

	root.AddCommand(newResolveCmd(a), newQueriesCmd(a))
	return root
}

func (a *app) init(w io.Writer) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	if a.noCache {
		cfg.Cache.Enabled = false
	}
	a.cfg = cfg
	a.logger = newLogger(w, cfg.Log, a.debug)
	return nil
}

func newLogger(w io.Writer, lc config.LogConfig, debug bool) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		level = slog.LevelInfo
	}
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
