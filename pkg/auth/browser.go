package auth

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all" // register every supported cookie store
	"github.com/browserutils/kooky/browser/firefox"
)

// Browser reads cookies from local browser stores. Firefox-family profiles that
// kooky does not discover on its own (Zen, Developer Edition) are checked first.
// Unreadable stores are logged and treated as empty.
func Browser(logger *slog.Logger) Source {
	if logger == nil {
		logger = slog.Default()
	}
	b := &browser{logger: logger, home: os.Getenv("HOME")}
	return Source{Name: "browser", Lookup: b.lookup}
}

type browser struct {
	logger *slog.Logger
	home   string
}

func (b *browser) lookup(ctx context.Context, site Site) (map[string]string, error) {
	for _, store := range b.extraStores() {
		found, err := firefox.ReadCookies(ctx, store, kooky.Valid, kooky.DomainHasSuffix(site.Domain))
		if err != nil {
			b.logger.DebugContext(ctx, "skipping cookie store", "store", store, "error", err)
			continue
		}
		if len(found) > 0 {
			b.logger.DebugContext(ctx, "using cookie store", "store", store, "count", len(found))
			return keep(found, site.Essential), nil
		}
	}

	found, err := kooky.ReadCookies(ctx, kooky.Valid, kooky.DomainHasSuffix(site.Domain))
	if err != nil {
		b.logger.DebugContext(ctx, "browser cookie read failed", "domain", site.Domain, "error", err)
		return nil, nil //nolint:nilnil // unreadable stores mean no cookies
	}
	return keep(found, site.Essential), nil
}

// extraStores lists cookies.sqlite files under Firefox-family profile roots.
func (b *browser) extraStores() []string {
	if b.home == "" {
		return nil
	}
	appSupport := filepath.Join(b.home, "Library", "Application Support")
	roots := []string{
		filepath.Join(appSupport, "zen", "Profiles"),
		filepath.Join(appSupport, "Firefox", "Profiles"),
		filepath.Join(b.home, ".mozilla", "firefox"),
	}
	var stores []string
	for _, root := range roots {
		matches, err := filepath.Glob(filepath.Join(root, "*", "cookies.sqlite"))
		if err == nil {
			stores = append(stores, matches...)
		}
	}
	return stores
}

// keep returns the named cookies, or every cookie when names is empty.
func keep(cookies []*kooky.Cookie, names []string) map[string]string {
	out := make(map[string]string)
	for _, c := range cookies {
		if len(names) == 0 || slices.Contains(names, c.Name) {
			out[c.Name] = c.Value
		}
	}
	return out
}
