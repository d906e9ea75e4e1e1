// Package avatar compares profile photos by perceptual hash. It is a cheap
// FaceComparator: it detects the same photo reused across sites, not the same face.
package avatar

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/gif"  // GIF support
	_ "image/jpeg" // JPEG support
	_ "image/png"  // PNG support
	"log/slog"
	"math/bits"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/corona10/goimagehash"

	"github.com/codeGROOVE-dev/doppelganger/pkg/httpcache"
)

// MaxDistance is the distance reported for two completely different hashes.
const MaxDistance = 2.0

// Comparator computes a face distance in [0, MaxDistance] from two image references
// (http(s) URLs or local file paths).
type Comparator struct {
	cache  httpcache.Cacher
	client *http.Client
	logger *slog.Logger
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithCache caches both image bytes and computed hashes.
func WithCache(cache httpcache.Cacher) Option {
	return func(c *Comparator) { c.cache = cache }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Comparator) { c.logger = logger }
}

// WithHTTPClient replaces the HTTP client used for image downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Comparator) { c.client = client }
}

// New creates a Comparator.
func New(opts ...Option) *Comparator {
	c := &Comparator{client: http.DefaultClient, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compare returns the scaled hamming distance between the two images' difference
// hashes, or nil when either image is missing, a placeholder, or cannot be decoded.
func (c *Comparator) Compare(ctx context.Context, a, b string) (*float64, error) {
	ha, ok := c.Hash(ctx, a)
	if !ok {
		return nil, nil //nolint:nilnil // no comparable image
	}
	hb, ok := c.Hash(ctx, b)
	if !ok {
		return nil, nil //nolint:nilnil // no comparable image
	}
	d := float64(Distance(ha, hb)) / 32
	return &d, nil
}

// Hash loads an image and computes its difference hash.
func (c *Comparator) Hash(ctx context.Context, ref string) (uint64, bool) {
	if ref == "" || isDefaultAvatar(ref) {
		return 0, false
	}
	if c.cache == nil {
		return c.computeHash(ctx, ref)
	}

	data, err := c.cache.GetSet(ctx, httpcache.Key("avhash", ref), func(ctx context.Context) ([]byte, error) {
		h, ok := c.computeHash(ctx, ref)
		if !ok {
			return []byte{}, nil
		}
		return binary.LittleEndian.AppendUint64(nil, h), nil
	}, c.cache.TTL())
	if err != nil || len(data) != 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(data), true
}

func (c *Comparator) computeHash(ctx context.Context, ref string) (uint64, bool) {
	body, err := c.load(ctx, ref)
	if err != nil {
		c.logger.DebugContext(ctx, "avatar fetch failed", "ref", ref, "error", err)
		return 0, false
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		c.logger.DebugContext(ctx, "avatar decode failed", "ref", ref, "error", err)
		return 0, false
	}

	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		c.logger.DebugContext(ctx, "avatar hash failed", "ref", ref, "error", err)
		return 0, false
	}
	return hash.GetHash(), true
}

func (c *Comparator) load(ctx context.Context, ref string) ([]byte, error) {
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		return os.ReadFile(strings.TrimPrefix(ref, "file://"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", httpcache.UserAgent)
	req.Header.Set("Accept", "image/webp,image/png,image/jpeg,image/gif,*/*")
	return httpcache.Fetch(ctx, c.client, req,
		httpcache.WithCache(c.cache),
		httpcache.WithLogger(c.logger),
		httpcache.WithTimeout(5*time.Second),
	)
}

// Distance returns the hamming distance between two hashes.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// isDefaultAvatar returns true for URLs that are likely default/generated avatars.
// Only the path is checked: Gravatar's d= parameter is a fallback, not the image itself.
func isDefaultAvatar(ref string) bool {
	path, _, _ := strings.Cut(strings.ToLower(ref), "?")
	return strings.Contains(path, "identicon") ||
		strings.Contains(path, "default") ||
		strings.Contains(path, "placeholder") ||
		strings.Contains(path, "ghost-person") ||
		strings.Contains(path, "/aero-v1/sc/h/") // LinkedIn's static silhouette images
}
