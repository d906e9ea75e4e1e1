// Package deepface is a FaceComparator backed by a DeepFace API server
// (https://github.com/serengil/deepface, "deepface api").
package deepface

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/codeGROOVE-dev/doppelganger/pkg/httpcache"
	"github.com/codeGROOVE-dev/doppelganger/pkg/persona"
)

// DefaultURL is where `deepface api` listens by default.
const DefaultURL = "http://localhost:5005"

// Client calls the /verify endpoint.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	model      string
	detector   string
}

// Option configures a Client.
type Option func(*Client)

// WithModel selects the recognition model (default "VGG-Face").
func WithModel(m string) Option {
	return func(c *Client) { c.model = m }
}

// WithDetector selects the face detector backend (default "opencv").
func WithDetector(d string) Option {
	return func(c *Client) { c.detector = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the server at baseURL (DefaultURL when empty).
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     slog.Default(),
		model:      "VGG-Face",
		detector:   "opencv",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type verifyRequest struct {
	Img1             string `json:"img1"`
	Img2             string `json:"img2"`
	Img1Path         string `json:"img1_path"` // pre-0.0.90 servers
	Img2Path         string `json:"img2_path"`
	ModelName        string `json:"model_name"`
	DetectorBackend  string `json:"detector_backend"`
	DistanceMetric   string `json:"distance_metric"`
	EnforceDetection bool   `json:"enforce_detection"`
}

type verifyResponse struct {
	Verified bool     `json:"verified"`
	Distance *float64 `json:"distance"`
	Error    string   `json:"error"`
}

// Compare returns the cosine distance between the faces in a and b, in [0, 2],
// or nil when either image has no detectable face.
func (c *Client) Compare(ctx context.Context, a, b string) (*float64, error) {
	if a == "" || b == "" {
		return nil, nil //nolint:nilnil // nothing to compare
	}
	img1, err := imageArg(a)
	if err != nil {
		return nil, err
	}
	img2, err := imageArg(b)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(verifyRequest{
		Img1: img1, Img2: img2, Img1Path: img1, Img2Path: img2,
		ModelName:        c.model,
		DetectorBackend:  c.detector,
		DistanceMetric:   "cosine",
		EnforceDetection: true,
	})
	if err != nil {
		return nil, fmt.Errorf("encode verify request: %w", err)
	}

	resp, err := retry.DoWithData(
		func() (*verifyResponse, error) { return c.verify(ctx, body) },
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(httpcache.IsRetryable),
	)
	if err == nil && resp.Distance == nil {
		err = persona.ErrNoFace
	}
	if errors.Is(err, persona.ErrNoFace) {
		c.logger.DebugContext(ctx, "no comparable face", "a", a, "b", b)
		return nil, nil //nolint:nilnil // no face is a null distance
	}
	if err != nil {
		return nil, err
	}
	d := min(max(*resp.Distance, 0), 2)
	c.logger.DebugContext(ctx, "face compared", "distance", d, "verified", resp.Verified)
	return &d, nil
}

// verify returns persona.ErrNoFace when the server could not detect a face.
func (c *Client) verify(ctx context.Context, body []byte) (*verifyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepface verify: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best effort cleanup

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read verify response: %w", err)
	}

	var vr verifyResponse
	jsonErr := json.Unmarshal(data, &vr)
	if resp.StatusCode != http.StatusOK {
		if noFace(vr.Error) || noFace(string(data)) {
			return nil, persona.ErrNoFace
		}
		return nil, fmt.Errorf("deepface verify: %w: %s", &httpcache.HTTPError{URL: c.baseURL + "/verify", StatusCode: resp.StatusCode}, strings.TrimSpace(string(data)))
	}
	if jsonErr != nil {
		return nil, fmt.Errorf("decode verify response: %w", jsonErr)
	}
	return &vr, nil
}

func noFace(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "face could not be detected") || strings.Contains(msg, "no face")
}

// imageArg passes URLs through and inlines local files as base64 data URIs.
func imageArg(ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "data:") {
		return ref, nil
	}
	data, err := os.ReadFile(strings.TrimPrefix(ref, "file://"))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	mime := http.DetectContentType(data)
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
