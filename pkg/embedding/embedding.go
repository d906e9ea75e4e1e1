// Package embedding provides text embeddings for the semantic similarity signal.
package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sashabaranov/go-openai"

	"github.com/codeGROOVE-dev/doppelganger/pkg/httpcache"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = openai.SmallEmbedding3

// OpenAI embeds texts with the OpenAI embeddings API or any compatible server.
type OpenAI struct {
	client *openai.Client
	cache  httpcache.Cacher
	logger *slog.Logger
	model  openai.EmbeddingModel
}

// Option configures an OpenAI embedder.
type Option func(*options)

type options struct {
	cache   httpcache.Cacher
	logger  *slog.Logger
	baseURL string
	model   string
}

// WithBaseURL points the client at a compatible server (e.g. "http://localhost:11434/v1").
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithModel overrides DefaultModel.
func WithModel(m string) Option {
	return func(o *options) { o.model = m }
}

// WithCache caches vectors by model and input text.
func WithCache(cache httpcache.Cacher) Option {
	return func(o *options) { o.cache = cache }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// NewOpenAI creates an embedder. An empty apiKey falls back to OPENAI_API_KEY.
func NewOpenAI(apiKey string, opts ...Option) (*OpenAI, error) {
	o := &options{logger: slog.Default(), model: string(DefaultModel)}
	for _, opt := range opts {
		opt(o)
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" && o.baseURL == "" {
		return nil, errors.New("openai embeddings: no API key (set OPENAI_API_KEY)")
	}

	cfg := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		cache:  o.cache,
		logger: o.logger,
		model:  openai.EmbeddingModel(o.model),
	}, nil
}

// Embed returns one vector per text, in input order.
func (e *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.cache == nil {
		return e.embed(ctx, texts)
	}

	parts := append([]string{string(e.model)}, texts...)
	data, err := e.cache.GetSet(ctx, httpcache.Key("embed", parts...), func(ctx context.Context) ([]byte, error) {
		vecs, err := e.embed(ctx, texts)
		if err != nil {
			return nil, err
		}
		return json.Marshal(vecs)
	}, e.cache.TTL())
	if err != nil {
		return nil, err
	}
	var vecs [][]float32
	if err := json.Unmarshal(data, &vecs); err != nil {
		return nil, fmt.Errorf("decode cached embeddings: %w", err)
	}
	return vecs, nil
}

func (e *OpenAI) embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.DebugContext(ctx, "creating embeddings", "model", e.model, "inputs", len(texts))

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("create embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("create embeddings: index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
