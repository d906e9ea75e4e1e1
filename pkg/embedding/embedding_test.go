package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/doppelganger/pkg/httpcache"
)

func newServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %q, want /v1/embeddings", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "text-embedding-3-small" {
			t.Errorf("model = %q", req.Model)
		}
		// Reply out of order to check reassembly by index.
		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(i), float32(len(req.Input[i]))},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
		}); err != nil {
			t.Errorf("encode: %v", err)
		}
	}))
}

func TestOpenAIEmbed(t *testing.T) {
	var calls atomic.Int32
	server := newServer(t, &calls)
	defer server.Close()

	e, err := NewOpenAI("test-key", WithBaseURL(server.URL+"/v1"))
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}
	got, err := e.Embed(context.Background(), []string{"ab", "abcd"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	want := [][]float32{{0, 2}, {1, 4}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Embed() mismatch (-want +got):\n%s", diff)
	}

	if got, err := e.Embed(context.Background(), nil); err != nil || got != nil {
		t.Errorf("Embed(nil) = %v, %v; want nil, nil", got, err)
	}
}

func TestOpenAIEmbedCached(t *testing.T) {
	var calls atomic.Int32
	server := newServer(t, &calls)
	defer server.Close()

	cache, err := httpcache.NewWithPath(time.Hour, t.TempDir())
	if err != nil {
		t.Fatalf("NewWithPath() error = %v", err)
	}
	defer cache.Close() //nolint:errcheck // test cleanup

	e, err := NewOpenAI("test-key", WithBaseURL(server.URL+"/v1"), WithCache(cache))
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}
	for range 3 {
		got, err := e.Embed(context.Background(), []string{"same text"})
		if err != nil {
			t.Fatalf("Embed() error = %v", err)
		}
		if diff := cmp.Diff([][]float32{{0, 9}}, got); diff != "" {
			t.Errorf("Embed() mismatch (-want +got):\n%s", diff)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times, want 1", got)
	}
}

func TestOpenAIServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		if _, err := w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`)); err != nil {
			t.Logf("write error: %v", err)
		}
	}))
	defer server.Close()

	e, err := NewOpenAI("test-key", WithBaseURL(server.URL+"/v1"))
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}
	if _, err := e.Embed(context.Background(), []string{"x"}); err == nil {
		t.Error("Embed() error = nil, want error")
	}
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewOpenAI(""); err == nil {
		t.Error("NewOpenAI() error = nil, want missing key error")
	}
}
