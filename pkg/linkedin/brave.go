package linkedin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/codeGROOVE-dev/doppelganger/pkg/persona"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// NewBraveSearcher returns a WebSearcher for the Brave Search API.
// The free tier allows one query per second.
func NewBraveSearcher(apiKey string, opts ...SearchOption) *WebSearcher {
	return newWebSearcher(&braveAPI{endpoint: braveEndpoint, key: apiKey}, "", opts)
}

// LoadBraveAPIKey returns BRAVE_API_KEY, or the first field of ~/.brave, or "".
func LoadBraveAPIKey() string {
	if key := os.Getenv("BRAVE_API_KEY"); key != "" {
		return key
	}
	if f := dotfileFields(".brave"); len(f) > 0 {
		return f[0]
	}
	return ""
}

type braveAPI struct {
	endpoint string
	key      string
}

func (*braveAPI) name() string { return "brave" }

func (*braveAPI) limit() int { return 20 }

func (b *braveAPI) request(ctx context.Context, query string, n int) (*http.Request, error) {
	params := url.Values{"q": {query}, "count": {strconv.Itoa(n)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Subscription-Token", b.key)
	return req, nil
}

func (*braveAPI) parse(body []byte) ([]persona.RawHit, error) {
	var doc struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
				Thumbnail   struct {
					Src string `json:"src"`
				} `json:"thumbnail"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	hits := make([]persona.RawHit, len(doc.Web.Results))
	for i, r := range doc.Web.Results {
		hits[i] = persona.RawHit{
			Title:    plainSnippet(r.Title),
			URL:      r.URL,
			Snippet:  plainSnippet(r.Description),
			ImageURL: r.Thumbnail.Src,
		}
	}
	return hits, nil
}
