package linkedin

import (
	"cmp"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/codeGROOVE-dev/doppelganger/pkg/persona"
)

const googleEndpoint = "https://www.googleapis.com/customsearch/v1"

// NewGoogleSearcher returns a WebSearcher for the Google Custom Search JSON API
// and the given engine (cx).
func NewGoogleSearcher(apiKey, engineID string, opts ...SearchOption) *WebSearcher {
	api := &googleAPI{endpoint: googleEndpoint, key: apiKey, cx: engineID}
	return newWebSearcher(api, engineID, opts)
}

// LoadGoogleCredentials reads GOOGLE_API_KEY and GOOGLE_CSE_ID. Missing values
// come from ~/.google-cse, which holds the key and then the engine ID.
func LoadGoogleCredentials() (apiKey, engineID string) {
	var fromFile [2]string
	copy(fromFile[:], dotfileFields(".google-cse"))
	return cmp.Or(os.Getenv("GOOGLE_API_KEY"), fromFile[0]), cmp.Or(os.Getenv("GOOGLE_CSE_ID"), fromFile[1])
}

type googleAPI struct {
	endpoint string
	key      string
	cx       string
}

func (*googleAPI) name() string { return "google" }

func (*googleAPI) limit() int { return 10 }

func (g *googleAPI) request(ctx context.Context, query string, n int) (*http.Request, error) {
	params := url.Values{
		"key": {g.key},
		"cx":  {g.cx},
		"q":   {query},
		"num": {strconv.Itoa(n)},
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), http.NoBody)
}

func (*googleAPI) parse(body []byte) ([]persona.RawHit, error) {
	var doc struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
			Pagemap struct {
				CSEImage []struct {
					Src string `json:"src"`
				} `json:"cse_image"`
				Metatags []map[string]string `json:"metatags"`
			} `json:"pagemap"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	hits := make([]persona.RawHit, len(doc.Items))
	for i, it := range doc.Items {
		hits[i] = persona.RawHit{Title: it.Title, URL: it.Link, Snippet: it.Snippet}
		switch {
		case len(it.Pagemap.CSEImage) > 0 && it.Pagemap.CSEImage[0].Src != "":
			hits[i].ImageURL = it.Pagemap.CSEImage[0].Src
		case len(it.Pagemap.Metatags) > 0:
			hits[i].ImageURL = it.Pagemap.Metatags[0]["og:image"]
		default:
		}
	}
	return hits, nil
}
