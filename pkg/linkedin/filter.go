// Package linkedin recognizes LinkedIn profile URLs and talks to the services
// that find and describe them.
package linkedin

import (
	"net/url"
	"strings"

	"github.com/codeGROOVE-dev/doppelganger/pkg/persona"
)

const domain = "linkedin.com"

// profileMarkers are the path prefixes that introduce a public profile slug.
var profileMarkers = []string{"/in/", "/pub/"}

// reservedSlugs follow a marker but are not profiles (/pub/dir/First/Last is a directory search).
var reservedSlugs = map[string]bool{"dir": true}

// Filter keeps hits whose URL looks like a profile on the target domain.
// The zero value is not usable; use NewFilter.
type Filter struct {
	domain  string
	markers []string
}

// NewFilter returns a filter for LinkedIn profile URLs.
func NewFilter() *Filter {
	return &Filter{domain: domain, markers: profileMarkers}
}

// NewFilterFor returns a filter for another site with the same /marker/slug shape.
func NewFilterFor(site string, markers ...string) *Filter {
	return &Filter{domain: strings.ToLower(site), markers: markers}
}

// Match returns true if the URL is a profile URL this filter accepts.
func (f *Filter) Match(rawURL string) bool {
	return f.Identifier(rawURL) != ""
}

// Identifier returns the lowercase profile slug for rawURL, or "" if the URL
// is not a profile on this filter's domain.
func (f *Filter) Identifier(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	if host != f.domain && !strings.HasSuffix(host, "."+f.domain) {
		return ""
	}

	path := strings.ToLower(u.EscapedPath())
	for _, marker := range f.markers {
		rest, ok := strings.CutPrefix(path, marker)
		if !ok {
			continue
		}
		slug, _, _ := strings.Cut(rest, "/")
		if strings.Contains(slug, "%") {
			if decoded, err := url.PathUnescape(slug); err == nil {
				slug = strings.ToLower(decoded)
			}
		}
		slug = strings.TrimSpace(slug)
		if slug == "" || reservedSlugs[slug] {
			return ""
		}
		return slug
	}
	return ""
}

// Filter converts raw hits from query q into candidates, dropping hits that are
// not profiles. Order is preserved; duplicates are left for the ranker.
func (f *Filter) Filter(hits []persona.RawHit, q persona.Query) []persona.Candidate {
	var out []persona.Candidate
	for _, h := range hits {
		id := f.Identifier(h.URL)
		if id == "" {
			continue
		}
		out = append(out, persona.Candidate{
			Identifier:  id,
			URL:         h.URL,
			Title:       h.Title,
			Snippet:     h.Snippet,
			ImageURL:    h.ImageURL,
			SourceQuery: q,
		})
	}
	return out
}

// NameFromIdentifier turns a profile slug into a display name ("john-doe" -> "John Doe").
func NameFromIdentifier(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[:1])) + strings.ToLower(string(r[1:]))
	}
	return strings.Join(words, " ")
}

// ProfileURL returns the canonical profile URL for a slug.
func ProfileURL(id string) string {
	return "https://www.linkedin.com/in/" + url.PathEscape(id)
}

// CandidateName is the display name of a candidate before its profile is fetched:
// the name part of the search title, else the slug spelled out.
func CandidateName(c persona.Candidate) string {
	if name := displayName(c.Title); name != "" {
		return name
	}
	return NameFromIdentifier(c.Identifier)
}
