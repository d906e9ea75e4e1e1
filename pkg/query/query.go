// Package query builds diversified search queries from a persona.
package query

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/codeGROOVE-dev/doppelganger/pkg/lookup"
	"github.com/codeGROOVE-dev/doppelganger/pkg/persona"
)

// Default phrasing for the professional network being searched.
const (
	DefaultQualifier = "linkedin"
	DefaultSite      = "site:linkedin.com/in/"
	DefaultSiteName  = "LinkedIn"
)

// Generator turns a persona into tiered search queries.
// It is safe for concurrent use.
type Generator struct {
	tables    *lookup.Tables
	qualifier string
	site      string
	siteName  string
}

// Option configures a Generator.
type Option func(*Generator)

// WithQualifier sets the word appended to loose queries ("linkedin").
func WithQualifier(q string) Option {
	return func(g *Generator) { g.qualifier = q }
}

// WithSite sets the site operator and display name used by fallback queries.
func WithSite(operator, name string) Option {
	return func(g *Generator) {
		g.site = operator
		g.siteName = name
	}
}

// New creates a Generator backed by the given tables.
func New(tables *lookup.Tables, opts ...Option) *Generator {
	if tables == nil {
		tables = lookup.Default()
	}
	g := &Generator{
		tables:    tables,
		qualifier: DefaultQualifier,
		site:      DefaultSite,
		siteName:  DefaultSiteName,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns every query for p: tier 0 first, then the fallback tiers.
// An empty name yields no queries.
func (g *Generator) Generate(p persona.Persona) []persona.Query {
	out := g.Comprehensive(p)
	out = append(out, g.Fallback(p, persona.TierNameContext)...)
	return append(out, g.Fallback(p, persona.TierNameOnly)...)
}

// Comprehensive returns the tier-0 queries for p, deduplicated in construction order.
func (g *Generator) Comprehensive(p persona.Persona) []persona.Query {
	name := clean(p.Name)
	if name == "" {
		return nil
	}

	b := newBuilder(persona.TierComprehensive)
	b.add(`"` + name + `"`)
	b.add(join(name, g.qualifier))

	professional := join(join(strings.Fields(p.JobTitle)...), clean(p.Company))
	if professional != "" {
		b.add(join(name, professional, g.qualifier))
	}

	metadata := join(clean(p.CompanyIndustry), g.tables.StripSizeUnits(p.CompanySize))
	if metadata != "" {
		b.add(join(name, metadata, g.qualifier))
	}

	if loc := g.location(p); loc != "" {
		b.add(join(name, loc, g.qualifier))
		if professional != "" {
			b.add(join(name, professional, loc))
		}
	}

	if tokens := g.socialTokens(p.SocialProfiles); len(tokens) > 0 {
		b.add(join(name, join(tokens...)))
	}

	if domain := registrableDomain(p.Website); domain != "" {
		b.add(join(name, domain))
	}

	return b.queries
}

// Fallback returns the exact and loose phrasings for tier 1 (full name) or
// tier 2 (first token of a multi-token name).
func (g *Generator) Fallback(p persona.Persona, tier persona.Tier) []persona.Query {
	name := clean(p.Name)
	if name == "" {
		return nil
	}

	var term string
	switch tier {
	case persona.TierNameContext:
		term = name
	case persona.TierNameOnly:
		fields := strings.Fields(name)
		if len(fields) < 2 {
			return nil
		}
		term = fields[0]
	default:
		return nil
	}

	b := newBuilder(tier)
	b.add(join(g.site, `"`+term+`"`))
	b.add(join(`"`+term+`"`, g.siteName))
	return b.queries
}

// location resolves the explicit location, with a trailing country code spelled
// out, then the timezone table.
func (g *Generator) location(p persona.Persona) string {
	if loc := clean(p.Location); loc != "" {
		return g.tables.StandardizeLocation(loc)
	}
	return g.tables.Region(p.Timezone)
}

func (g *Generator) socialTokens(profiles []string) []string {
	var tokens []string
	seen := make(map[string]bool)
	for _, raw := range profiles {
		tok := g.tables.SocialToken(host(raw))
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}
	return tokens
}

// host extracts the lowercase hostname of a URL, tolerating a missing scheme.
func host(raw string) string {
	raw = strings.TrimSpace(raw)
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
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// registrableDomain returns eTLD+1 for a website ("https://blog.acme.co.uk/x" -> "acme.co.uk").
func registrableDomain(website string) string {
	h := host(website)
	if h == "" || !strings.Contains(h, ".") {
		return ""
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(h)
	if err != nil {
		return ""
	}
	return d
}

type builder struct {
	seen    map[string]bool
	queries []persona.Query
	tier    persona.Tier
}

func newBuilder(tier persona.Tier) *builder {
	return &builder{tier: tier, seen: make(map[string]bool)}
}

func (b *builder) add(text string) {
	text = clean(text)
	if text == "" || b.seen[text] {
		return
	}
	b.seen[text] = true
	b.queries = append(b.queries, persona.Query{Text: text, Tier: b.tier})
}

// clean trims and collapses internal whitespace.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// join space-joins the non-empty parts.
func join(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = clean(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
