// Package doppelganger resolves a persona to its most likely professional-network
// profiles.
//
// Basic usage:
//
//	src := search.NewResilient(linkedin.NewBraveSearcher(key), search.DefaultPolicy())
//	r, err := doppelganger.New(doppelganger.WithSource(src))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	matches, err := r.Resolve(ctx, persona.Persona{Name: "Jane Doe"}, 3)
//
// A FaceComparator and ProfileFetcher are optional; without them every match is
// capped at the text-only confidence ceiling.
package doppelganger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/doppelganger/pkg/fusion"
	"github.com/codeGROOVE-dev/doppelganger/pkg/linkedin"
	"github.com/codeGROOVE-dev/doppelganger/pkg/lookup"
	"github.com/codeGROOVE-dev/doppelganger/pkg/metrics"
	"github.com/codeGROOVE-dev/doppelganger/pkg/persona"
	"github.com/codeGROOVE-dev/doppelganger/pkg/query"
	"github.com/codeGROOVE-dev/doppelganger/pkg/rank"
	"github.com/codeGROOVE-dev/doppelganger/pkg/search"
	"github.com/codeGROOVE-dev/doppelganger/pkg/similarity"
)

// DefaultMaxResults is how many hits each query asks the source for.
const DefaultMaxResults = 10

// ErrNoSource is returned by New when no candidate source was configured.
var ErrNoSource = errors.New("no candidate source configured")

// FaceComparator measures how alike the faces in two images are.
// A nil distance means no comparable face was found in at least one image;
// that is not an error.
type FaceComparator interface {
	Compare(ctx context.Context, a, b string) (*float64, error)
}

// ProfileFetcher resolves a candidate URL to a display name and photo.
// A nil profile means the page does not exist.
type ProfileFetcher interface {
	Fetch(ctx context.Context, url string) (*persona.Profile, error)
}

// CandidateFilter turns raw hits into profile candidates.
type CandidateFilter interface {
	Filter(hits []persona.RawHit, q persona.Query) []persona.Candidate
}

// Strategy selects how candidates are scored.
type Strategy string

// Scoring strategies.
const (
	StrategyProfile Strategy = "profile" // name compared against the profile's display name
	StrategySnippet Strategy = "snippet" // name and fields compared against search title/snippet
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyProfile, StrategySnippet:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown strategy %q (want %s or %s)", s, StrategyProfile, StrategySnippet)
	}
}

// Resolver runs the resolution pipeline. It is safe for concurrent use as long as
// its collaborators are.
type Resolver struct {
	source     search.Source
	faces      FaceComparator
	profiles   ProfileFetcher
	filter     CandidateFilter
	embedder   similarity.Embedder
	tables     *lookup.Tables
	logger     *slog.Logger
	metrics    *metrics.Metrics
	queries    *query.Generator
	scorer     *similarity.Scorer
	weights    similarity.Weights
	qualifier  string
	strategy   Strategy
	maxResults int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSource sets the candidate source. Required.
func WithSource(src search.Source) Option {
	return func(r *Resolver) { r.source = src }
}

// WithFaceComparator enables face comparison for shortlisted candidates.
func WithFaceComparator(fc FaceComparator) Option {
	return func(r *Resolver) { r.faces = fc }
}

// WithProfileFetcher enables fetching shortlisted profiles for name and photo.
func WithProfileFetcher(pf ProfileFetcher) Option {
	return func(r *Resolver) { r.profiles = pf }
}

// WithFilter replaces the LinkedIn profile URL filter.
func WithFilter(f CandidateFilter) Option {
	return func(r *Resolver) { r.filter = f }
}

// WithEmbedder adds the semantic signal to snippet scoring.
func WithEmbedder(e similarity.Embedder) Option {
	return func(r *Resolver) { r.embedder = e }
}

// WithStrategy sets the scoring strategy. Default StrategyProfile.
func WithStrategy(s Strategy) Option {
	return func(r *Resolver) { r.strategy = s }
}

// WithTables sets the lookup tables shared by query generation and scoring.
func WithTables(t *lookup.Tables) Option {
	return func(r *Resolver) { r.tables = t }
}

// WithWeights overrides the profile-path signal weights.
func WithWeights(w similarity.Weights) Option {
	return func(r *Resolver) { r.weights = w }
}

// WithQualifier sets the word appended to loose queries.
func WithQualifier(q string) Option {
	return func(r *Resolver) { r.qualifier = q }
}

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithMetrics records pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithMaxResults sets how many hits each query asks for.
func WithMaxResults(n int) Option {
	return func(r *Resolver) { r.maxResults = n }
}

// New creates a Resolver.
func New(opts ...Option) (*Resolver, error) {
	r := &Resolver{
		filter:     linkedin.NewFilter(),
		logger:     slog.Default(),
		weights:    similarity.DefaultWeights(),
		qualifier:  query.DefaultQualifier,
		strategy:   StrategyProfile,
		maxResults: DefaultMaxResults,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.source == nil {
		return nil, ErrNoSource
	}
	if _, err := ParseStrategy(string(r.strategy)); err != nil {
		return nil, err
	}
	if r.tables == nil {
		r.tables = lookup.Default()
	}
	if r.maxResults < 1 {
		r.maxResults = DefaultMaxResults
	}

	r.queries = query.New(r.tables, query.WithQualifier(r.qualifier))
	scorerOpts := []similarity.Option{similarity.WithWeights(r.weights), similarity.WithLogger(r.logger)}
	if r.embedder != nil {
		scorerOpts = append(scorerOpts, similarity.WithEmbedder(r.embedder))
	}
	r.scorer = similarity.New(r.tables, scorerOpts...)
	return r, nil
}

// Queries returns the queries Resolve would issue for p, tier 0 first.
func (r *Resolver) Queries(p persona.Persona) []persona.Query {
	return r.queries.Generate(p)
}

// Resolve returns up to k matches for p, best first. k <= 0 means rank.DefaultK.
//
// Search, fetch, and face comparison failures only reduce what is found; the
// returned error is non-nil only when ctx is done.
func (r *Resolver) Resolve(ctx context.Context, p persona.Persona, k int) ([]persona.MatchResult, error) {
	if k <= 0 {
		k = rank.DefaultK
	}
	if !p.HasName() {
		r.logger.InfoContext(ctx, "skipping persona without a name")
		r.metrics.Resolved(0, 0)
		return []persona.MatchResult{}, nil
	}

	logger := r.logger.With("run_id", uuid.NewString(), "persona", p.Name)
	logger.InfoContext(ctx, "resolving persona", "k", k, "strategy", string(r.strategy))

	cands, err := r.collect(ctx, logger, p)
	if err != nil {
		return nil, err
	}

	scored := make([]persona.MatchResult, 0, len(cands))
	for _, c := range cands {
		scored = append(scored, r.score(ctx, p, c, ""))
	}

	shortlist := rank.Shortlist(scored, k)
	verified := make([]persona.MatchResult, 0, len(shortlist))
	for _, m := range shortlist {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		verified = append(verified, r.verify(ctx, logger, p, m))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := rank.Rank(verified, k)
	var top float64
	if len(out) > 0 {
		top = out[0].RealConfidence
	}
	r.metrics.Resolved(len(out), top)
	logger.InfoContext(ctx, "resolved persona", "candidates", len(cands), "matches", len(out), "top_confidence", top)
	return out, nil
}

// ResolveAll resolves personas with at most concurrency in flight. Results are
// in input order.
func (r *Resolver) ResolveAll(ctx context.Context, personas []persona.Persona, k, concurrency int) ([][]persona.MatchResult, error) {
	out := make([][]persona.MatchResult, len(personas))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i, p := range personas {
		g.Go(func() error {
			matches, err := r.Resolve(ctx, p, k)
			if err != nil {
				return err
			}
			out[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// collect runs the tier-0 queries and, only if they found nothing, the fallback
// tiers. Queries run one at a time; the source paces them.
func (r *Resolver) collect(ctx context.Context, logger *slog.Logger, p persona.Persona) ([]persona.Candidate, error) {
	var cands []persona.Candidate
	for _, q := range r.queries.Comprehensive(p) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cands = append(cands, r.search(ctx, logger, q, r.maxResults)...)
	}
	cands = rank.DedupCandidates(cands)
	if len(cands) > 0 {
		return cands, nil
	}

	logger.InfoContext(ctx, "no candidates from comprehensive queries, falling back")
	for _, tier := range []persona.Tier{persona.TierNameContext, persona.TierNameOnly} {
		for _, q := range r.queries.Fallback(p, tier) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			missing := r.maxResults - len(cands)
			if missing <= 0 {
				return cands, nil
			}
			cands = rank.DedupCandidates(append(cands, r.search(ctx, logger, q, missing)...))
		}
	}
	return cands, nil
}

// search runs one query and filters its hits. Failures yield no candidates.
func (r *Resolver) search(ctx context.Context, logger *slog.Logger, q persona.Query, n int) []persona.Candidate {
	r.metrics.QueryIssued(q.Tier.String())
	hits, err := r.source.Search(ctx, q.Text, n)
	if err != nil {
		logger.WarnContext(ctx, "search failed", "query", q.Text, "tier", q.Tier.String(), "error", err)
		return nil
	}
	found := r.filter.Filter(hits, q)
	r.metrics.Candidates(len(found), len(hits)-len(found))
	logger.DebugContext(ctx, "search finished", "query", q.Text, "tier", q.Tier.String(), "hits", len(hits), "candidates", len(found))
	return found
}

// score computes the textual score for c and fuses it with no face signal.
// An empty name falls back to the name in the search title or slug.
func (r *Resolver) score(ctx context.Context, p persona.Persona, c persona.Candidate, name string) persona.MatchResult {
	var (
		textual   float64
		breakdown persona.ScoreBreakdown
	)
	if name == "" {
		name = linkedin.CandidateName(c)
	}
	switch r.strategy {
	case StrategySnippet:
		textual, breakdown = r.scorer.SnippetScore(ctx, p, c)
	default:
		textual, breakdown = r.scorer.ProfileScore(p, c, name)
	}
	return persona.MatchResult{
		Candidate:      c,
		TextualScore:   textual,
		Breakdown:      breakdown,
		RealConfidence: fusion.Fuse(textual, nil),
		Name:           name,
	}
}

// verify fetches the profile behind a shortlisted match, compares faces, and
// fuses the final confidence.
func (r *Resolver) verify(ctx context.Context, logger *slog.Logger, p persona.Persona, m persona.MatchResult) persona.MatchResult {
	image := m.Candidate.ImageURL
	if r.profiles != nil {
		prof, err := r.profiles.Fetch(ctx, m.Candidate.URL)
		switch {
		case err != nil:
			logger.DebugContext(ctx, "profile fetch failed", "url", m.Candidate.URL, "error", err)
		case prof == nil:
			logger.DebugContext(ctx, "profile not found", "url", m.Candidate.URL)
		default:
			if prof.ImageURL != "" {
				image = prof.ImageURL
			}
			if prof.Name != "" && r.strategy == StrategyProfile {
				m = r.score(ctx, p, m.Candidate, prof.Name)
			}
		}
	}

	var distance *float64
	if ref := p.Image(); r.faces != nil && ref != "" && image != "" {
		d, err := r.faces.Compare(ctx, ref, image)
		if err != nil {
			logger.DebugContext(ctx, "face comparison failed", "url", m.Candidate.URL, "error", err)
		} else {
			distance = d
		}
		r.metrics.FaceCompared(fusion.Outcome(distance))
	}

	m.FaceDistance = distance
	m.RealConfidence = fusion.Fuse(m.TextualScore, distance)
	return m
}
