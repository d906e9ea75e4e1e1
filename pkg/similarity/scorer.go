// Package similarity scores how well a search candidate matches a persona.
//
// Two scoring paths exist. The profile path compares the persona against a
// resolved display name plus weighted neutral signals; the snippet path works
// directly off search titles and snippets. Both composites are capped at
// CompositeCap: text alone never yields certainty.
package similarity

import (
	"context"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/codeGROOVE-dev/doppelganger/pkg/lookup"
	"github.com/codeGROOVE-dev/doppelganger/pkg/persona"
)

// CompositeCap bounds every textual composite.
const CompositeCap = 0.9

// Sub-scores for signals without a real comparison yet. Candidates carry no
// industry, location, or social data to compare against.
const (
	neutralCompanyRole = 0.5
	keywordStep        = 0.1
	neutralIndustry    = 0.6
	neutralLocation    = 0.5
	neutralSocial      = 0.5
)

// Snippet path mix.
const (
	snippetName     = 0.8
	snippetOverlap  = 0.2
	semanticOverlap = 0.1 // overlap share when a semantic signal is present
	semanticShare   = 0.1
)

// Weights are the profile-path signal weights. They intentionally sum above 1.
type Weights struct {
	Name         float64 `mapstructure:"name"`
	CompanyRole  float64 `mapstructure:"company_role"`
	IndustrySize float64 `mapstructure:"industry_size"`
	Location     float64 `mapstructure:"location"`
	Social       float64 `mapstructure:"social"`
}

// DefaultWeights returns the reference weights.
func DefaultWeights() Weights {
	return Weights{Name: 0.5, CompanyRole: 0.2, IndustrySize: 0.15, Location: 0.3, Social: 0.05}
}

// Embedder turns texts into vectors. Implementations return one vector per input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Scorer computes textual scores. It is safe for concurrent use.
type Scorer struct {
	tables   *lookup.Tables
	embedder Embedder
	logger   *slog.Logger
	weights  Weights
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithWeights overrides DefaultWeights.
func WithWeights(w Weights) Option {
	return func(s *Scorer) { s.weights = w }
}

// WithEmbedder adds a semantic signal to the snippet path.
func WithEmbedder(e Embedder) Option {
	return func(s *Scorer) { s.embedder = e }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) { s.logger = logger }
}

// New creates a Scorer. A nil tables uses lookup.Default().
func New(tables *lookup.Tables, opts ...Option) *Scorer {
	if tables == nil {
		tables = lookup.Default()
	}
	s := &Scorer{tables: tables, weights: DefaultWeights(), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns NameSimilarity using the scorer's nickname table.
func (s *Scorer) Name(a, b string) float64 {
	return NameSimilarity(s.tables, a, b)
}

// ProfileScore scores a candidate whose display name is known.
func (s *Scorer) ProfileScore(p persona.Persona, c persona.Candidate, name string) (float64, persona.ScoreBreakdown) {
	w := s.weights
	b := persona.ScoreBreakdown{
		persona.SignalName:         s.Name(p.Name, name) * w.Name,
		persona.SignalCompanyRole:  s.companyRole(p, c) * w.CompanyRole,
		persona.SignalIndustrySize: neutralIndustry * w.IndustrySize,
		persona.SignalLocation:     neutralLocation * w.Location,
		persona.SignalSocial:       neutralSocial * w.Social,
	}
	return min(b.Sum(), CompositeCap), b
}

var wordPattern = regexp.MustCompile(`\b\w{4,}\b`)

// companyRole starts neutral and rises per intro keyword found in the candidate text.
func (s *Scorer) companyRole(p persona.Persona, c persona.Candidate) float64 {
	keywords := s.introKeywords(p)
	if len(keywords) == 0 {
		return neutralCompanyRole
	}
	text := strings.ToLower(c.Text())
	matches := 0
	for _, k := range keywords {
		if strings.Contains(text, k) {
			matches++
		}
	}
	return min(neutralCompanyRole+float64(matches)*keywordStep, 1)
}

// introKeywords returns the unique 4+ letter words of the persona's intro, plus any
// configured title keyword appearing in the job title.
func (s *Scorer) introKeywords(p persona.Persona) []string {
	var out []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(p.IntroText()), -1) {
		if !slices.Contains(out, w) {
			out = append(out, w)
		}
	}
	title := strings.Fields(strings.ToLower(p.JobTitle))
	for _, k := range s.tables.Keywords() {
		if slices.Contains(title, k) && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

// SnippetScore scores a candidate from its search title and snippet as
// 0.8*name + 0.2*overlap. With an embedder that answers, the overlap share drops
// to 0.1 and semantic similarity takes the other 0.1.
func (s *Scorer) SnippetScore(ctx context.Context, p persona.Persona, c persona.Candidate) (float64, persona.ScoreBreakdown) {
	text := strings.ToLower(c.Title + " " + c.Snippet)
	name := normalize(p.Name)

	var nameScore float64
	if name != "" {
		nameScore = 1
		for _, part := range strings.Fields(name) {
			if !strings.Contains(text, part) {
				nameScore = PartialRatio(name, text)
				break
			}
		}
	}

	fields := snippetFields(p)
	var overlap float64
	if fields != "" {
		overlap = TokenSetRatio(fields, text)
	}

	b := persona.ScoreBreakdown{
		persona.SignalName:         snippetName * nameScore,
		persona.SignalFieldOverlap: snippetOverlap * overlap,
	}
	if sem, ok := s.semantic(ctx, p, c); ok {
		b[persona.SignalFieldOverlap] = semanticOverlap * overlap
		b[persona.SignalSemantic] = semanticShare * sem
	}
	return min(b.Sum(), CompositeCap), b
}

// snippetFields joins job title, company, and the last segment of the location
// ("America/New_York" becomes "New York").
func snippetFields(p persona.Persona) string {
	loc := p.Location
	if i := strings.LastIndex(loc, "/"); i >= 0 {
		loc = loc[i+1:]
	}
	loc = strings.ReplaceAll(loc, "_", " ")
	return strings.ToLower(strings.Join(strings.Fields(p.JobTitle+" "+p.Company+" "+loc), " "))
}

// semantic returns the cosine similarity of persona and candidate embeddings,
// clamped to [0, 1]. Embedding failures drop the signal.
func (s *Scorer) semantic(ctx context.Context, p persona.Persona, c persona.Candidate) (float64, bool) {
	if s.embedder == nil {
		return 0, false
	}
	query := strings.Join(strings.Fields(p.Name+" "+p.JobTitle+" "+p.Company+" "+p.Location), " ")
	doc := strings.TrimSpace(c.Title + " " + c.Snippet)
	if doc == "" {
		return 0, false
	}
	vecs, err := s.embedder.Embed(ctx, []string{query, doc})
	if err != nil || len(vecs) != 2 {
		s.logger.DebugContext(ctx, "embedding failed; skipping semantic signal", "candidate", c.Identifier, "error", err)
		return 0, false
	}
	return max(Cosine(vecs[0], vecs[1]), 0), true
}
