package similarity

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/codeGROOVE-dev/doppelganger/pkg/lookup"
	"github.com/codeGROOVE-dev/doppelganger/pkg/persona"
)

const eps = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) < eps }

func TestNameSimilarity(t *testing.T) {
	tables := lookup.Default()
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"exact", "Robert Smith", "robert  smith", NameExact},
		{"containment", "Robert Smith", "Robert Smith PhD", NameContainment},
		{"nickname", "Robert Smith", "Bob Smith", NameNickname},
		{"nickname_reverse_group_member", "Mick Jones", "Michael Jones", NameNickname},
		{"empty", "", "Bob", 0},
		{"ratio", "jane doe", "jane dot", 1 - 1.0/8},
		{"unrelated", "abc", "xyz", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NameSimilarity(tables, tt.a, tt.b); !approx(got, tt.want) {
				t.Errorf("NameSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestNameSimilaritySymmetric(t *testing.T) {
	tables := lookup.Default()
	pairs := [][2]string{
		{"Robert Smith", "robert smith"},
		{"Robert Smith", "Dr Robert Smith"},
		{"Bob Smith", "Robert Smith"},
		{"Jane Doe", "Janet Dow"},
	}
	for _, p := range pairs {
		ab, ba := NameSimilarity(tables, p[0], p[1]), NameSimilarity(tables, p[1], p[0])
		if !approx(ab, ba) {
			t.Errorf("NameSimilarity not symmetric for %q/%q: %v vs %v", p[0], p[1], ab, ba)
		}
	}
}

func TestFuzzy(t *testing.T) {
	tests := []struct {
		name string
		fn   func(a, b string) float64
		a, b string
		want float64
	}{
		{"ratio_equal", Ratio, "abc", "abc", 1},
		{"ratio_empty", Ratio, "", "abc", 0},
		{"ratio_one_edit", Ratio, "kitten", "sitten", 1 - 1.0/6},
		{"partial_window_match", PartialRatio, "jane doe", "profile of jane doe at acme", 1},
		{"partial_symmetric_args", PartialRatio, "profile of jane doe at acme", "jane doe", 1},
		{"partial_empty", PartialRatio, "", "x", 0},
		{"token_set_subset", TokenSetRatio, "engineer acme", "Senior Engineer at ACME", 1},
		{"token_set_disjoint_empty", TokenSetRatio, "", "anything", 0},
		{"token_set_order", TokenSetRatio, "b a", "a b", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.a, tt.b); !approx(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if got := TokenSetRatio("staff engineer acme", "engineer globex"); got <= 0 || got >= 1 {
		t.Errorf("TokenSetRatio partial overlap = %v, want in (0,1)", got)
	}
}

func TestProfileScoreScenario(t *testing.T) {
	s := New(lookup.Default())
	p := persona.Persona{Name: "Robert Smith"}
	c := persona.Candidate{
		Identifier: "bob-smith-1a2b",
		URL:        "https://www.linkedin.com/in/bob-smith-1a2b",
		Title:      "Bob Smith — engineer",
	}

	got, breakdown := s.ProfileScore(p, c, "Bob Smith")
	want := 0.5*0.85 + 0.2*0.5 + 0.15*0.6 + 0.3*0.5 + 0.05*0.5
	if !approx(got, want) || !approx(got, 0.79) {
		t.Errorf("ProfileScore() = %v, want %v", got, want)
	}

	wantBreakdown := persona.ScoreBreakdown{
		persona.SignalName:         0.425,
		persona.SignalCompanyRole:  0.1,
		persona.SignalIndustrySize: 0.09,
		persona.SignalLocation:     0.15,
		persona.SignalSocial:       0.025,
	}
	if diff := cmp.Diff(wantBreakdown, breakdown, cmpopts.EquateApprox(0, eps)); diff != "" {
		t.Errorf("breakdown mismatch (-want +got):\n%s", diff)
	}
}

func TestProfileScoreCap(t *testing.T) {
	s := New(nil)
	p := persona.Persona{
		Name:  "Jane Doe",
		Intro: "Platform engineering leader building developer tooling, kubernetes operators, observability",
	}
	c := persona.Candidate{
		URL:     "https://www.linkedin.com/in/jane-doe",
		Snippet: "platform engineering leader developer tooling kubernetes operators observability building",
	}
	got, breakdown := s.ProfileScore(p, c, "Jane Doe")
	if got != CompositeCap {
		t.Errorf("ProfileScore() = %v, want cap %v", got, CompositeCap)
	}
	if breakdown.Sum() <= CompositeCap {
		t.Errorf("uncapped sum = %v, want above cap", breakdown.Sum())
	}
	if cr := breakdown[persona.SignalCompanyRole]; !approx(cr, 0.2) {
		t.Errorf("company_role = %v, want 0.2 (sub-score capped at 1.0)", cr)
	}
}

func TestCompanyRoleKeywords(t *testing.T) {
	s := New(nil)
	tests := []struct {
		name string
		p    persona.Persona
		c    persona.Candidate
		want float64
	}{
		{
			name: "no_intro_is_neutral",
			p:    persona.Persona{Name: "x"},
			c:    persona.Candidate{URL: "https://www.linkedin.com/in/x"},
			want: 0.5,
		},
		{
			name: "duplicate_keywords_count_once",
			p:    persona.Persona{Intro: "Acme Acme acme"},
			c:    persona.Candidate{Snippet: "works at ACME"},
			want: 0.6,
		},
		{
			name: "keywords_from_title_and_company",
			p:    persona.Persona{JobTitle: "CEO", Company: "Globex"},
			c:    persona.Candidate{Title: "Jane Doe - CEO - Globex"},
			want: 0.7,
		},
		{
			name: "short_words_ignored",
			p:    persona.Persona{Intro: "VP at IBM"},
			c:    persona.Candidate{Title: "VP at IBM"},
			want: 0.5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.companyRole(tt.p, tt.c); !approx(got, tt.want) {
				t.Errorf("companyRole() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProfileScoreWeights(t *testing.T) {
	s := New(nil, WithWeights(Weights{Name: 1}))
	got, _ := s.ProfileScore(persona.Persona{Name: "Jane Doe"}, persona.Candidate{}, "Jane Doe")
	if got != CompositeCap {
		t.Errorf("ProfileScore() = %v, want %v", got, CompositeCap)
	}
	got, _ = s.ProfileScore(persona.Persona{Name: "Robert Smith"}, persona.Candidate{}, "Bob Smith")
	if !approx(got, 0.85) {
		t.Errorf("ProfileScore() = %v, want 0.85", got)
	}
}

func TestSnippetScore(t *testing.T) {
	s := New(nil)
	p := persona.Persona{Name: "Jane Doe", JobTitle: "Staff Engineer", Company: "Acme", Location: "America/New_York"}

	tests := []struct {
		name          string
		c             persona.Candidate
		wantName      float64
		wantOverlap   float64
		wantComposite float64
	}{
		{
			name:          "all_tokens_and_fields_present",
			c:             persona.Candidate{Title: "Jane Doe - Staff Engineer - Acme | LinkedIn", Snippet: "New York. Staff Engineer at Acme."},
			wantName:      0.8,
			wantOverlap:   0.2,
			wantComposite: CompositeCap,
		},
		{
			name:          "name_only",
			c:             persona.Candidate{Title: "Jane Doe | LinkedIn"},
			wantName:      0.8,
			wantOverlap:   0.2 * TokenSetRatio("staff engineer acme new york", "jane doe | linkedin "),
			wantComposite: 0.8 + 0.2*TokenSetRatio("staff engineer acme new york", "jane doe | linkedin "),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, b := s.SnippetScore(context.Background(), p, tt.c)
			if !approx(b[persona.SignalName], tt.wantName) {
				t.Errorf("name = %v, want %v", b[persona.SignalName], tt.wantName)
			}
			if !approx(b[persona.SignalFieldOverlap], tt.wantOverlap) {
				t.Errorf("field_overlap = %v, want %v", b[persona.SignalFieldOverlap], tt.wantOverlap)
			}
			if !approx(got, min(tt.wantComposite, CompositeCap)) {
				t.Errorf("SnippetScore() = %v, want %v", got, tt.wantComposite)
			}
			if _, ok := b[persona.SignalSemantic]; ok {
				t.Error("semantic signal present without embedder")
			}
		})
	}

	t.Run("partial_name_uses_fuzzy", func(t *testing.T) {
		c := persona.Candidate{Title: "Jan Doe"}
		_, b := s.SnippetScore(context.Background(), persona.Persona{Name: "Jane Doe"}, c)
		want := 0.8 * PartialRatio("jane doe", "jan doe ")
		if !approx(b[persona.SignalName], want) || b[persona.SignalName] >= 0.8 {
			t.Errorf("name = %v, want %v", b[persona.SignalName], want)
		}
	})
}

type fakeEmbedder struct {
	vecs [][]float32
	err  error
}

func (f fakeEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return f.vecs, f.err
}

func TestSnippetScoreSemantic(t *testing.T) {
	p := persona.Persona{Name: "Jane Doe"}
	c := persona.Candidate{Title: "Someone Else"}

	s := New(nil, WithEmbedder(fakeEmbedder{vecs: [][]float32{{1, 0}, {1, 0}}}))
	got, b := s.SnippetScore(context.Background(), p, c)
	if !approx(b[persona.SignalSemantic], 0.1) {
		t.Errorf("semantic = %v, want 0.1", b[persona.SignalSemantic])
	}
	if got > CompositeCap {
		t.Errorf("SnippetScore() = %v above cap", got)
	}

	s = New(nil, WithEmbedder(fakeEmbedder{err: errors.New("boom")}))
	if _, b := s.SnippetScore(context.Background(), p, c); len(b) != 2 {
		t.Errorf("breakdown = %v, want semantic dropped on embedder error", b)
	}
}

func TestSnippetScoreSemanticWeights(t *testing.T) {
	p := persona.Persona{Name: "Jane Doe", JobTitle: "Staff Engineer", Company: "Acme"}
	c := persona.Candidate{Title: "Jane Doe - Staff Engineer - Acme | LinkedIn", Snippet: "Berlin."}

	_, plain := New(nil).SnippetScore(context.Background(), p, c)
	_, sem := New(nil, WithEmbedder(fakeEmbedder{vecs: [][]float32{{1, 0}, {1, 0}}})).SnippetScore(context.Background(), p, c)

	if plain[persona.SignalFieldOverlap] == 0 {
		t.Fatalf("overlap = 0, want a positive overlap for matching fields")
	}
	if !approx(sem[persona.SignalName], plain[persona.SignalName]) {
		t.Errorf("name share = %v with embedder, want %v", sem[persona.SignalName], plain[persona.SignalName])
	}
	if !approx(sem[persona.SignalFieldOverlap], plain[persona.SignalFieldOverlap]/2) {
		t.Errorf("overlap share = %v with embedder, want half of %v", sem[persona.SignalFieldOverlap], plain[persona.SignalFieldOverlap])
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"same", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length_mismatch", []float32{1}, []float32{1, 2}, 0},
		{"zero_vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}
