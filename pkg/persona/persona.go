// Package persona defines the common types for persona-to-profile resolution.
package persona

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Common errors returned by resolution packages.
var (
	ErrNoFace          = errors.New("no comparable face detected")
	ErrProfileNotFound = errors.New("profile not found")
	ErrRateLimited     = errors.New("rate limited")
)

// Persona is the identity record to resolve. Only Name is required.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Persona struct {
	Name            string   `json:"name"`
	JobTitle        string   `json:"job_title,omitempty"`
	Company         string   `json:"company,omitempty"`
	CompanyIndustry string   `json:"company_industry,omitempty"`
	CompanySize     string   `json:"company_size,omitempty"`
	Location        string   `json:"location,omitempty"`
	Timezone        string   `json:"timezone,omitempty"`
	SocialProfiles  []string `json:"social_profiles,omitempty"`
	Website         string   `json:"website,omitempty"`
	ImageReference  string   `json:"image_reference,omitempty"`

	// Intro is free text the person wrote about themselves (bio, intro message).
	Intro string `json:"intro,omitempty"`
}

// HasName reports whether the persona carries a non-blank name.
func (p Persona) HasName() bool {
	return strings.TrimSpace(p.Name) != ""
}

// IntroText returns the text that role keywords are drawn from.
// Falls back to job title and company when no intro was supplied.
func (p Persona) IntroText() string {
	if strings.TrimSpace(p.Intro) != "" {
		return p.Intro
	}
	return strings.TrimSpace(p.JobTitle + " " + p.Company)
}

var driveFileID = regexp.MustCompile(`drive\.google\.com/.*/d/([a-zA-Z0-9_-]+)`)

// Image returns the persona's image reference, rewriting Google Drive share
// links ("/file/d/<id>/view") into direct download links.
func (p Persona) Image() string {
	ref := strings.TrimSpace(p.ImageReference)
	if m := driveFileID.FindStringSubmatch(ref); len(m) > 1 {
		return "https://drive.google.com/uc?id=" + m[1]
	}
	return ref
}

// Load decodes one persona object or an array of them.
func Load(r io.Reader) ([]Persona, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read personas: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var ps []Persona
		if err := json.Unmarshal(data, &ps); err != nil {
			return nil, fmt.Errorf("decode persona list: %w", err)
		}
		return ps, nil
	}

	var p Persona
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode persona: %w", err)
	}
	return []Persona{p}, nil
}

// Tier is the fallback level of a generated query.
type Tier int

// Query tiers, from most to least specific.
const (
	TierComprehensive Tier = 0
	TierNameContext   Tier = 1
	TierNameOnly      Tier = 2
)

func (t Tier) String() string {
	switch t {
	case TierComprehensive:
		return "comprehensive"
	case TierNameContext:
		return "name+context"
	case TierNameOnly:
		return "name-only"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Query is a search string and the tier that produced it.
type Query struct {
	Text string `json:"text"`
	Tier Tier   `json:"tier"`
}

// RawHit is a single search result as returned by a candidate source.
type RawHit struct {
	URL      string
	Title    string
	Snippet  string
	ImageURL string // thumbnail, when the provider returns one
}

// Candidate is a search hit that matched the profile URL shape.
type Candidate struct {
	Identifier  string `json:"identifier"`
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Snippet     string `json:"snippet,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	SourceQuery Query  `json:"source_query"`
}

// Text returns the searchable text of the candidate: URL, title and snippet.
func (c Candidate) Text() string {
	return strings.Join([]string{c.URL, c.Title, c.Snippet}, " ")
}

// Signal names a scored component.
type Signal string

// Signals on the profile (URL) path.
const (
	SignalName         Signal = "name"
	SignalCompanyRole  Signal = "company_role"
	SignalIndustrySize Signal = "industry_size"
	SignalLocation     Signal = "location"
	SignalSocial       Signal = "social"
)

// Signals on the snippet path.
const (
	SignalFieldOverlap Signal = "field_overlap"
	SignalSemantic     Signal = "semantic"
)

// ScoreBreakdown maps each signal to its weighted contribution.
type ScoreBreakdown map[Signal]float64

// Sum returns the uncapped composite.
func (b ScoreBreakdown) Sum() float64 {
	var total float64
	for _, v := range b {
		total += v
	}
	return total
}

// MatchResult is one scored candidate. Values are never mutated after fusion.
//
//nolint:govet // fieldalignment: intentional layout for readability
type MatchResult struct {
	Candidate      Candidate
	TextualScore   float64
	Breakdown      ScoreBreakdown
	FaceDistance   *float64 // nil when no comparable face was found
	RealConfidence float64
	Rank           int

	// Name is the display name the textual score was computed against.
	Name string
}

// matchRecord is the persisted shape of a MatchResult.
//
//nolint:govet // fieldalignment: intentional layout for readability
type matchRecord struct {
	Rank           int            `json:"rank"`
	URL            string         `json:"url"`
	Identifier     string         `json:"identifier"`
	Name           string         `json:"name,omitempty"`
	Breakdown      ScoreBreakdown `json:"component_scores"`
	TextualScore   float64        `json:"textual_score"`
	FaceDistance   *float64       `json:"face_distance,omitempty"`
	RealConfidence float64        `json:"real_confidence"`
	SourceQuery    Query          `json:"source_query"`
}

// MarshalJSON writes the persisted record for a match.
func (m MatchResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(matchRecord{
		Rank:           m.Rank,
		URL:            m.Candidate.URL,
		Identifier:     m.Candidate.Identifier,
		Name:           m.Name,
		Breakdown:      m.Breakdown,
		TextualScore:   m.TextualScore,
		FaceDistance:   m.FaceDistance,
		RealConfidence: m.RealConfidence,
		SourceQuery:    m.Candidate.SourceQuery,
	})
}

// UnmarshalJSON reads a persisted record back into a MatchResult.
func (m *MatchResult) UnmarshalJSON(data []byte) error {
	var rec matchRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	*m = MatchResult{
		Candidate: Candidate{
			Identifier:  rec.Identifier,
			URL:         rec.URL,
			SourceQuery: rec.SourceQuery,
		},
		TextualScore:   rec.TextualScore,
		Breakdown:      rec.Breakdown,
		FaceDistance:   rec.FaceDistance,
		RealConfidence: rec.RealConfidence,
		Rank:           rec.Rank,
		Name:           rec.Name,
	}
	return nil
}

// Profile is what a profile fetcher resolves a candidate URL to.
type Profile struct {
	Name     string
	ImageURL string
}
