// Package rank deduplicates scored candidates and orders them.
package rank

import (
	"cmp"
	"slices"

	"github.com/codeGROOVE-dev/doppelganger/pkg/persona"
)

// DefaultK is the number of matches kept when the caller does not say.
const DefaultK = 3

// Rank drops later duplicates of an identifier, orders by real confidence
// (ties keep insertion order), keeps the top k, and numbers them from 1.
// k <= 0 keeps everything. The input is not modified.
func Rank(results []persona.MatchResult, k int) []persona.MatchResult {
	out := top(results, k, func(m persona.MatchResult) float64 { return m.RealConfidence })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Shortlist is Rank ordered by textual score, without numbering. It selects which
// candidates are worth a profile fetch and face comparison.
func Shortlist(results []persona.MatchResult, k int) []persona.MatchResult {
	return top(results, k, func(m persona.MatchResult) float64 { return m.TextualScore })
}

func top(results []persona.MatchResult, k int, key func(persona.MatchResult) float64) []persona.MatchResult {
	out := Dedup(results)
	slices.SortStableFunc(out, func(a, b persona.MatchResult) int {
		return cmp.Compare(key(b), key(a))
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// Dedup returns a copy of results keeping the first occurrence of each identifier.
func Dedup(results []persona.MatchResult) []persona.MatchResult {
	seen := make(map[string]bool, len(results))
	out := make([]persona.MatchResult, 0, len(results))
	for _, r := range results {
		if seen[r.Candidate.Identifier] {
			continue
		}
		seen[r.Candidate.Identifier] = true
		out = append(out, r)
	}
	return out
}

// DedupCandidates keeps the first occurrence of each candidate identifier.
func DedupCandidates(cands []persona.Candidate) []persona.Candidate {
	seen := make(map[string]bool, len(cands))
	out := make([]persona.Candidate, 0, len(cands))
	for _, c := range cands {
		if !seen[c.Identifier] {
			seen[c.Identifier] = true
			out = append(out, c)
		}
	}
	return out
}
