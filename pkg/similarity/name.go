package similarity

import (
	"strings"

	"github.com/codeGROOVE-dev/doppelganger/pkg/lookup"
)

// Name similarity levels, from strongest to weakest rule.
const (
	NameExact       = 1.0
	NameContainment = 0.9
	NameNickname    = 0.85
)

// NameSimilarity scores two display names in [0, 1]: exact match, then substring
// containment, then first-name nickname equivalence, then edit-distance ratio.
func NameSimilarity(tables *lookup.Tables, a, b string) float64 {
	a, b = normalize(a), normalize(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return NameExact
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return NameContainment
	}
	if tables == nil {
		tables = lookup.Default()
	}
	if tables.Equivalent(firstToken(a), firstToken(b)) {
		return NameNickname
	}
	return Ratio(a, b)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func firstToken(s string) string {
	first, _, _ := strings.Cut(s, " ")
	return first
}
