// Package lookup holds the constant tables used for query building and name matching.
//
// Tables are built once at startup (Default, optionally merged with overrides from
// config) and passed to the components that need them. Nothing in this package is
// mutated after construction.
package lookup

import (
	"maps"
	"regexp"
	"slices"
	"strings"
)

// Tables is the immutable set of lookup data.
type Tables struct {
	nicknames    map[string][]int // name -> group ids
	regions      map[string]string
	socialTokens map[string]string
	countries    map[string]string
	sizeUnits    []string
	sizeUnitRE   *regexp.Regexp
	keywords     []string
}

// Overrides are user-supplied additions merged over the defaults.
type Overrides struct {
	Nicknames    [][]string        `mapstructure:"nicknames"`
	Regions      map[string]string `mapstructure:"regions"`
	SocialTokens map[string]string `mapstructure:"social_tokens"`
	Countries    map[string]string `mapstructure:"countries"`
	SizeUnits    []string          `mapstructure:"size_units"`
	Keywords     []string          `mapstructure:"keywords"`
}

// defaultNicknames groups first names that refer to the same person.
// The first entry of each group is the base form.
var defaultNicknames = [][]string{
	{"bob", "robert", "rob", "bobby"},
	{"mike", "michael", "mick"},
	{"dave", "david"},
	{"jim", "james", "jimmy"},
	{"chris", "christopher", "christoph"},
	{"zach", "zachary"},
	{"jeff", "jeffrey", "geoffrey"},
	{"bill", "william", "will", "billy", "liam"},
	{"tom", "thomas", "tommy"},
	{"dick", "richard", "rick", "rich"},
	{"dan", "daniel", "danny"},
	{"matt", "matthew"},
	{"nick", "nicholas", "nicolas"},
	{"alex", "alexander", "alexandra"},
	{"sam", "samuel", "samantha"},
	{"ben", "benjamin"},
	{"andy", "andrew", "drew"},
	{"tony", "anthony"},
	{"joe", "joseph", "joey"},
	{"steve", "stephen", "steven"},
	{"kate", "katherine", "catherine", "katie", "cathy"},
	{"liz", "elizabeth", "beth", "betty"},
	{"jen", "jennifer", "jenny"},
	{"meg", "margaret", "maggie", "peggy"},
}

var defaultRegions = map[string]string{
	"America/New_York":    "New York",
	"America/Chicago":     "Chicago",
	"America/Los_Angeles": "California",
	"America/Denver":      "Colorado",
	"America/Toronto":     "Toronto",
	"America/Sao_Paulo":   "Brazil",
	"Europe/London":       "UK",
	"Europe/Brussels":     "Belgium",
	"Europe/Paris":        "France",
	"Europe/Berlin":       "Germany",
	"Europe/Amsterdam":    "Netherlands",
	"Asia/Kolkata":        "India",
	"Asia/Jerusalem":      "Israel",
	"Asia/Singapore":      "Singapore",
	"Asia/Tokyo":          "Japan",
	"Australia/Sydney":    "Sydney",
	"Africa/Monrovia":     "Liberia",
	"Africa/Lagos":        "Nigeria",
}

var defaultSocialTokens = map[string]string{
	"twitter.com":       "twitter",
	"x.com":             "twitter",
	"github.com":        "github",
	"gitlab.com":        "gitlab",
	"medium.com":        "medium",
	"dev.to":            "devto",
	"stackoverflow.com": "stackoverflow",
	"instagram.com":     "instagram",
	"facebook.com":      "facebook",
	"youtube.com":       "youtube",
	"bsky.app":          "bluesky",
}

var defaultCountries = map[string]string{
	"UK": "United Kingdom",
	"US": "United States",
	"CA": "Canada",
	"AU": "Australia",
	"DE": "Germany",
	"FR": "France",
	"IN": "India",
	"JP": "Japan",
	"SG": "Singapore",
}

var (
	defaultSizeUnits = []string{"employees", "employee", "staff"}
	defaultKeywords  = []string{
		"lead", "founder", "ceo", "head", "engineer",
		"consultant", "developer", "manager", "scientist",
	}
)

// Default returns the built-in tables.
func Default() *Tables {
	return New(Overrides{})
}

// New builds tables from the defaults with o merged on top.
// Nickname groups in o are added as new groups; map entries replace defaults by key.
func New(o Overrides) *Tables {
	t := &Tables{
		nicknames:    make(map[string][]int),
		regions:      make(map[string]string, len(defaultRegions)+len(o.Regions)),
		socialTokens: maps.Clone(defaultSocialTokens),
		countries:    maps.Clone(defaultCountries),
		sizeUnits:    slices.Clone(defaultSizeUnits),
		keywords:     slices.Clone(defaultKeywords),
	}

	groups := slices.Concat(defaultNicknames, o.Nicknames)
	for id, g := range groups {
		for _, name := range g {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			if !slices.Contains(t.nicknames[name], id) {
				t.nicknames[name] = append(t.nicknames[name], id)
			}
		}
	}

	// Timezone keys are matched case-insensitively; config loaders lowercase map keys.
	for _, m := range []map[string]string{defaultRegions, o.Regions} {
		for k, v := range m {
			t.regions[strings.ToLower(k)] = v
		}
	}
	for k, v := range o.SocialTokens {
		t.socialTokens[strings.ToLower(k)] = v
	}
	for k, v := range o.Countries {
		t.countries[strings.ToUpper(k)] = v
	}
	for _, u := range o.SizeUnits {
		if !slices.Contains(t.sizeUnits, u) {
			t.sizeUnits = append(t.sizeUnits, u)
		}
	}
	for _, k := range o.Keywords {
		if !slices.Contains(t.keywords, k) {
			t.keywords = append(t.keywords, k)
		}
	}
	// Longest first so "employees" is stripped before "employee".
	slices.SortStableFunc(t.sizeUnits, func(a, b string) int { return len(b) - len(a) })
	t.sizeUnitRE = unitPattern(t.sizeUnits)

	return t
}

// Equivalent reports whether two first names belong to the same nickname group.
func (t *Tables) Equivalent(a, b string) bool {
	ga := t.nicknames[strings.ToLower(a)]
	if len(ga) == 0 {
		return false
	}
	for _, id := range t.nicknames[strings.ToLower(b)] {
		if slices.Contains(ga, id) {
			return true
		}
	}
	return false
}

// Region returns the region for an IANA timezone name, or "" if unknown.
func (t *Tables) Region(timezone string) string {
	return t.regions[strings.ToLower(strings.TrimSpace(timezone))]
}

// SocialToken returns the query token for a social host ("github.com" -> "github").
// Subdomains of a known host match too.
func (t *Tables) SocialToken(host string) string {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if tok, ok := t.socialTokens[host]; ok {
		return tok
	}
	for domain, tok := range t.socialTokens {
		if strings.HasSuffix(host, "."+domain) {
			return tok
		}
	}
	return ""
}

// StripSizeUnits removes unit words from a company size ("11-50 employees" -> "11-50").
func (t *Tables) StripSizeUnits(size string) string {
	if t.sizeUnitRE != nil {
		size = t.sizeUnitRE.ReplaceAllLiteralString(size, " ")
	}
	return strings.Join(strings.Fields(size), " ")
}

// StandardizeLocation expands a trailing country code into the country name.
// "London, UK" becomes "London, United Kingdom". Unknown codes are left alone.
func (t *Tables) StandardizeLocation(loc string) string {
	loc = strings.TrimSpace(loc)
	if loc == "" {
		return ""
	}
	idx := strings.LastIndex(loc, ",")
	head, code := "", loc
	if idx >= 0 {
		head, code = loc[:idx+1], loc[idx+1:]
	}
	name, ok := t.countries[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return loc
	}
	if head == "" {
		return name
	}
	return head + " " + name
}

// Keywords returns the title keywords used to enrich role matching.
func (t *Tables) Keywords() []string {
	return slices.Clone(t.keywords)
}

// unitPattern matches any of units case-insensitively. Go regexp alternation
// is leftmost-first, so units must already be ordered longest first.
func unitPattern(units []string) *regexp.Regexp {
	alts := make([]string, 0, len(units))
	for _, u := range units {
		if u = strings.TrimSpace(u); u != "" {
			alts = append(alts, regexp.QuoteMeta(u))
		}
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(alts, "|") + `)`)
}
