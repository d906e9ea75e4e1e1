package lookup

import "testing"

func TestEquivalent(t *testing.T) {
	tbl := Default()
	tests := []struct {
		a, b string
		want bool
	}{
		{"bob", "robert", true},
		{"Robert", "BOBBY", true},
		{"rob", "bob", true},
		{"mike", "mick", true},
		{"jeff", "geoffrey", true},
		{"bob", "michael", false},
		{"alice", "alice", false}, // not in any group
		{"", "bob", false},
	}
	for _, tt := range tests {
		if got := tbl.Equivalent(tt.a, tt.b); got != tt.want {
			t.Errorf("Equivalent(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
		if got := tbl.Equivalent(tt.b, tt.a); got != tt.want {
			t.Errorf("Equivalent(%q, %q) = %v, want %v", tt.b, tt.a, got, tt.want)
		}
	}
}

func TestOverrides(t *testing.T) {
	tbl := New(Overrides{
		Nicknames:    [][]string{{"Pat", "patrick", "patricia"}},
		Regions:      map[string]string{"Europe/Dublin": "Ireland"},
		SocialTokens: map[string]string{"Codeberg.org": "codeberg"},
		Countries:    map[string]string{"ie": "Ireland"},
	})

	if !tbl.Equivalent("pat", "patrick") {
		t.Error("override nickname group not applied")
	}
	if !tbl.Equivalent("bob", "robert") {
		t.Error("default nickname group lost after override")
	}
	if got := tbl.Region("Europe/Dublin"); got != "Ireland" {
		t.Errorf("Region(Europe/Dublin) = %q, want Ireland", got)
	}
	if got := tbl.SocialToken("codeberg.org"); got != "codeberg" {
		t.Errorf("SocialToken(codeberg.org) = %q, want codeberg", got)
	}
	if got := tbl.StandardizeLocation("Dublin, IE"); got != "Dublin, Ireland" {
		t.Errorf("StandardizeLocation(Dublin, IE) = %q", got)
	}
	if got := Default().Region("Europe/Dublin"); got != "" {
		t.Errorf("override leaked into defaults: %q", got)
	}
}

func TestRegion(t *testing.T) {
	tbl := Default()
	tests := map[string]string{
		"America/New_York": "New York",
		"Asia/Kolkata":     "India",
		"Africa/Monrovia":  "Liberia",
		"europe/berlin":    "Germany",
		"Mars/Olympus":     "",
		"":                 "",
	}
	for tz, want := range tests {
		if got := tbl.Region(tz); got != want {
			t.Errorf("Region(%q) = %q, want %q", tz, got, want)
		}
	}
}

func TestSocialToken(t *testing.T) {
	tbl := Default()
	tests := []struct {
		host string
		want string
	}{
		{"twitter.com", "twitter"},
		{"x.com", "twitter"},
		{"www.github.com", "github"},
		{"gist.github.com", "github"},
		{"example.com", ""},
	}
	for _, tt := range tests {
		if got := tbl.SocialToken(tt.host); got != tt.want {
			t.Errorf("SocialToken(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestStripSizeUnits(t *testing.T) {
	tbl := Default()
	tests := []struct {
		in, want string
	}{
		{"11-50 employees", "11-50"},
		{"1 Employee", "1"},
		{"201-500", "201-500"},
		{"employees", ""},
		{"50EMPLOYEES", "50"},
		{"ȺȺȺȺȺȺȺȺȺȺȺȺ employees", "ȺȺȺȺȺȺȺȺȺȺȺȺ"},
		{"\u212a50 employees", "\u212a50"},
		{"İİİİ employees", "İİİİ"},
		{"Ünternehmen Staff", "Ünternehmen"},
	}
	for _, tt := range tests {
		if got := tbl.StripSizeUnits(tt.in); got != tt.want {
			t.Errorf("StripSizeUnits(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStandardizeLocation(t *testing.T) {
	tbl := Default()
	tests := []struct {
		in, want string
	}{
		{"London, UK", "London, United Kingdom"},
		{"US", "United States"},
		{"Austin, Texas", "Austin, Texas"},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := tbl.StandardizeLocation(tt.in); got != tt.want {
			t.Errorf("StandardizeLocation(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
