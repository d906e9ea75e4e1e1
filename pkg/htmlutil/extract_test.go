package htmlutil

import "testing"

const profilePage = `<html><head>
<title>Jane Doe - Staff Engineer - Acme | LinkedIn</title>
<meta property="og:title" content="Jane Doe &amp; Co - Acme | LinkedIn">
<meta content="https://media.licdn.com/dms/image/jane.jpg" property="og:image">
<meta name="twitter:image" content="https://media.licdn.com/twitter.jpg">
<script>var msg = "page not found";</script>
</head><body><h1>Jane Doe</h1></body></html>`

func TestPageTitle(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"title_tag", profilePage, "Jane Doe - Staff Engineer - Acme | LinkedIn"},
		{"og_title_fallback", `<meta property="og:title" content="Only OG">`, "Only OG"},
		{"h1_fallback", `<body><h1> Heading <span>Two</span></h1></body>`, "Heading Two"},
		{"entities", `<title>Tom &amp; Jerry</title>`, "Tom & Jerry"},
		{"none", `<p>nothing</p>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Parse(tt.html).Title(); got != tt.want {
				t.Errorf("Title() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPageMeta(t *testing.T) {
	p := Parse(profilePage)
	if got, want := p.Meta("og:title"), "Jane Doe & Co - Acme | LinkedIn"; got != want {
		t.Errorf("Meta(og:title) = %q, want %q", got, want)
	}
	if got, want := p.Meta("OG:Image"), "https://media.licdn.com/dms/image/jane.jpg"; got != want {
		t.Errorf("Meta(OG:Image) = %q, want %q", got, want)
	}
	if got := p.Meta("description"); got != "" {
		t.Errorf("Meta(description) = %q, want empty", got)
	}
}

func TestPageImage(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"og_image_reversed_attributes", profilePage, "https://media.licdn.com/dms/image/jane.jpg"},
		{"twitter_fallback", `<meta name="twitter:image" content="https://x/t.jpg">`, "https://x/t.jpg"},
		{"empty_content_ignored", `<meta property="og:image" content=""><meta name="twitter:image" content="https://x/t.jpg">`, "https://x/t.jpg"},
		{"missing", `<html></html>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Parse(tt.html).Image(); got != tt.want {
				t.Errorf("Image() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPageNotFound(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{"title", "<title>Page Not Found | LinkedIn</title>", true},
		{"body_text", "<p>This profile is <b>not</b> available</p><p>This profile is not available</p>", true},
		{"script_ignored", profilePage, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Parse(tt.html).NotFound(); got != tt.want {
				t.Errorf("NotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}
