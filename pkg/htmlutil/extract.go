// Package htmlutil reads the identifying parts of a profile page: its title,
// meta tags, and visible text.
package htmlutil

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// unavailable are phrases seen on missing or restricted profile pages.
var unavailable = []string{
	"404 not found",
	"error 404",
	"page not found",
	"page doesn't exist",
	"profile not found",
	"member not found",
	"this profile is not available",
	"account has been restricted",
}

// Page is a tokenized HTML document.
type Page struct {
	meta  map[string]string
	title string
	h1    string
	text  string
}

// Parse tokenizes doc. It never fails; malformed markup yields whatever was
// readable before the first error.
func Parse(doc string) *Page {
	p := &Page{meta: make(map[string]string)}
	z := html.NewTokenizer(strings.NewReader(doc))

	var (
		capture atom.Atom
		buf     strings.Builder
		text    strings.Builder
	)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			p.text = text.String()
			return p
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Meta:
				p.addMeta(tok.Attr)
			case atom.Title, atom.H1, atom.Script, atom.Style:
				if capture == 0 && tt == html.StartTagToken {
					capture = tok.DataAtom
					buf.Reset()
				}
			default:
			}
		case html.EndTagToken:
			tok := z.Token()
			if tok.DataAtom != capture {
				continue
			}
			switch capture {
			case atom.Title:
				if p.title == "" {
					p.title = squash(buf.String())
				}
			case atom.H1:
				if p.h1 == "" {
					p.h1 = squash(buf.String())
				}
			default:
			}
			capture = 0
		case html.TextToken:
			if capture == atom.Script || capture == atom.Style {
				continue
			}
			s := string(z.Text())
			if capture != 0 {
				buf.WriteString(s)
			}
			text.WriteString(s)
			text.WriteByte(' ')
		default:
		}
	}
}

func (p *Page) addMeta(attrs []html.Attribute) {
	var key, content string
	for _, a := range attrs {
		switch strings.ToLower(a.Key) {
		case "name", "property":
			if key == "" {
				key = strings.ToLower(strings.TrimSpace(a.Val))
			}
		case "content":
			content = strings.TrimSpace(a.Val)
		default:
		}
	}
	if key == "" || content == "" {
		return
	}
	if _, ok := p.meta[key]; !ok {
		p.meta[key] = content
	}
}

// Meta returns the content of the first meta tag whose name or property is key.
func (p *Page) Meta(key string) string {
	return p.meta[strings.ToLower(key)]
}

// Title returns the document title, falling back to og:title and then the first <h1>.
func (p *Page) Title() string {
	switch {
	case p.title != "":
		return p.title
	case p.Meta("og:title") != "":
		return p.Meta("og:title")
	default:
		return p.h1
	}
}

// Image returns og:image, or twitter:image when og:image is absent.
func (p *Page) Image() string {
	if img := p.Meta("og:image"); img != "" {
		return img
	}
	return p.Meta("twitter:image")
}

// NotFound reports whether the title or visible text reads like an error or
// restricted-profile page.
func (p *Page) NotFound() bool {
	haystack := strings.ToLower(p.title + " " + p.text)
	for _, phrase := range unavailable {
		if strings.Contains(haystack, phrase) {
			return true
		}
	}
	return false
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
