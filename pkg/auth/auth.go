// Package auth finds session cookies for fetching logged-in profile pages.
package auth

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"slices"
)

// Site describes where a session lives and which cookies make it up.
type Site struct {
	Domain    string
	Essential []string          // cookie names that make a usable session
	EnvVars   map[string]string // environment variable -> cookie name
}

// LinkedIn is the session definition for linkedin.com.
var LinkedIn = Site{
	Domain:    "linkedin.com",
	Essential: []string{"li_at", "JSESSIONID", "lidc", "bcookie"},
	EnvVars: map[string]string{
		"LINKEDIN_LI_AT":      "li_at",
		"LINKEDIN_JSESSIONID": "JSESSIONID",
		"LINKEDIN_LIDC":       "lidc",
		"LINKEDIN_BCOOKIE":    "bcookie",
	},
}

// EnvVarNames returns the environment variables consulted for s, sorted.
func (s Site) EnvVarNames() []string {
	return slices.Sorted(maps.Keys(s.EnvVars))
}

// Source is one place cookies may come from. Lookup returns an empty map when
// the source has nothing for the site; errors are reserved for real failures.
type Source struct {
	Name   string
	Lookup func(ctx context.Context, site Site) (map[string]string, error)
}

// Static serves a fixed cookie map, usually from configuration.
func Static(cookies map[string]string) Source {
	return Source{
		Name: "config",
		Lookup: func(context.Context, Site) (map[string]string, error) {
			return maps.Clone(cookies), nil
		},
	}
}

// Env reads the site's environment variables.
func Env() Source {
	return Source{
		Name: "env",
		Lookup: func(_ context.Context, site Site) (map[string]string, error) {
			found := make(map[string]string)
			for env, name := range site.EnvVars {
				if v := os.Getenv(env); v != "" {
					found[name] = v
				}
			}
			return found, nil
		},
	}
}

// Session is the cookie set chosen for a site.
type Session struct {
	Site    Site
	Source  string // name of the Source that supplied Cookies
	Cookies map[string]string
}

// Find returns the session from the first source with any non-empty cookie.
// A Session without cookies is not an error; callers fall back to anonymous access.
func (s Site) Find(ctx context.Context, sources ...Source) (Session, error) {
	for _, src := range sources {
		if src.Lookup == nil {
			continue
		}
		found, err := src.Lookup(ctx, s)
		if err != nil {
			return Session{Site: s}, fmt.Errorf("%s cookies: %w", src.Name, err)
		}
		maps.DeleteFunc(found, func(_, v string) bool { return v == "" })
		if len(found) > 0 {
			return Session{Site: s, Source: src.Name, Cookies: found}, nil
		}
	}
	return Session{Site: s}, nil
}

// Empty reports whether no cookies were found.
func (s Session) Empty() bool { return len(s.Cookies) == 0 }

// Missing lists essential cookies the session lacks.
func (s Session) Missing() []string {
	var out []string
	for _, name := range s.Site.Essential {
		if _, ok := s.Cookies[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// Jar returns a cookie jar scoped to the site's domain and subdomains.
func (s Session) Jar() (http.CookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	cookies := make([]*http.Cookie, 0, len(s.Cookies))
	for _, name := range slices.Sorted(maps.Keys(s.Cookies)) {
		if s.Cookies[name] == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name:   name,
			Value:  s.Cookies[name],
			Domain: "." + s.Site.Domain,
			Path:   "/",
		})
	}
	jar.SetCookies(&url.URL{Scheme: "https", Host: s.Site.Domain, Path: "/"}, cookies)
	return jar, nil
}
