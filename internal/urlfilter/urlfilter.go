// Package urlfilter reduces raw search results to one candidate per site.
package urlfilter

import (
	"fmt"
	"net/url"
	"strings"

	"archive-sifter/internal/models"
)

// DefaultBlocklist holds high volume platforms that are never archive candidates.
func DefaultBlocklist() []string {
	return []string{
		"linkedin.com", "x.com", "en.wiktionary.org", "reddit.com", "amazon.com",
		"twitter.com", "facebook.com", "en.wikipedia.org", "youtube.com",
		"instagram.com", "books.google.com", "en.wikivoyage.org", "tiktok.com",
		"pinterest.com",
	}
}

// Filter is immutable after New.
type Filter struct {
	blocked map[string]struct{}
}

func New(blocklist []string) *Filter {
	f := &Filter{blocked: make(map[string]struct{}, len(blocklist))}
	for _, h := range blocklist {
		h = bareHost(strings.ToLower(strings.TrimSpace(h)))
		if h != "" {
			f.blocked[h] = struct{}{}
		}
	}
	return f
}

// Normalize turns raw search result URLs for query into labelled hits.
// In homepage-only mode anything but a site root is discarded; otherwise every
// result is cut down to scheme://host and tagged (d) for roots or (p) for pages.
func (f *Filter) Normalize(query string, results []string, homepageOnly bool) []models.SearchHit {
	hits := make([]models.SearchHit, 0, len(results))
	for _, raw := range results {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Host == "" {
			continue
		}
		root := isRoot(u)
		if homepageOnly && !root {
			continue
		}
		tag := models.SourceHomepageTag
		if !root {
			tag = models.SourcePageTag
		}
		hits = append(hits, models.SearchHit{
			URL:    (&url.URL{Scheme: u.Scheme, Host: u.Host}).String(),
			Source: fmt.Sprintf("search for '%s' %s", query, tag),
		})
	}
	return hits
}

// Dedupe keeps the first hit per site: www.example.com and example.com are the
// same site and whichever appears first wins.
func (f *Filter) Dedupe(hits []models.SearchHit) []models.SearchHit {
	seen := map[string]struct{}{}
	out := make([]models.SearchHit, 0, len(hits))
	for _, h := range hits {
		key := SiteKey(h.URL)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
	}
	return out
}

// SiteKey is the lowercased host with any leading www. removed.
func SiteKey(rawURL string) string {
	return bareHost(hostOf(rawURL))
}

// RemoveBlocked drops hits whose host, with or without www., is blocklisted.
func (f *Filter) RemoveBlocked(hits []models.SearchHit) []models.SearchHit {
	out := make([]models.SearchHit, 0, len(hits))
	for _, h := range hits {
		if f.Blocked(h.URL) {
			continue
		}
		out = append(out, h)
	}
	return out
}

func (f *Filter) Blocked(rawURL string) bool {
	_, ok := f.blocked[bareHost(hostOf(rawURL))]
	return ok
}

// Apply is Dedupe followed by RemoveBlocked. It is idempotent.
func (f *Filter) Apply(hits []models.SearchHit) []models.SearchHit {
	return f.RemoveBlocked(f.Dedupe(hits))
}

// Merge concatenates hit lists, keeping the first source label per URL, and
// re-applies Apply so hosts stay unique across lists.
func (f *Filter) Merge(lists ...[]models.SearchHit) []models.SearchHit {
	var all []models.SearchHit
	for _, l := range lists {
		all = append(all, l...)
	}
	return f.Apply(all)
}

func isRoot(u *url.URL) bool {
	return (u.Path == "" || u.Path == "/") && u.RawQuery == "" && u.Fragment == "" && !u.ForceQuery
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		u, err = url.Parse("https://" + rawURL)
		if err != nil {
			return strings.ToLower(rawURL)
		}
	}
	return strings.ToLower(u.Hostname())
}

func bareHost(host string) string {
	return strings.TrimPrefix(host, "www.")
}
