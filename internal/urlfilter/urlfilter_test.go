package urlfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"archive-sifter/internal/models"
)

func urls(hits []models.SearchHit) []string {
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.URL)
	}
	return out
}

func TestNormalizeGeneral(t *testing.T) {
	f := New(nil)
	hits := f.Normalize("kosher", []string{
		"https://foo.com/",
		"https://bar.com/menu?x=1",
		"http://baz.org#top",
		"not a url",
	}, false)
	assert.Equal(t, []models.SearchHit{
		{URL: "https://foo.com", Source: "search for 'kosher' (d)"},
		{URL: "https://bar.com", Source: "search for 'kosher' (p)"},
		{URL: "http://baz.org", Source: "search for 'kosher' (p)"},
	}, hits)
}

func TestNormalizeHomepageOnly(t *testing.T) {
	f := New(nil)
	hits := f.Normalize("deli", []string{
		"https://foo.com",
		"https://foo.com/about",
		"https://bar.com/?q=1",
		"https://baz.com/",
	}, true)
	assert.Equal(t, []string{"https://foo.com", "https://baz.com"}, urls(hits))
	for _, h := range hits {
		assert.Equal(t, "search for 'deli' (d)", h.Source)
	}
}

func TestDedupeWWW(t *testing.T) {
	f := New(nil)
	got := f.Dedupe([]models.SearchHit{
		{URL: "http://www.foo.com", Source: "a"},
		{URL: "http://foo.com", Source: "b"},
	})
	assert.Equal(t, []models.SearchHit{{URL: "http://www.foo.com", Source: "a"}}, got)

	got = f.Dedupe([]models.SearchHit{
		{URL: "https://foo.com"},
		{URL: "https://www.foo.com"},
		{URL: "https://shop.foo.com"},
		{URL: "https://FOO.com"},
	})
	assert.Equal(t, []string{"https://foo.com", "https://shop.foo.com"}, urls(got))
}

func TestRemoveBlocked(t *testing.T) {
	f := New(DefaultBlocklist())
	got := f.RemoveBlocked([]models.SearchHit{
		{URL: "https://www.linkedin.com"},
		{URL: "https://linkedin.com"},
		{URL: "https://en.wikipedia.org"},
		{URL: "https://he.wikipedia.org"},
		{URL: "https://x.com"},
		{URL: "https://kosher.example"},
	})
	assert.Equal(t, []string{"https://he.wikipedia.org", "https://kosher.example"}, urls(got))
}

func TestApplyIdempotent(t *testing.T) {
	f := New(DefaultBlocklist())
	in := []models.SearchHit{
		{URL: "https://www.a.com"}, {URL: "https://a.com"}, {URL: "https://b.com"},
		{URL: "https://www.youtube.com"}, {URL: "https://b.com"}, {URL: "https://www.c.co.il"},
		{URL: "https://c.co.il"}, {URL: "https://d.org"},
	}
	once := f.Apply(in)
	twice := f.Apply(once)
	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"https://www.a.com", "https://b.com", "https://www.c.co.il", "https://d.org"}, urls(once))
}

func TestMergeKeepsFirstSource(t *testing.T) {
	f := New(nil)
	plain := []models.SearchHit{{URL: "https://a.com", Source: "search for 'x' (d)"}}
	inurl := []models.SearchHit{
		{URL: "https://a.com", Source: "search for 'inurl:x' (d)"},
		{URL: "https://www.b.com", Source: "search for 'inurl:x' (p)"},
	}
	got := f.Merge(plain, inurl)
	assert.Equal(t, []models.SearchHit{
		{URL: "https://a.com", Source: "search for 'x' (d)"},
		{URL: "https://www.b.com", Source: "search for 'inurl:x' (p)"},
	}, got)
}

func TestSiteKey(t *testing.T) {
	assert.Equal(t, "foo.com", SiteKey("https://WWW.Foo.com/path"))
	assert.Equal(t, "foo.com", SiteKey("foo.com/x"))
	assert.Equal(t, "foo.com", SiteKey("http://foo.com:8080"))
}
