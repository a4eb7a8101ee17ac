package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archive-sifter/internal/fault"
	"archive-sifter/internal/models"
	"archive-sifter/internal/throttle"
)

func resultPage(links ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><div id=search>")
	for _, l := range links {
		fmt.Fprintf(&b, `<div class="g"><div class="tF2Cxc"><a href="%s"><h3>t</h3></a><a href="https://cache">c</a></div></div>`, l)
	}
	b.WriteString(`<div class="other"><a href="https://ad.example">ad</a></div></body></html>`)
	return b.String()
}

func newScraper(url string) *GoogleScraper {
	g := NewGoogleScraper(throttle.Delay{}, zerolog.Nop())
	g.BaseURL = url
	return g
}

func TestGoogleScraperPaginates(t *testing.T) {
	var (
		mu         sync.Mutex
		seenStarts []string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "kosher deli", q.Get("q"))
		assert.Equal(t, "he", q.Get("hl"))
		assert.Equal(t, "lang_he", q.Get("lr"))
		mu.Lock()
		seenStarts = append(seenStarts, q.Get("start"))
		mu.Unlock()
		start, _ := strconv.Atoi(q.Get("start"))
		if start >= 20 {
			_, _ = w.Write([]byte(resultPage()))
			return
		}
		var links []string
		for i := 0; i < 10; i++ {
			links = append(links, fmt.Sprintf("https://site%d.example/", start+i))
		}
		_, _ = w.Write([]byte(resultPage(links...)))
	}))
	defer ts.Close()

	got, err := newScraper(ts.URL).Search(context.Background(), models.SearchQuery{Text: "kosher deli", Language: "he", ResultLimit: 100})
	require.NoError(t, err)
	assert.Len(t, got, 20)
	assert.Equal(t, "https://site0.example/", got[0])
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"0", "10", "20"}, seenStarts)
}

func TestGoogleScraperRespectsLimit(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var links []string
		for i := 0; i < 10; i++ {
			links = append(links, fmt.Sprintf("https://s%d.example/", i))
		}
		_, _ = w.Write([]byte(resultPage(links...)))
	}))
	defer ts.Close()

	got, err := newScraper(ts.URL).Search(context.Background(), models.SearchQuery{Text: "x", ResultLimit: 15})
	require.NoError(t, err)
	assert.Len(t, got, 15)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGoogleScraperErrorKeepsCollected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") == "0" {
			_, _ = w.Write([]byte(resultPage("https://a.example/", "https://b.example/")))
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	got, err := newScraper(ts.URL).Search(context.Background(), models.SearchQuery{Text: "x", ResultLimit: 50})
	require.Error(t, err)
	assert.Equal(t, fault.ExternalService, fault.KindOf(err))
	assert.Equal(t, []string{"https://a.example/", "https://b.example/"}, got)
}

func TestPagerStopsOnEmptyPage(t *testing.T) {
	calls := 0
	p := pager{pageSize: 10, log: zerolog.Nop()}
	got, err := p.collect(context.Background(), models.SearchQuery{ResultLimit: 100}, func(_ context.Context, _ models.SearchQuery, offset, size int) ([]string, error) {
		calls++
		if offset == 0 {
			return []string{"https://a.example"}, nil
		}
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example"}, got)
	assert.Equal(t, 2, calls)
}

func TestPagerMaxTotalAndOffsets(t *testing.T) {
	var offsets []int
	p := pager{pageSize: 10, maxTotal: 30, log: zerolog.Nop()}
	got, err := p.collect(context.Background(), models.SearchQuery{ResultLimit: 100}, func(_ context.Context, _ models.SearchQuery, offset, size int) ([]string, error) {
		offsets = append(offsets, offset)
		out := make([]string, size)
		for i := range out {
			out[i] = fmt.Sprintf("https://%d.example", offset+i)
		}
		return out, nil
	})
	require.NoError(t, err)
	assert.Len(t, got, 30)
	assert.Equal(t, []int{0, 10, 20}, offsets)
}

func TestPagerCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := pager{pageSize: 1, delay: throttle.Delay{Min: 1e12, Max: 1e12}, log: zerolog.Nop()}
	got, err := p.collect(ctx, models.SearchQuery{ResultLimit: 5}, func(context.Context, models.SearchQuery, int, int) ([]string, error) {
		cancel()
		return []string{"https://a.example"}, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"https://a.example"}, got)
}

func TestCustomSearchPaging(t *testing.T) {
	var starts []int
	c := &CustomSearch{log: zerolog.Nop(), page: func(_ context.Context, q models.SearchQuery, offset, size int) ([]string, error) {
		starts = append(starts, offset)
		if offset >= 10 {
			return nil, errors.New("quota")
		}
		return []string{"https://a.example", "https://b.example"}, nil
	}}
	got, err := c.Search(context.Background(), models.SearchQuery{Text: "x", ResultLimit: 500})
	assert.Error(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, []int{0, 10}, starts)
}

func TestNewCustomSearchRequiresCredentials(t *testing.T) {
	_, err := NewCustomSearch(context.Background(), "", "cx", throttle.Delay{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestInURL(t *testing.T) {
	q := InURL(models.SearchQuery{Text: "kosher", Language: "en"})
	assert.Equal(t, "inurl:kosher", q.Text)
	assert.Equal(t, "en", q.Language)
}

func TestNormalizeLanguage(t *testing.T) {
	for in, want := range map[string]string{"": "en", "he": "he", "pt-br": "pt-BR", " fr ": "fr"} {
		got, err := NormalizeLanguage(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := NormalizeLanguage("not a language")
	assert.Error(t, err)
}
