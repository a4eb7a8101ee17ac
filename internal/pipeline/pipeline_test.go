package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archive-sifter/internal/classifier"
	"archive-sifter/internal/fault"
	"archive-sifter/internal/langdetect"
	"archive-sifter/internal/models"
	"archive-sifter/internal/urlfilter"
)

type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]models.Meta
	errs  map[string]error
	calls map[string]int
}

func (s *stubFetcher) FetchPage(_ context.Context, u string) (models.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[u]++
	if err, ok := s.errs[u]; ok {
		return models.Meta{}, err
	}
	return s.pages[u], nil
}

type stubSearch struct {
	results map[string][]string
	err     error
	queries []models.SearchQuery
}

func (s *stubSearch) Search(_ context.Context, q models.SearchQuery) ([]string, error) {
	s.queries = append(s.queries, q)
	return s.results[q.Text], s.err
}

type memSink struct {
	sure, notSure [][]models.ClassificationRecord
	fail          int
}

func (m *memSink) Write(_ context.Context, sure, notSure []models.ClassificationRecord) error {
	if m.fail > 0 {
		m.fail--
		return errors.New("sheet unavailable")
	}
	m.sure = append(m.sure, sure)
	m.notSure = append(m.notSure, notSure)
	return nil
}

func (m *memSink) all() []models.ClassificationRecord {
	var out []models.ClassificationRecord
	for i := range m.sure {
		out = append(out, m.sure[i]...)
		out = append(out, m.notSure[i]...)
	}
	return out
}

type staticKeywords struct {
	set models.KeywordSet
	err error
}

func (s staticKeywords) Keywords(context.Context) (models.KeywordSet, error) { return s.set, s.err }

var testKeywords = staticKeywords{set: models.KeywordSet{Good: []string{"kosher"}, Bad: []string{"casino"}}}

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestPipeline(f *stubFetcher, s *stubSearch, sink *memSink, opts Options) *Pipeline {
	opts.Now = func() time.Time { return fixedNow }
	deps := Deps{
		Fetcher:  f,
		Detector: langdetect.New(),
		Scorer:   classifier.New(nil, zerolog.Nop()),
		Search:   s,
		Filter:   urlfilter.New(urlfilter.DefaultBlocklist()),
		Keywords: testKeywords,
		Sink:     sink,
	}
	return New(deps, opts, zerolog.Nop())
}

func TestProcessKeywordsOneRecordPerSite(t *testing.T) {
	f := &stubFetcher{pages: map[string]models.Meta{
		"https://www.deli.com": {Title: "Kosher deli"},
		"https://shop.co.il":   {Title: "shop"},
		"https://casino.com":   {Title: "casino night"},
	}}
	s := &stubSearch{results: map[string][]string{
		"kosher":       {"https://www.deli.com/", "https://deli.com/menu", "https://shop.co.il/", "https://www.facebook.com/deli"},
		"inurl:kosher": {"https://casino.com/win", "https://shop.co.il/"},
		"bakery":       {"https://deli.com/"},
		"inurl:bakery": nil,
	}}
	sink := &memSink{}
	p := newTestPipeline(f, s, sink, Options{})

	sum, err := p.ProcessKeywords(context.Background(), KeywordRequest{
		Keywords:     []string{"kosher", "bakery"},
		IncludeInURL: true,
		Language:     "en",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Keywords)
	assert.Equal(t, 3, sum.URLs)
	assert.Len(t, s.queries, 4)

	records := sink.all()
	seen := map[string]bool{}
	for _, r := range records {
		key := urlfilter.SiteKey(r.URL)
		assert.False(t, seen[key], "duplicate site %s", key)
		seen[key] = true
		assert.NotContains(t, r.URL, "facebook.com")
	}
	require.Len(t, sink.sure, 2)
	assert.Len(t, sink.sure[0], 2)
	assert.Empty(t, sink.sure[1], "second keyword only finds an already scored site")
	assert.Equal(t, "https://www.deli.com", sink.sure[0][0].URL)
	assert.Equal(t, "search for 'kosher' (d)", sink.sure[0][0].Source)
	assert.Equal(t, "https://casino.com", sink.notSure[0][0].URL)
	assert.Equal(t, "search for 'inurl:kosher' (p)", sink.notSure[0][0].Source)
	assert.Equal(t, models.TierC, sink.notSure[0][0].Tier)
}

func TestProcessKeywordsKeywordLoadFailureIsFatal(t *testing.T) {
	sink := &memSink{}
	p := newTestPipeline(&stubFetcher{}, &stubSearch{}, sink, Options{})
	p.Keywords = staticKeywords{err: errors.New("spreadsheet not shared")}
	_, err := p.ProcessKeywords(context.Background(), KeywordRequest{Keywords: []string{"x"}})
	require.Error(t, err)
	assert.Empty(t, sink.sure)
}

func TestProcessKeywordsWriteFailureSkipsOnlyThatKeyword(t *testing.T) {
	f := &stubFetcher{pages: map[string]models.Meta{}}
	s := &stubSearch{results: map[string][]string{"a": {"https://a.il/"}, "b": {"https://b.il/"}}}
	sink := &memSink{fail: 1}
	p := newTestPipeline(f, s, sink, Options{})
	sum, err := p.ProcessKeywords(context.Background(), KeywordRequest{Keywords: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.WriteErrors)
	assert.Equal(t, 1, sum.Unwritten)
	assert.Equal(t, 2, sum.URLs)
	assert.Equal(t, 1, sum.Sure, "the lost batch is not counted as written")
	require.Len(t, sink.sure, 1)
	assert.Equal(t, "https://b.il", sink.sure[0][0].URL)
}

func TestProcessURLsFailedFlushNotCounted(t *testing.T) {
	f := &stubFetcher{pages: map[string]models.Meta{}, errs: map[string]error{
		"https://down.com": fault.Wrap(fault.Network, "fetch", "https://down.com", errors.New("refused")),
	}}
	sink := &memSink{fail: 1}
	p := newTestPipeline(f, nil, sink, Options{FlushEvery: 2})
	sum, err := p.ProcessURLs(context.Background(), []string{"a.il", "down.com", "b.il"}, "manual")
	require.NoError(t, err)
	assert.Equal(t, 3, sum.URLs)
	assert.Equal(t, 1, sum.FetchErrors)
	assert.Equal(t, 1, sum.WriteErrors)
	assert.Equal(t, 2, sum.Unwritten)
	assert.Equal(t, 1, sum.Sure)
	assert.Equal(t, 0, sum.NotSure)
}

func TestProcessKeywordsUsesPartialSearchResults(t *testing.T) {
	f := &stubFetcher{pages: map[string]models.Meta{}}
	s := &stubSearch{results: map[string][]string{"a": {"https://a.il/"}}, err: errors.New("429")}
	sink := &memSink{}
	sum, err := newTestPipeline(f, s, sink, Options{}).ProcessKeywords(context.Background(), KeywordRequest{Keywords: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Sure)
}

func TestProcessKeywordsCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := Options{}
	opts.KeywordDelay.Min, opts.KeywordDelay.Max = time.Hour, time.Hour
	_, err := newTestPipeline(&stubFetcher{}, &stubSearch{}, &memSink{}, opts).
		ProcessKeywords(ctx, KeywordRequest{Keywords: []string{"a"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessURLsFlushesInChunks(t *testing.T) {
	var urls []string
	pages := map[string]models.Meta{}
	for i := range 7 {
		u := fmt.Sprintf("https://site%d.com", i)
		urls = append(urls, u)
		pages[u] = models.Meta{Title: "kosher market"}
	}
	urls = append(urls, "site0.com", "  ", "https://www.site1.com")
	sink := &memSink{}
	p := newTestPipeline(&stubFetcher{pages: pages}, nil, sink, Options{FlushEvery: 3, Workers: 4})

	sum, err := p.ProcessURLs(context.Background(), urls, "manual")
	require.NoError(t, err)
	assert.Equal(t, 7, sum.URLs)
	assert.Equal(t, 7, sum.Sure)
	require.Len(t, sink.sure, 3)
	assert.Len(t, sink.sure[0], 3)
	assert.Len(t, sink.sure[2], 1)

	for i, r := range sink.all() {
		assert.Equal(t, urls[i], r.URL, "input order kept")
		assert.Equal(t, "manual", r.Source)
		assert.Equal(t, models.TierB, r.Tier)
	}
}

func TestProcessURLsAddsScheme(t *testing.T) {
	f := &stubFetcher{pages: map[string]models.Meta{"https://example.il": {}}}
	sink := &memSink{}
	_, err := newTestPipeline(f, nil, sink, Options{}).ProcessURLs(context.Background(), []string{"example.il"}, "csv")
	require.NoError(t, err)
	require.Len(t, sink.sure, 1)
	rec := sink.sure[0][0]
	assert.Equal(t, "https://example.il", rec.URL)
	assert.Equal(t, models.TierA, rec.Tier)
	assert.Equal(t, models.DetailsHebrew, rec.Details)
}

func TestClassifyFetchFailureYieldsErrorRecord(t *testing.T) {
	timeout := fault.Wrap(fault.Network, "fetch", "https://slow.com", context.DeadlineExceeded)
	f := &stubFetcher{errs: map[string]error{"https://slow.com": timeout}}
	p := newTestPipeline(f, nil, &memSink{}, Options{Retries: 2})

	rec := p.Classify(context.Background(), "https://slow.com", "src", testKeywords.set)
	assert.Equal(t, models.ErrorSentinel, rec.Title)
	assert.Equal(t, models.ErrorSentinel, rec.Description)
	assert.Equal(t, models.TierC, rec.Tier)
	assert.Equal(t, models.DetailsError, rec.Details)
	assert.Equal(t, fixedNow, rec.Timestamp)
	assert.Equal(t, 3, f.calls["https://slow.com"])
}

func TestClassifyParseFailureScoresEmptyMeta(t *testing.T) {
	f := &stubFetcher{errs: map[string]error{"https://x.co.il": fault.Wrap(fault.Parse, "parse", "https://x.co.il", errors.New("bad html"))}}
	p := newTestPipeline(f, nil, &memSink{}, Options{Retries: 3})
	rec := p.Classify(context.Background(), "https://x.co.il", "src", testKeywords.set)
	assert.Equal(t, models.TierA, rec.Tier)
	assert.Empty(t, rec.Title)
	assert.Equal(t, 1, f.calls["https://x.co.il"], "parse failures are not retried")
}

func TestClassifyHebrewPage(t *testing.T) {
	f := &stubFetcher{pages: map[string]models.Meta{"https://example.com": {Title: "חנות כשרה", Description: "casino"}}}
	rec := newTestPipeline(f, nil, &memSink{}, Options{}).Classify(context.Background(), "https://example.com", "", testKeywords.set)
	assert.Equal(t, models.TierA, rec.Tier)
	assert.Equal(t, models.LanguageHebrew, rec.Languages[0])
	assert.Equal(t, 1, rec.BadCount)
}

func TestClassifyUsesLocation(t *testing.T) {
	loc := time.FixedZone("IST", 2*60*60)
	p := newTestPipeline(&stubFetcher{}, nil, &memSink{}, Options{Location: loc})
	rec := p.Classify(context.Background(), "https://a.com", "", testKeywords.set)
	assert.Equal(t, "2024-03-01 12:00:00", rec.Timestamp.Format(models.TimestampLayout))
}
