// Package pipeline drives search, fetch, language detection, scoring and the
// batched write-back for keyword and URL batches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"archive-sifter/internal/classifier"
	"archive-sifter/internal/crawler"
	"archive-sifter/internal/fault"
	"archive-sifter/internal/models"
	"archive-sifter/internal/search"
	"archive-sifter/internal/throttle"
	"archive-sifter/internal/urlfilter"
)

type Fetcher interface {
	FetchPage(ctx context.Context, rawURL string) (models.Meta, error)
}

type Detector interface {
	Detect(title, description, hint string) []string
}

type Scorer interface {
	Score(ctx context.Context, rawURL string, meta models.Meta, languages []string, kw models.KeywordSet) classifier.Result
}

type KeywordSource interface {
	Keywords(ctx context.Context) (models.KeywordSet, error)
}

// Sink receives one batch of records split by destination table.
type Sink interface {
	Write(ctx context.Context, sure, notSure []models.ClassificationRecord) error
}

type Options struct {
	// KeywordDelay is the courtesy pause before each keyword's search.
	KeywordDelay throttle.Delay
	// FlushEvery bounds how many URL records are held before a write.
	FlushEvery int
	Workers    int
	// Retries is how many extra fetch attempts a network failure gets.
	Retries    int
	RetryDelay throttle.Delay
	Location   *time.Location
	Now        func() time.Time
}

func DefaultOptions() Options {
	return Options{
		KeywordDelay: throttle.Delay{Min: 10 * time.Second, Max: 60 * time.Second},
		FlushEvery:   20,
		Workers:      1,
		RetryDelay:   throttle.Delay{Min: time.Second, Max: 3 * time.Second},
		Location:     time.UTC,
	}
}

type Deps struct {
	Fetcher  Fetcher
	Detector Detector
	Scorer   Scorer
	Search   search.Provider
	Filter   *urlfilter.Filter
	Keywords KeywordSource
	Sink     Sink
}

type Pipeline struct {
	Deps
	opts Options
	log  zerolog.Logger
}

func New(deps Deps, opts Options, log zerolog.Logger) *Pipeline {
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = 20
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Filter == nil {
		deps.Filter = urlfilter.New(urlfilter.DefaultBlocklist())
	}
	return &Pipeline{Deps: deps, opts: opts, log: log}
}

type KeywordRequest struct {
	Keywords     []string
	Language     string
	IncludeInURL bool
	Limit        int
	HomepageOnly bool
}

// Summary counts what a run produced. URLs and FetchErrors count classified
// records; Sure and NotSure count only records that reached the sink.
// Unwritten holds the records of the WriteErrors failed batches.
type Summary struct {
	Keywords    int `json:"keywords"`
	URLs        int `json:"urls"`
	Sure        int `json:"sure"`
	NotSure     int `json:"notSure"`
	FetchErrors int `json:"fetchErrors"`
	WriteErrors int `json:"writeErrors"`
	Unwritten   int `json:"unwritten"`
}

func (s *Summary) classified(sure, notSure []models.ClassificationRecord) {
	s.URLs += len(sure) + len(notSure)
	for _, r := range notSure {
		if r.Details == models.DetailsError {
			s.FetchErrors++
		}
	}
}

func (s *Summary) written(sure, notSure []models.ClassificationRecord) {
	s.Sure += len(sure)
	s.NotSure += len(notSure)
}

func (s *Summary) lost(sure, notSure []models.ClassificationRecord) {
	s.WriteErrors++
	s.Unwritten += len(sure) + len(notSure)
}

// ProcessKeywords searches every keyword, classifies the surviving URLs and
// writes one batch per keyword. Failing to load the keyword lists aborts the
// run; a failed write only loses that keyword's batch.
func (p *Pipeline) ProcessKeywords(ctx context.Context, req KeywordRequest) (Summary, error) {
	var sum Summary
	if p.Search == nil {
		return sum, errors.New("no search provider configured")
	}
	log := p.log.With().Str("run_id", uuid.NewString()).Logger()

	kw, err := p.Keywords.Keywords(ctx)
	if err != nil {
		return sum, fmt.Errorf("load keywords: %w", err)
	}

	seen := map[string]struct{}{}
	for _, keyword := range req.Keywords {
		klog := log.With().Str("keyword", keyword).Logger()
		klog.Info().Msg("processing keyword")
		if err := p.opts.KeywordDelay.Wait(ctx); err != nil {
			return sum, err
		}

		hits := p.searchKeyword(ctx, klog, keyword, req)
		hits = unseen(hits, seen)
		sure, notSure, err := p.classifyAll(ctx, hits, kw)
		if err != nil {
			return sum, err
		}
		sum.Keywords++
		sum.classified(sure, notSure)

		if err := p.Sink.Write(ctx, sure, notSure); err != nil {
			sum.lost(sure, notSure)
			klog.Error().Err(err).Msg("writing results failed")
			continue
		}
		sum.written(sure, notSure)
		klog.Info().Int("sure", len(sure)).Int("not_sure", len(notSure)).Msg("finished keyword")
	}
	return sum, nil
}

func (p *Pipeline) searchKeyword(ctx context.Context, log zerolog.Logger, keyword string, req KeywordRequest) []models.SearchHit {
	q := models.SearchQuery{Text: keyword, Language: req.Language, HomepageOnly: req.HomepageOnly, ResultLimit: req.Limit}
	queries := []models.SearchQuery{q}
	if req.IncludeInURL {
		queries = append(queries, search.InURL(q))
	}
	lists := make([][]models.SearchHit, 0, len(queries))
	for _, sq := range queries {
		results, err := p.Search.Search(ctx, sq)
		if err != nil {
			log.Warn().Err(err).Str("query", sq.Text).Int("kept", len(results)).Msg("search stopped early")
		}
		lists = append(lists, p.Filter.Apply(p.Filter.Normalize(sq.Text, results, sq.HomepageOnly)))
	}
	return p.Filter.Merge(lists...)
}

// ProcessURLs classifies a caller supplied URL list, flushing every
// FlushEvery records.
func (p *Pipeline) ProcessURLs(ctx context.Context, urls []string, source string) (Summary, error) {
	var sum Summary
	log := p.log.With().Str("run_id", uuid.NewString()).Str("source", source).Logger()

	kw, err := p.Keywords.Keywords(ctx)
	if err != nil {
		return sum, fmt.Errorf("load keywords: %w", err)
	}

	hits := make([]models.SearchHit, 0, len(urls))
	for _, u := range urls {
		if u = crawler.NormalizeURL(u); u != "" {
			hits = append(hits, models.SearchHit{URL: u, Source: source})
		}
	}
	hits = p.Filter.Apply(hits)
	log.Info().Int("urls", len(hits)).Int("submitted", len(urls)).Msg("processing url list")

	for start := 0; start < len(hits); start += p.opts.FlushEvery {
		end := min(start+p.opts.FlushEvery, len(hits))
		sure, notSure, err := p.classifyAll(ctx, hits[start:end], kw)
		if err != nil {
			return sum, err
		}
		sum.classified(sure, notSure)
		if err := p.Sink.Write(ctx, sure, notSure); err != nil {
			sum.lost(sure, notSure)
			log.Error().Err(err).Int("from", start).Int("to", end).Msg("writing results failed")
			continue
		}
		sum.written(sure, notSure)
		log.Info().Int("done", end).Int("total", len(hits)).Msg("flushed results")
	}
	return sum, nil
}

// classifyAll classifies hits with up to Workers in flight, keeping input order.
func (p *Pipeline) classifyAll(ctx context.Context, hits []models.SearchHit, kw models.KeywordSet) (sure, notSure []models.ClassificationRecord, err error) {
	records := make([]models.ClassificationRecord, len(hits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, h := range hits {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records[i] = p.Classify(gctx, h.URL, h.Source, kw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	for _, r := range records {
		if r.Tier.Sure() {
			sure = append(sure, r)
		} else {
			notSure = append(notSure, r)
		}
	}
	return sure, notSure, nil
}

// Classify fetches, detects and scores one URL. It always returns a record;
// an unreachable page yields the "Error" sentinel record in tier C.
func (p *Pipeline) Classify(ctx context.Context, rawURL, source string, kw models.KeywordSet) models.ClassificationRecord {
	rec := models.ClassificationRecord{
		URL:       rawURL,
		Source:    source,
		Timestamp: p.opts.Now().In(p.opts.Location),
	}

	meta, err := p.fetch(ctx, rawURL)
	switch {
	case err == nil:
	case fault.Is(err, fault.Parse):
		p.log.Warn().Err(err).Str("url", rawURL).Msg("unparseable page, scoring without metadata")
		meta = models.Meta{}
	default:
		p.log.Error().Err(err).Str("url", rawURL).Msg("fetch failed")
		rec.Title, rec.Description = models.ErrorSentinel, models.ErrorSentinel
		rec.Tier, rec.Details = models.TierC, models.DetailsError
		rec.Languages = []string{models.LanguageUnknown}
		return rec
	}

	rec.Title, rec.Description = meta.Title, meta.Description
	rec.Languages = p.Detector.Detect(meta.Title, meta.Description, meta.Language)
	res := p.Scorer.Score(ctx, rawURL, meta, rec.Languages, kw)
	rec.Tier, rec.Details, rec.GoodCount, rec.BadCount = res.Tier, res.Details, res.GoodCount, res.BadCount
	p.log.Debug().Str("url", rawURL).Str("tier", string(rec.Tier)).Strs("languages", rec.Languages).Msg("classified")
	return rec
}

func (p *Pipeline) fetch(ctx context.Context, rawURL string) (models.Meta, error) {
	meta, err := p.Fetcher.FetchPage(ctx, rawURL)
	for attempt := 0; err != nil && attempt < p.opts.Retries && fault.Is(err, fault.Network); attempt++ {
		if werr := p.opts.RetryDelay.Wait(ctx); werr != nil {
			return meta, err
		}
		p.log.Debug().Err(err).Str("url", rawURL).Int("attempt", attempt+1).Msg("retrying fetch")
		meta, err = p.Fetcher.FetchPage(ctx, rawURL)
	}
	return meta, err
}

// unseen drops hits whose site was classified earlier in the run and marks the rest.
func unseen(hits []models.SearchHit, seen map[string]struct{}) []models.SearchHit {
	out := hits[:0:0]
	for _, h := range hits {
		key := urlfilter.SiteKey(h.URL)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
	}
	return out
}
