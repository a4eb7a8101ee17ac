// Package app assembles the components named in a config.Config for the CLI
// and the server.
package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"archive-sifter/internal/classifier"
	"archive-sifter/internal/config"
	"archive-sifter/internal/crawler"
	"archive-sifter/internal/ioformats"
	"archive-sifter/internal/langdetect"
	"archive-sifter/internal/pipeline"
	"archive-sifter/internal/search"
	"archive-sifter/internal/sheets"
	"archive-sifter/internal/splitter"
	"archive-sifter/internal/translate"
	"archive-sifter/internal/urlfilter"
	"archive-sifter/internal/wikidata"
	"archive-sifter/pkg/logger"
)

type App struct {
	Config   config.Config
	Log      zerolog.Logger
	Fetcher  *crawler.HTTPClient
	Detector *langdetect.Detector
	Scorer   *classifier.Classifier
	Filter   *urlfilter.Filter
	Splitter *splitter.Splitter

	sheetsOnce sync.Once
	sheets     *sheets.Client
	sheetsErr  error
}

// New builds the components that need no remote credentials up front; Sheets
// and search clients are created on first use.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	var tr translate.Translator = translate.Noop{}
	if cfg.Translate.Provider == config.TranslateGoogle {
		g, err := translate.NewGoogle(ctx, cfg.Translate.APIKey, cfg.Translate.RPS)
		if err != nil {
			return nil, err
		}
		tr = g
	}

	blocklist := cfg.Blocklist
	if len(blocklist) == 0 {
		blocklist = urlfilter.DefaultBlocklist()
	}

	sp, err := splitter.New(cfg.Splitter.Languages...)
	if err != nil {
		return nil, err
	}

	return &App{
		Config: cfg,
		Log:    log,
		Fetcher: crawler.NewHTTPClient(crawler.Options{
			Timeout:     cfg.Fetch.Timeout,
			DialTimeout: cfg.Fetch.DialTimeout,
			SizeCap:     cfg.Fetch.MaxBytes,
			UserAgent:   cfg.Fetch.UserAgent,
		}),
		Detector: &langdetect.Detector{MinConfidence: cfg.Detect.MinConfidence},
		Scorer:   classifier.New(tr, logger.For("classifier")),
		Filter:   urlfilter.New(blocklist),
		Splitter: sp,
	}, nil
}

// Sheets returns the shared Sheets client, authorizing on first call.
func (a *App) Sheets(ctx context.Context) (*sheets.Client, error) {
	a.sheetsOnce.Do(func() {
		creds, err := a.Config.Credentials()
		if err != nil {
			a.sheetsErr = err
			return
		}
		a.sheets, a.sheetsErr = sheets.NewClient(ctx, creds)
	})
	return a.sheets, a.sheetsErr
}

func (a *App) SearchProvider(ctx context.Context) (search.Provider, error) {
	sc := a.Config.Search
	log := logger.For("search")
	switch sc.Provider {
	case config.SearchCustomSearch:
		return search.NewCustomSearch(ctx, sc.APIKey, sc.EngineID, sc.PageDelay(), log)
	default:
		g := search.NewGoogleScraper(sc.PageDelay(), log)
		if ua := a.Config.Fetch.UserAgent; ua != "" {
			g.UserAgent = ua
		}
		return g, nil
	}
}

// Keywords reads the keyword file when one is configured, the Keywords sheet otherwise.
func (a *App) Keywords(ctx context.Context) (pipeline.KeywordSource, error) {
	if a.Config.KeywordsFile != "" {
		return ioformats.KeywordFile{Path: a.Config.KeywordsFile}, nil
	}
	if a.Config.Sheets.KeywordsID == "" {
		return nil, fmt.Errorf("set keywords_file or sheets.keywords_id")
	}
	c, err := a.Sheets(ctx)
	if err != nil {
		return nil, err
	}
	return sheets.NewKeywordSource(c, a.Config.Sheets.KeywordsID), nil
}

// ResultSink opens the Sure and Not Sure sheets, or returns an NDJSON sink on
// w when dryRun is set.
func (a *App) ResultSink(ctx context.Context, dryRun bool, w io.Writer) (pipeline.Sink, error) {
	if dryRun {
		return ioformats.NewNDJSONSink(w), nil
	}
	if a.Config.Sheets.ResultsID == "" {
		return nil, fmt.Errorf("sheets.results_id is not set")
	}
	c, err := a.Sheets(ctx)
	if err != nil {
		return nil, err
	}
	return sheets.OpenResults(ctx, c, a.Config.Sheets.ResultsID)
}

func (a *App) PipelineOptions() pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.KeywordDelay = a.Config.Pipeline.KeywordDelay
	opts.FlushEvery = a.Config.Pipeline.FlushEvery
	opts.Workers = a.Config.Pipeline.Workers
	opts.Retries = a.Config.Fetch.Retries
	opts.Location = a.Config.Location()
	return opts
}

// Pipeline wires a pipeline around the given sources and sink. provider may be
// nil for URL-only runs.
func (a *App) Pipeline(provider search.Provider, kw pipeline.KeywordSource, sink pipeline.Sink) *pipeline.Pipeline {
	return pipeline.New(pipeline.Deps{
		Fetcher:  a.Fetcher,
		Detector: a.Detector,
		Scorer:   a.Scorer,
		Search:   provider,
		Filter:   a.Filter,
		Keywords: kw,
		Sink:     sink,
	}, a.PipelineOptions(), logger.For("pipeline"))
}

func (a *App) Wikidata() *wikidata.Client {
	wc := a.Config.Wikidata
	return wikidata.NewClient(wc.Endpoint, wc.UserAgent, wc.Timeout, logger.For("wikidata"))
}
