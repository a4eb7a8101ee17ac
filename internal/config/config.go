// Package config loads settings from a YAML file, SIFTER_* environment
// variables and built-in defaults, in that order of precedence after flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"archive-sifter/internal/throttle"
	"archive-sifter/pkg/logger"
)

const (
	EnvPrefix = "SIFTER"
	FileName  = ".archive-sifter"

	SearchScrape       = "scrape"
	SearchCustomSearch = "customsearch"
	TranslateGoogle    = "google"
	TranslateNone      = "none"
)

type Config struct {
	Log       logger.Config   `mapstructure:"log"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Translate TranslateConfig `mapstructure:"translate"`
	Search    SearchConfig    `mapstructure:"search"`
	Detect    DetectConfig    `mapstructure:"langdetect"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Sheets    SheetsConfig    `mapstructure:"sheets"`
	Wikidata  WikidataConfig  `mapstructure:"wikidata"`
	Splitter  SplitterConfig  `mapstructure:"splitter"`
	Server    ServerConfig    `mapstructure:"server"`
	// KeywordsFile, when set, replaces the Keywords sheet with a local YAML file.
	KeywordsFile string   `mapstructure:"keywords_file"`
	Blocklist    []string `mapstructure:"blocklist"`
}

type FetchConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	MaxBytes    int64         `mapstructure:"max_bytes"`
	UserAgent   string        `mapstructure:"user_agent"`
	Retries     int           `mapstructure:"retries"`
}

type TranslateConfig struct {
	Provider string  `mapstructure:"provider"`
	APIKey   string  `mapstructure:"api_key"`
	RPS      float64 `mapstructure:"rps"`
}

type SearchConfig struct {
	Provider    string         `mapstructure:"provider"`
	APIKey      string         `mapstructure:"api_key"`
	EngineID    string         `mapstructure:"engine_id"`
	Language    string         `mapstructure:"language"`
	Limit       int            `mapstructure:"limit"`
	// ScrapeDelay paces result pages of the HTML scraper, APIDelay those of Custom Search.
	ScrapeDelay throttle.Delay `mapstructure:"scrape_delay"`
	APIDelay    throttle.Delay `mapstructure:"api_delay"`
}

// PageDelay is the pause between result pages for the configured provider.
func (s SearchConfig) PageDelay() throttle.Delay {
	if s.Provider == SearchCustomSearch {
		return s.APIDelay
	}
	return s.ScrapeDelay
}

type DetectConfig struct {
	// MinConfidence replaces the statistical detector's reliability check when > 0.
	MinConfidence float64 `mapstructure:"min_confidence"`
}

type PipelineConfig struct {
	KeywordDelay throttle.Delay `mapstructure:"keyword_delay"`
	FlushEvery   int            `mapstructure:"flush_every"`
	Workers      int            `mapstructure:"workers"`
	Timezone     string         `mapstructure:"timezone"`
}

type SheetsConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	ResultsID       string `mapstructure:"results_id"`
	KeywordsID      string `mapstructure:"keywords_id"`
	SplitID         string `mapstructure:"split_id"`
	WikidataID      string `mapstructure:"wikidata_id"`
}

type WikidataConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Languages []string      `mapstructure:"languages"`
}

type SplitterConfig struct {
	Languages []string `mapstructure:"languages"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

func Default() Config {
	return Config{
		Log: logger.Config{Level: "info", Format: "json"},
		Fetch: FetchConfig{
			Timeout:     30 * time.Second,
			DialTimeout: 5 * time.Second,
			MaxBytes:    5 << 20,
			UserAgent:   "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			Retries:     0,
		},
		Translate: TranslateConfig{Provider: TranslateNone, RPS: 5},
		Search: SearchConfig{
			Provider:    SearchScrape,
			Language:    "en",
			Limit:       100,
			ScrapeDelay: throttle.Delay{Min: 2 * time.Second, Max: 10 * time.Second},
			APIDelay:    throttle.Delay{Min: time.Second, Max: 3 * time.Second},
		},
		Pipeline: PipelineConfig{
			KeywordDelay: throttle.Delay{Min: 10 * time.Second, Max: 60 * time.Second},
			FlushEvery:   20,
			Workers:      1,
			Timezone:     "Asia/Jerusalem",
		},
		Wikidata: WikidataConfig{
			UserAgent: "archive-sifter/1.0 (web archive research tooling)",
			Timeout:   60 * time.Second,
			Languages: []string{"he", "en"},
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// New returns a viper instance with defaults, env binding and, when found,
// the config file at path (or $HOME/.archive-sifter.yaml when path is empty).
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(FileName)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Decode unmarshals and validates the settings held by v.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load is New followed by Decode.
func Load(path string) (Config, error) {
	v, err := New(path)
	if err != nil {
		return Config{}, err
	}
	return Decode(v)
}

func (c Config) Validate() error {
	var errs []error
	switch c.Search.Provider {
	case SearchScrape:
	case SearchCustomSearch:
		if c.Search.APIKey == "" || c.Search.EngineID == "" {
			errs = append(errs, errors.New("search.api_key and search.engine_id are required for customsearch"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown search.provider %q", c.Search.Provider))
	}
	switch c.Translate.Provider {
	case TranslateNone:
	case TranslateGoogle:
		if c.Translate.APIKey == "" {
			errs = append(errs, errors.New("translate.api_key is required for google"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown translate.provider %q", c.Translate.Provider))
	}
	if c.Search.Language != "" {
		if _, err := language.Parse(c.Search.Language); err != nil {
			errs = append(errs, fmt.Errorf("search.language: %w", err))
		}
	}
	if _, err := time.LoadLocation(c.Pipeline.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("pipeline.timezone: %w", err))
	}
	if c.Pipeline.FlushEvery < 1 {
		errs = append(errs, errors.New("pipeline.flush_every must be at least 1"))
	}
	if c.Pipeline.Workers < 1 {
		errs = append(errs, errors.New("pipeline.workers must be at least 1"))
	}
	for name, d := range map[string]throttle.Delay{
		"pipeline.keyword_delay": c.Pipeline.KeywordDelay,
		"search.scrape_delay":    c.Search.ScrapeDelay,
		"search.api_delay":       c.Search.APIDelay,
	} {
		if d.Min < 0 || d.Max < d.Min {
			errs = append(errs, fmt.Errorf("%s: need 0 <= min <= max", name))
		}
	}
	if mc := c.Detect.MinConfidence; mc < 0 || mc > 1 {
		errs = append(errs, errors.New("langdetect.min_confidence must be between 0 and 1"))
	}
	if f := c.Log.Format; f != "" && f != "json" && f != "pretty" {
		errs = append(errs, fmt.Errorf("unknown log.format %q", f))
	}
	return errors.Join(errs...)
}

// Location is the zone used for record timestamps.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Pipeline.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Credentials reads the service account key file.
func (c Config) Credentials() ([]byte, error) {
	if c.Sheets.CredentialsFile == "" {
		return nil, errors.New("sheets.credentials_file is not set")
	}
	data, err := os.ReadFile(filepath.Clean(c.Sheets.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	return data, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)

	v.SetDefault("fetch.timeout", d.Fetch.Timeout)
	v.SetDefault("fetch.dial_timeout", d.Fetch.DialTimeout)
	v.SetDefault("fetch.max_bytes", d.Fetch.MaxBytes)
	v.SetDefault("fetch.user_agent", d.Fetch.UserAgent)
	v.SetDefault("fetch.retries", d.Fetch.Retries)

	v.SetDefault("translate.provider", d.Translate.Provider)
	v.SetDefault("translate.api_key", d.Translate.APIKey)
	v.SetDefault("translate.rps", d.Translate.RPS)

	v.SetDefault("search.provider", d.Search.Provider)
	v.SetDefault("search.api_key", d.Search.APIKey)
	v.SetDefault("search.engine_id", d.Search.EngineID)
	v.SetDefault("search.language", d.Search.Language)
	v.SetDefault("search.limit", d.Search.Limit)
	v.SetDefault("search.scrape_delay.min", d.Search.ScrapeDelay.Min)
	v.SetDefault("search.scrape_delay.max", d.Search.ScrapeDelay.Max)
	v.SetDefault("search.api_delay.min", d.Search.APIDelay.Min)
	v.SetDefault("search.api_delay.max", d.Search.APIDelay.Max)

	v.SetDefault("langdetect.min_confidence", d.Detect.MinConfidence)

	v.SetDefault("pipeline.keyword_delay.min", d.Pipeline.KeywordDelay.Min)
	v.SetDefault("pipeline.keyword_delay.max", d.Pipeline.KeywordDelay.Max)
	v.SetDefault("pipeline.flush_every", d.Pipeline.FlushEvery)
	v.SetDefault("pipeline.workers", d.Pipeline.Workers)
	v.SetDefault("pipeline.timezone", d.Pipeline.Timezone)

	v.SetDefault("sheets.credentials_file", d.Sheets.CredentialsFile)
	v.SetDefault("sheets.results_id", d.Sheets.ResultsID)
	v.SetDefault("sheets.keywords_id", d.Sheets.KeywordsID)
	v.SetDefault("sheets.split_id", d.Sheets.SplitID)
	v.SetDefault("sheets.wikidata_id", d.Sheets.WikidataID)

	v.SetDefault("wikidata.endpoint", d.Wikidata.Endpoint)
	v.SetDefault("wikidata.user_agent", d.Wikidata.UserAgent)
	v.SetDefault("wikidata.timeout", d.Wikidata.Timeout)
	v.SetDefault("wikidata.languages", d.Wikidata.Languages)

	v.SetDefault("splitter.languages", d.Splitter.Languages)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("keywords_file", d.KeywordsFile)
	v.SetDefault("blocklist", d.Blocklist)
}
