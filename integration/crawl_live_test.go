
//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"archive-sifter/internal/classifier"
	"archive-sifter/internal/crawler"
	"archive-sifter/internal/langdetect"
	"archive-sifter/internal/models"
)

var liveKeywords = models.KeywordSet{Good: []string{"israel", "jewish"}, Bad: []string{"casino"}}

func TestIsraeliGovernmentSite(t *testing.T) {
	// Live site; subject to change or blocking.
	url := "https://www.gov.il/en"

	client := crawler.NewHTTPClient(crawler.Options{Timeout: 25 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	meta, err := client.FetchPage(ctx, url)
	if err != nil {
		t.Skipf("skipping: fetch failed due to network/robots/captcha: %v", err)
		return
	}

	langs := langdetect.New().Detect(meta.Title, meta.Description, meta.Language)
	if len(langs) == 0 {
		t.Fatalf("expected at least one language")
	}
	r := classifier.New(nil, zerolog.Nop()).Score(ctx, url, meta, langs, liveKeywords)
	if r.Tier != models.TierA {
		t.Errorf("expected tier A for gov.il, got %s (%s)", r.Tier, r.Details)
	}
}

func TestWikipediaHebrewPage(t *testing.T) {
	url := "https://he.wikipedia.org/wiki/ירושלים"

	client := crawler.NewHTTPClient(crawler.Options{Timeout: 25 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	meta, err := client.FetchPage(ctx, url)
	if err != nil {
		t.Skipf("skipping: fetch failed: %v", err)
		return
	}
	langs := langdetect.New().Detect(meta.Title, meta.Description, meta.Language)
	if langs[0] != models.LanguageHebrew {
		t.Errorf("expected hebrew first, got %v", langs)
	}
}
