// Package search finds candidate URLs for a keyword through a web search provider.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"archive-sifter/internal/models"
	"archive-sifter/internal/throttle"
)

// Provider returns up to q.ResultLimit result URLs. On failure it returns the
// URLs collected so far together with the error.
type Provider interface {
	Search(ctx context.Context, q models.SearchQuery) ([]string, error)
}

// pageFunc fetches one result page starting at the zero-based offset.
type pageFunc func(ctx context.Context, q models.SearchQuery, offset, size int) ([]string, error)

type pager struct {
	pageSize int
	maxTotal int
	delay    throttle.Delay
	log      zerolog.Logger
}

// collect walks pages until the limit is met, a page comes back empty or a
// request fails. The randomized delay between pages keeps providers from
// blocking us.
func (p pager) collect(ctx context.Context, q models.SearchQuery, fetch pageFunc) ([]string, error) {
	limit := q.ResultLimit
	if p.maxTotal > 0 && limit > p.maxTotal {
		limit = p.maxTotal
	}
	var results []string
	for offset := 0; len(results) < limit; offset += p.pageSize {
		if offset > 0 {
			if err := p.delay.Wait(ctx); err != nil {
				return results, err
			}
		}
		links, err := fetch(ctx, q, offset, p.pageSize)
		if err != nil {
			p.log.Error().Err(err).Str("query", q.Text).Int("collected", len(results)).Msg("search page failed")
			return results, err
		}
		if len(links) == 0 {
			break
		}
		for _, l := range links {
			results = append(results, l)
			if len(results) >= limit {
				break
			}
		}
	}
	if len(results) == 0 {
		p.log.Warn().Str("query", q.Text).Msg("no results found")
	} else {
		p.log.Info().Str("query", q.Text).Int("results", len(results)).Msg("fetched results")
	}
	return results, nil
}

// InURL returns the inurl: variant of a query.
func InURL(q models.SearchQuery) models.SearchQuery {
	q.Text = "inurl:" + q.Text
	return q
}

// NormalizeLanguage validates a BCP 47 code such as "he" or "pt-BR" and
// returns its canonical form.
func NormalizeLanguage(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "en", nil
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", code, err)
	}
	return tag.String(), nil
}
