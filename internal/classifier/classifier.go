
package classifier

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"archive-sifter/internal/langdetect"
	"archive-sifter/internal/models"
	"archive-sifter/internal/translate"
)

// Result is the outcome of scoring one page.
type Result struct {
	Tier      models.Tier
	Details   string
	GoodCount int
	BadCount  int
}

type Classifier struct {
	translator translate.Translator
	log        zerolog.Logger
}

// New returns a classifier. A nil translator disables translation.
func New(tr translate.Translator, log zerolog.Logger) *Classifier {
	if tr == nil {
		tr = translate.Noop{}
	}
	return &Classifier{translator: tr, log: log}
}

// Score assigns a tier. The first matching rule wins:
//  1. .il domain -> A
//  2. Hebrew detected -> A
//  3. any good keyword (after translating non-English text) -> B
//  4. otherwise C
//
// Score never fails; a panic while scoring yields C with details "Error".
func (c *Classifier) Score(ctx context.Context, rawURL string, meta models.Meta, languages []string, kw models.KeywordSet) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Str("url", rawURL).Interface("panic", r).Msg("scoring failed")
			res = Result{Tier: models.TierC, Details: models.DetailsError}
		}
	}()

	if IsIsraeliDomain(rawURL) || contains(languages, models.LanguageHebrew) {
		good, bad := CountKeywords(meta.Title, meta.Description, kw)
		return Result{Tier: models.TierA, Details: models.DetailsHebrew, GoodCount: good, BadCount: bad}
	}

	title, desc := meta.Title, meta.Description
	if len(languages) == 0 || languages[0] != models.LanguageEnglish {
		title = c.toEnglish(ctx, rawURL, title)
		desc = c.toEnglish(ctx, rawURL, desc)
	}

	good, bad := CountKeywords(title, desc, kw)
	if good > 0 {
		return Result{Tier: models.TierB, Details: models.DetailsGood, GoodCount: good, BadCount: bad}
	}
	return Result{Tier: models.TierC, Details: models.DetailsNoGood, GoodCount: good, BadCount: bad}
}

func (c *Classifier) toEnglish(ctx context.Context, rawURL, text string) string {
	out, err := c.translator.ToEnglish(ctx, text)
	if err != nil {
		c.log.Warn().Err(err).Str("url", rawURL).Msg("translation failed, keeping original text")
		return text
	}
	return out
}

// IsIsraeliDomain reports whether rawURL ends in .il or .il/.
func IsIsraeliDomain(rawURL string) bool {
	u := strings.ToLower(strings.TrimSpace(rawURL))
	return strings.HasSuffix(u, ".il") || strings.HasSuffix(u, ".il/")
}

// CountKeywords tokenizes the lowercased title and description on whitespace and
// sums the occurrences of each good and bad keyword.
func CountKeywords(title, description string, kw models.KeywordSet) (good, bad int) {
	freq := map[string]int{}
	for _, w := range strings.Fields(langdetect.Combine(title, description)) {
		freq[w]++
	}
	for _, k := range kw.Good {
		good += freq[k]
	}
	for _, k := range kw.Bad {
		bad += freq[k]
	}
	return good, bad
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
