// Package translate maps page text to English for keyword matching.
package translate

import (
	"context"
	"errors"
	"html"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	translatev2 "google.golang.org/api/translate/v2"

	"archive-sifter/internal/fault"
)

type Translator interface {
	// ToEnglish returns the English rendering of text.
	ToEnglish(ctx context.Context, text string) (string, error)
}

// Noop returns text unchanged.
type Noop struct{}

func (Noop) ToEnglish(_ context.Context, text string) (string, error) { return text, nil }

type backend func(ctx context.Context, text, target string) (string, error)

// Google calls the Cloud Translation v2 API, rate limited to protect the quota.
type Google struct {
	call    backend
	limiter *rate.Limiter
}

// NewGoogle builds a translator from an API key. rps <= 0 disables the limiter.
func NewGoogle(ctx context.Context, apiKey string, rps float64, opts ...option.ClientOption) (*Google, error) {
	if apiKey == "" {
		return nil, errors.New("translate: api key is required")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := translatev2.NewService(ctx, opts...)
	if err != nil {
		return nil, fault.Wrap(fault.ExternalService, "translate client", "", err)
	}
	call := func(ctx context.Context, text, target string) (string, error) {
		resp, err := svc.Translations.List([]string{text}, target).Format("text").Context(ctx).Do()
		if err != nil {
			return "", err
		}
		if len(resp.Translations) == 0 {
			return "", errors.New("empty translation response")
		}
		return resp.Translations[0].TranslatedText, nil
	}
	return newGoogle(call, rps), nil
}

func newGoogle(call backend, rps float64) *Google {
	g := &Google{call: call}
	if rps > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return g
}

func (g *Google) ToEnglish(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return text, fault.Wrap(fault.Translation, "translate", "", err)
		}
	}
	out, err := g.call(ctx, text, "en")
	if err != nil {
		return text, fault.Wrap(fault.Translation, "translate", "", err)
	}
	if out == "" {
		return text, nil
	}
	return html.UnescapeString(out), nil
}
