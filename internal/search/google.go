package search

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"archive-sifter/internal/crawler"
	"archive-sifter/internal/fault"
	"archive-sifter/internal/models"
	"archive-sifter/internal/throttle"
)

const googleSearchURL = "https://www.google.com/search"

// GoogleScraper reads organic results from Google's HTML result pages.
type GoogleScraper struct {
	BaseURL   string
	Client    *http.Client
	UserAgent string
	Delay     throttle.Delay
	Log       zerolog.Logger
}

func NewGoogleScraper(delay throttle.Delay, log zerolog.Logger) *GoogleScraper {
	return &GoogleScraper{
		BaseURL:   googleSearchURL,
		Client:    &http.Client{Timeout: 30 * time.Second},
		UserAgent: crawler.DefaultUserAgent,
		Delay:     delay,
		Log:       log,
	}
}

func (g *GoogleScraper) Search(ctx context.Context, q models.SearchQuery) ([]string, error) {
	p := pager{pageSize: 10, delay: g.Delay, log: g.Log}
	return p.collect(ctx, q, g.page)
}

func (g *GoogleScraper) page(ctx context.Context, q models.SearchQuery, offset, size int) ([]string, error) {
	lang := q.Language
	if lang == "" {
		lang = "en"
	}
	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("hl", lang)
	params.Set("lr", "lang_"+lang)
	params.Set("num", strconv.Itoa(size))
	params.Set("start", strconv.Itoa(offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", g.UserAgent)
	req.Header.Set("Accept-Language", lang)

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.Network, "google search", q.Text, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fault.Wrap(fault.ExternalService, "google search", q.Text, &crawler.StatusError{Code: resp.StatusCode})
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fault.Wrap(fault.Parse, "google search", q.Text, err)
	}
	var links []string
	doc.Find("div.tF2Cxc").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Find("a").First().Attr("href"); ok && href != "" {
			links = append(links, href)
		}
	})
	return links, nil
}
