package search

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"archive-sifter/internal/fault"
	"archive-sifter/internal/models"
	"archive-sifter/internal/throttle"
)

// The Custom Search JSON API serves at most 100 results per query, 10 per page.
const (
	cseMaxResults = 100
	csePageSize   = 10
)

// CustomSearch queries a Programmable Search Engine.
type CustomSearch struct {
	page  pageFunc
	delay throttle.Delay
	log   zerolog.Logger
}

func NewCustomSearch(ctx context.Context, apiKey, engineID string, delay throttle.Delay, log zerolog.Logger, opts ...option.ClientOption) (*CustomSearch, error) {
	if apiKey == "" || engineID == "" {
		return nil, errors.New("custom search: api key and engine id are required")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fault.Wrap(fault.ExternalService, "custom search client", "", err)
	}
	page := func(ctx context.Context, q models.SearchQuery, offset, size int) ([]string, error) {
		call := svc.Cse.List().Q(q.Text).Cx(engineID).Start(int64(offset + 1)).Num(int64(size))
		if q.Language != "" {
			call = call.Lr("lang_" + q.Language).Hl(q.Language)
		}
		res, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fault.Wrap(fault.ExternalService, "custom search", q.Text, err)
		}
		links := make([]string, 0, len(res.Items))
		for _, it := range res.Items {
			if it.Link != "" {
				links = append(links, it.Link)
			}
		}
		return links, nil
	}
	return &CustomSearch{page: page, delay: delay, log: log}, nil
}

func (c *CustomSearch) Search(ctx context.Context, q models.SearchQuery) ([]string, error) {
	p := pager{pageSize: csePageSize, maxTotal: cseMaxResults, delay: c.delay, log: c.log}
	return p.collect(ctx, q, c.page)
}
