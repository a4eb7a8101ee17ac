// Package wikidata finds entities matching property/value filters through the
// Wikidata SPARQL endpoint.
package wikidata

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"archive-sifter/internal/fault"
	"archive-sifter/internal/models"
)

const (
	DefaultEndpoint = "https://query.wikidata.org/sparql"
	DefaultLimit    = 100
	entityPrefix    = "http://www.wikidata.org/entity/"

	WebsitesSheet = "Websites"
	NamesSheet    = "Names"
)

var (
	WebsitesHeaders = []string{"Name", "ID", "Website", "Property", "Value", "Instance Of", "Timestamp"}
	NamesHeaders    = []string{"Name", "ID", "Property", "Value", "Instance Of", "Timestamp"}
)

var (
	propertyRe = regexp.MustCompile(`^P\d+$`)
	itemRe     = regexp.MustCompile(`^Q\d+$`)
	langRe     = regexp.MustCompile(`^[a-z]{2,3}(-[a-z0-9]+)*$`)
)

// Filter requires ?item wdt:Property wd:Value.
type Filter struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

// Request is built fresh for every submission.
type Request struct {
	Filters   []Filter `json:"filters"`
	Languages []string `json:"languages"`
	Limit     int      `json:"limit"`
}

// Validate normalizes ids to upper case and rejects malformed filters.
func (r *Request) Validate() error {
	if len(r.Filters) == 0 {
		return errors.New("at least one filter is required")
	}
	for i, f := range r.Filters {
		f.Property = strings.ToUpper(strings.TrimSpace(f.Property))
		f.Value = strings.ToUpper(strings.TrimSpace(f.Value))
		if !propertyRe.MatchString(f.Property) {
			return fmt.Errorf("filter %d: invalid property %q", i+1, f.Property)
		}
		if !itemRe.MatchString(f.Value) {
			return fmt.Errorf("filter %d: invalid value %q", i+1, f.Value)
		}
		r.Filters[i] = f
	}
	langs := r.Languages[:0:0]
	for _, l := range r.Languages {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		if !langRe.MatchString(l) {
			return fmt.Errorf("invalid label language %q", l)
		}
		langs = append(langs, l)
	}
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	r.Languages = langs
	if r.Limit <= 0 {
		r.Limit = DefaultLimit
	}
	return nil
}

func (r Request) properties() string {
	out := make([]string, len(r.Filters))
	for i, f := range r.Filters {
		out[i] = f.Property
	}
	return strings.Join(out, ", ")
}

func (r Request) values() string {
	out := make([]string, len(r.Filters))
	for i, f := range r.Filters {
		out[i] = f.Value
	}
	return strings.Join(out, ", ")
}

// BuildQuery renders the SPARQL for a validated request.
func BuildQuery(r Request) string {
	var b strings.Builder
	b.WriteString("SELECT ?item ?itemLabel ?website ?instanceLabel WHERE {\n")
	for _, f := range r.Filters {
		fmt.Fprintf(&b, "  ?item wdt:%s wd:%s .\n", f.Property, f.Value)
	}
	b.WriteString("  OPTIONAL { ?item wdt:P856 ?website . }\n")
	b.WriteString("  OPTIONAL { ?item wdt:P31 ?instance . }\n")
	fmt.Fprintf(&b, "  SERVICE wikibase:label { bd:serviceParam wikibase:language \"%s\". }\n", strings.Join(r.Languages, ","))
	fmt.Fprintf(&b, "}\nLIMIT %d\n", r.Limit)
	return b.String()
}

type Entity struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Website    string   `json:"website,omitempty"`
	InstanceOf []string `json:"instanceOf,omitempty"`
}

type binding struct {
	Value string `json:"value"`
}

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]binding `json:"bindings"`
	} `json:"results"`
}

type Client struct {
	http     *resty.Client
	endpoint string
	log      zerolog.Logger
}

// NewClient targets endpoint, DefaultEndpoint when empty. Wikimedia rejects
// requests without a descriptive User-Agent.
func NewClient(endpoint, userAgent string, timeout time.Duration, log zerolog.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/sparql-results+json").
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && (r.StatusCode() == 429 || r.StatusCode() >= 500)
		})
	if userAgent != "" {
		c.SetHeader("User-Agent", userAgent)
	}
	return &Client{http: c, endpoint: endpoint, log: log}
}

// Query validates req, runs it and merges the rows into one entity per item.
func (c *Client) Query(ctx context.Context, req Request) ([]Entity, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	query := BuildQuery(req)
	c.log.Debug().Str("query", query).Msg("running sparql")

	var out sparqlResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{"query": query, "format": "json"}).
		SetResult(&out).
		Post(c.endpoint)
	if err != nil {
		return nil, fault.Wrap(fault.ExternalService, "wikidata query", req.values(), err)
	}
	if resp.IsError() {
		return nil, fault.Wrap(fault.ExternalService, "wikidata query", req.values(),
			fmt.Errorf("status %d: %s", resp.StatusCode(), truncate(resp.String(), 200)))
	}

	ents := mergeBindings(out.Results.Bindings)
	c.log.Info().Int("entities", len(ents)).Str("filters", req.values()).Msg("wikidata query done")
	return ents, nil
}

func mergeBindings(rows []map[string]binding) []Entity {
	var order []string
	byID := map[string]*Entity{}
	for _, row := range rows {
		id := strings.TrimPrefix(row["item"].Value, entityPrefix)
		if id == "" {
			continue
		}
		e, ok := byID[id]
		if !ok {
			e = &Entity{ID: id, Name: row["itemLabel"].Value}
			byID[id] = e
			order = append(order, id)
		}
		if e.Website == "" {
			e.Website = row["website"].Value
		}
		if inst := row["instanceLabel"].Value; inst != "" && !contains(e.InstanceOf, inst) {
			e.InstanceOf = append(e.InstanceOf, inst)
		}
	}
	out := make([]Entity, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

// Rows splits entities into "Websites" rows (those with an official website)
// and "Names" rows.
func Rows(req Request, ents []Entity, ts time.Time) (websites, names [][]string) {
	stamp := ts.Format(models.TimestampLayout)
	props, vals := req.properties(), req.values()
	for _, e := range ents {
		inst := strings.Join(e.InstanceOf, ", ")
		if e.Website != "" {
			websites = append(websites, []string{e.Name, e.ID, e.Website, props, vals, inst, stamp})
			continue
		}
		names = append(names, []string{e.Name, e.ID, props, vals, inst, stamp})
	}
	return websites, names
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
