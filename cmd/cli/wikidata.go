package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"archive-sifter/internal/ioformats"
	"archive-sifter/internal/wikidata"
)

var wikidataFlags struct {
	filters   []string
	languages []string
	limit     int
}

var wikidataCmd = &cobra.Command{
	Use:   "wikidata",
	Short: "Query Wikidata for items matching property=value filters",
	Example: `  sifter wikidata --filter P31=Q34627 --filter P17=Q801 --lang he,en
  sifter wikidata --filter P31=Q16970 --limit 500 --dry-run`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		req, err := parseWikidataRequest(wikidataFlags.filters, wikidataFlags.languages, wikidataFlags.limit)
		if err != nil {
			return err
		}
		if len(req.Languages) == 0 {
			req.Languages = application.Config.Wikidata.Languages
		}
		ctx := cmd.Context()
		ents, err := application.Wikidata().Query(ctx, req)
		if err != nil {
			return err
		}

		if dryRun {
			items := make([]any, len(ents))
			for i, e := range ents {
				items[i] = e
			}
			return ioformats.WriteNDJSON(cmd.OutOrStdout(), items)
		}

		id := application.Config.Sheets.WikidataID
		if id == "" {
			return fmt.Errorf("sheets.wikidata_id is not set")
		}
		websites, names := wikidata.Rows(req, ents, time.Now().In(application.Config.Location()))
		c, err := application.Sheets(ctx)
		if err != nil {
			return err
		}
		wsTable, err := c.OpenTable(ctx, id, wikidata.WebsitesSheet, wikidata.WebsitesHeaders)
		if err != nil {
			return err
		}
		namesTable, err := c.OpenTable(ctx, id, wikidata.NamesSheet, wikidata.NamesHeaders)
		if err != nil {
			return err
		}
		if err := wsTable.Append(ctx, websites); err != nil {
			return err
		}
		if err := namesTable.Append(ctx, names); err != nil {
			return err
		}
		application.Log.Info().Int("websites", len(websites)).Int("names", len(names)).Msg("wikidata results written")
		return nil
	},
}

// parseWikidataRequest turns P31=Q5 style flags into a request.
func parseWikidataRequest(filters, languages []string, limit int) (wikidata.Request, error) {
	req := wikidata.Request{Languages: languages, Limit: limit}
	for _, f := range filters {
		prop, val, ok := strings.Cut(f, "=")
		if !ok {
			return req, fmt.Errorf("filter %q must look like P31=Q5", f)
		}
		req.Filters = append(req.Filters, wikidata.Filter{Property: prop, Value: val})
	}
	return req, nil
}

func init() {
	f := wikidataCmd.Flags()
	f.StringArrayVar(&wikidataFlags.filters, "filter", nil, "property=value filter, repeatable (e.g. P31=Q5)")
	f.StringSliceVar(&wikidataFlags.languages, "lang", nil, "label languages in preference order (default wikidata.languages)")
	f.IntVar(&wikidataFlags.limit, "limit", wikidata.DefaultLimit, "maximum number of rows")
	_ = wikidataCmd.MarkFlagRequired("filter")
	rootCmd.AddCommand(wikidataCmd)
}
