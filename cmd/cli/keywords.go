package main

import (
	"github.com/spf13/cobra"

	"archive-sifter/internal/ioformats"
	"archive-sifter/internal/pipeline"
	"archive-sifter/internal/search"
)

var keywordsFlags struct {
	language     string
	limit        int
	inURL        bool
	homepageOnly bool
}

var keywordsCmd = &cobra.Command{
	Use:   "keywords [keyword...]",
	Short: "Search keywords and classify the result sites",
	Long: `Each argument may hold several comma or newline separated keywords. Every
keyword is searched (plus its inurl: variant with --inurl), the results are
reduced to one URL per site and every site is fetched and scored.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var keywords []string
		for _, a := range args {
			keywords = append(keywords, ioformats.ParseList(a)...)
		}
		lang := keywordsFlags.language
		if lang == "" {
			lang = application.Config.Search.Language
		}
		lang, err := search.NormalizeLanguage(lang)
		if err != nil {
			return err
		}
		limit := keywordsFlags.limit
		if limit <= 0 {
			limit = application.Config.Search.Limit
		}

		provider, err := application.SearchProvider(ctx)
		if err != nil {
			return err
		}
		kw, err := application.Keywords(ctx)
		if err != nil {
			return err
		}
		sink, err := application.ResultSink(ctx, dryRun, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		sum, err := application.Pipeline(provider, kw, sink).ProcessKeywords(ctx, pipeline.KeywordRequest{
			Keywords:     keywords,
			Language:     lang,
			IncludeInURL: keywordsFlags.inURL,
			Limit:        limit,
			HomepageOnly: keywordsFlags.homepageOnly,
		})
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), sum)
		return nil
	},
}

func init() {
	f := keywordsCmd.Flags()
	f.StringVarP(&keywordsFlags.language, "lang", "l", "", "search language as a BCP 47 code (default search.language)")
	f.IntVarP(&keywordsFlags.limit, "limit", "n", 0, "maximum results per query (default search.limit)")
	f.BoolVar(&keywordsFlags.inURL, "inurl", false, "also search inurl:<keyword>")
	f.BoolVar(&keywordsFlags.homepageOnly, "homepage-only", false, "keep only results that are site roots")
	rootCmd.AddCommand(keywordsCmd)
}
