package main

import (
	"github.com/spf13/cobra"
)

var urlsFlags struct {
	file   string
	source string
}

var urlsCmd = &cobra.Command{
	Use:   "urls [url...]",
	Short: "Classify a list of URLs",
	Long: `URLs come from the arguments and/or --file (CSV, TXT, NDJSON or XLSX).
Results are flushed every pipeline.flush_every URLs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSource(urlsFlags.source); err != nil {
			return err
		}
		urls, err := urlArgs(args, urlsFlags.file)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		kw, err := application.Keywords(ctx)
		if err != nil {
			return err
		}
		sink, err := application.ResultSink(ctx, dryRun, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		sum, err := application.Pipeline(nil, kw, sink).ProcessURLs(ctx, urls, urlsFlags.source)
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), sum)
		return nil
	},
}

func init() {
	urlsCmd.Flags().StringVarP(&urlsFlags.file, "file", "f", "", "read URLs from a CSV, TXT, NDJSON or XLSX file")
	urlsCmd.Flags().StringVarP(&urlsFlags.source, "source", "s", "", "list name recorded in the Source column (required)")
	rootCmd.AddCommand(urlsCmd)
}
