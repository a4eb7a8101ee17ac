package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"archive-sifter/internal/ioformats"
	"archive-sifter/internal/splitter"
)

// SplitSheet receives one row per split URL.
const SplitSheet = "Split"

var splitFlags struct {
	file   string
	source string
}

var splitCmd = &cobra.Command{
	Use:   "split [url...]",
	Short: "Split domain names into dictionary words",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSource(splitFlags.source); err != nil {
			return err
		}
		urls, err := urlArgs(args, splitFlags.file)
		if err != nil {
			return err
		}
		log := application.Log
		now := time.Now().In(application.Config.Location())

		var results []splitter.Result
		var rows [][]string
		for _, u := range urls {
			r, err := application.Splitter.Split(u)
			if err != nil {
				log.Warn().Err(err).Str("url", u).Msg("skipping url")
				continue
			}
			results = append(results, r)
			rows = append(rows, r.Row(splitFlags.source, now))
		}

		if dryRun {
			items := make([]any, len(results))
			for i, r := range results {
				items[i] = r
			}
			return ioformats.WriteNDJSON(cmd.OutOrStdout(), items)
		}

		if application.Config.Sheets.SplitID == "" {
			return fmt.Errorf("sheets.split_id is not set")
		}
		ctx := cmd.Context()
		c, err := application.Sheets(ctx)
		if err != nil {
			return err
		}
		t, err := c.OpenTable(ctx, application.Config.Sheets.SplitID, SplitSheet, splitter.Headers)
		if err != nil {
			return err
		}
		if err := t.Append(ctx, rows); err != nil {
			return err
		}
		log.Info().Int("rows", len(rows)).Str("source", splitFlags.source).Msg("split results written")
		return nil
	},
}

func init() {
	splitCmd.Flags().StringVarP(&splitFlags.file, "file", "f", "", "read URLs from a CSV, TXT, NDJSON or XLSX file")
	splitCmd.Flags().StringVarP(&splitFlags.source, "source", "s", "", "list name recorded in the Source column (required)")
	rootCmd.AddCommand(splitCmd)
}
