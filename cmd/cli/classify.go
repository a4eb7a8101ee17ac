package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"archive-sifter/internal/crawler"
)

var classifyCmd = &cobra.Command{
	Use:   "classify url...",
	Short: "Classify URLs and print the records without writing to Sheets",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		src, err := application.Keywords(ctx)
		if err != nil {
			return err
		}
		kw, err := src.Keywords(ctx)
		if err != nil {
			return err
		}
		p := application.Pipeline(nil, src, nil)
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, u := range args {
			if u = crawler.NormalizeURL(u); u == "" {
				continue
			}
			if err := enc.Encode(p.Classify(ctx, u, "cli", kw)); err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
