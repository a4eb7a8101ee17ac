package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"archive-sifter/internal/app"
	"archive-sifter/internal/config"
	"archive-sifter/internal/ioformats"
	"archive-sifter/pkg/logger"
)

var (
	cfgFile  string
	dryRun   bool
	logLevel string

	application *app.App
)

var rootCmd = &cobra.Command{
	Use:   "sifter",
	Short: "Find and triage web archive candidates",
	Long: `sifter searches the web for keywords, fetches each candidate page, detects
its language and scores it against good and bad keyword lists. Results are
appended to the "Sure" and "Not Sure" sheets of a Google spreadsheet, or
written to stdout as NDJSON with --dry-run.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command with ctx cancelled on SIGINT/SIGTERM.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.archive-sifter.yaml)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "write results to stdout as NDJSON instead of Google Sheets")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

func setup(cmd *cobra.Command, _ []string) error {
	v, err := config.New(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		v.Set("log.level", logLevel)
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return err
	}
	log, err := logger.Setup(cfg.Log)
	if err != nil {
		return err
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Debug().Str("file", used).Msg("using config file")
	}
	application, err = app.New(cmd.Context(), cfg, log)
	return err
}

// urlArgs merges positional URLs with the contents of --file.
func urlArgs(args []string, file string) ([]string, error) {
	var urls []string
	for _, a := range args {
		urls = append(urls, ioformats.ParseList(a)...)
	}
	if file != "" {
		fromFile, err := ioformats.ReadURLs(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		urls = append(urls, fromFile...)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no URLs given; pass them as arguments or with --file")
	}
	return urls, nil
}

// printSummary writes v as indented JSON unless stdout carries NDJSON results.
func printSummary(w io.Writer, v any) {
	if dryRun {
		b, _ := json.Marshal(v)
		application.Log.Info().RawJSON("summary", b).Msg("done")
		return
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func requireSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("--source is required")
	}
	return nil
}
