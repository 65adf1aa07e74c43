package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dpolishuk/codesense/internal/models"
	"github.com/spf13/cobra"
)

var (
	analyzeFormat   string
	analyzeURL      string
	analyzeBranch   string
	analyzeEntities string
	analyzeMinScore float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [dir]",
	Short: "Index a source tree and report duplicated or similar code",
	Long: `Parse a directory (or a git repository checked out with --url), build the
entity forest, fingerprint every function and method, and report structurally
and semantically similar code.

A forest produced by another parser can be analyzed with --entities.

Examples:
  codesense analyze ./src
  codesense analyze --url https://github.com/org/repo --branch main
  codesense analyze --entities forest.json --format=json
  codesense analyze . --min-score=0.9`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "human", "Output format (json, human)")
	analyzeCmd.Flags().StringVar(&analyzeURL, "url", "", "Git repository to clone and analyze")
	analyzeCmd.Flags().StringVar(&analyzeBranch, "branch", "", "Branch to check out with --url")
	analyzeCmd.Flags().StringVar(&analyzeEntities, "entities", "", "JSON file holding a parser forest to analyze")
	analyzeCmd.Flags().Float64Var(&analyzeMinScore, "min-score", 0, "Only report pairs scoring at least this much")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sources := len(args)
	if analyzeURL != "" {
		sources++
	}
	if analyzeEntities != "" {
		sources++
	}
	if sources > 1 {
		return errors.New("use only one of [dir], --url or --entities")
	}
	if analyzeMinScore < 0 || analyzeMinScore > 1 {
		return fmt.Errorf("--min-score must be within [0,1], got %v", analyzeMinScore)
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	out := &analyzeOutput{}
	var raw []models.RawEntity

	switch {
	case analyzeEntities != "":
		raw, err = readForest(analyzeEntities)
		if err != nil {
			return err
		}
	default:
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		if analyzeURL != "" {
			dir, err = a.checkouts.Checkout(ctx, analyzeURL, analyzeBranch)
			if err != nil {
				return err
			}
			if head, err := a.checkouts.Head(ctx, dir); err == nil {
				out.Commit = head
			}
		}

		scan, err := a.scanner.ScanDirectory(ctx, dir)
		if err != nil {
			return err
		}
		raw = scan.Entities
		out.Root = scan.Root
		out.Files = scan.FilesProcessed
		out.ScanErrors = scan.Errors
	}

	report, err := a.pipeline.Run(ctx, raw)
	if err != nil {
		return err
	}

	out.Project = report.Project
	out.Stats = report.Stats
	out.Matches = report.Duplicates(analyzeMinScore)

	return printResponse(cmd, out, analyzeFormat)
}

func readForest(path string) ([]models.RawEntity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var raw []models.RawEntity
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return raw, nil
}

func printResponse(cmd *cobra.Command, resp any, format string) error {
	output, err := FormatResponse(resp, OutputFormat(format))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}
