package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchFormat string
	searchLimit  int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed code by meaning",
	Long: `Embed a natural-language query and return the closest indexed blocks from
the vector store written by the last analyze run.

Examples:
  codesense search "fetch a user profile"
  codesense search "retry with backoff" --limit=5 --format=json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchFormat, "format", "human", "Output format (json, human)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum results to return")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchLimit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", searchLimit)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	query := strings.Join(args, " ")
	results, err := a.pipeline.Search(ctx, query, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	return printResponse(cmd, &searchOutput{Query: query, Results: results}, searchFormat)
}
