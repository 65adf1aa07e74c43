package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dpolishuk/codesense/internal/analysis"
	"github.com/dpolishuk/codesense/internal/duplicates"
	"github.com/dpolishuk/codesense/internal/vectorstore"
)

// OutputFormat selects how command results are printed.
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// analyzeOutput is what the analyze command prints.
type analyzeOutput struct {
	Project    string             `json:"project"`
	Root       string             `json:"root,omitempty"`
	Commit     string             `json:"commit,omitempty"`
	Files      int                `json:"files"`
	ScanErrors []string           `json:"scanErrors,omitempty"`
	Stats      analysis.Stats     `json:"stats"`
	Matches    []duplicates.Match `json:"matches"`
}

type searchOutput struct {
	Query   string              `json:"query"`
	Results []vectorstore.Match `json:"results"`
}

// FormatResponse renders resp in the requested format.
func FormatResponse(resp any, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(resp any) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatHuman(resp any) (string, error) {
	switch v := resp.(type) {
	case *analyzeOutput:
		return formatAnalyzeHuman(v), nil
	case *searchOutput:
		return formatSearchHuman(v), nil
	default:
		return formatJSON(resp)
	}
}

func formatAnalyzeHuman(out *analyzeOutput) string {
	var b strings.Builder
	s := out.Stats

	fmt.Fprintf(&b, "Project %s", out.Project)
	if out.Commit != "" {
		fmt.Fprintf(&b, " @ %s", shortCommit(out.Commit))
	}
	b.WriteString("\n")
	if out.Root != "" {
		fmt.Fprintf(&b, "Scanned %d files in %s\n", out.Files, out.Root)
	}
	fmt.Fprintf(&b, "Entities: %d (%d merged, %d skipped)\n", s.Entities, s.Merged, s.Skipped)
	fmt.Fprintf(&b, "Blocks:   %d indexed, %d reused, %d embedding fallbacks\n", s.Indexed, s.Reused, s.EmbedFallbacks)
	fmt.Fprintf(&b, "Descriptions: %d generated, %d cached, %d fallbacks\n", s.Described, s.CacheHits, s.DescribeFallbacks)
	fmt.Fprintf(&b, "Took %s\n", s.Duration.Round(time.Millisecond))

	for _, e := range out.ScanErrors {
		fmt.Fprintf(&b, "  ! %s\n", e)
	}

	if len(out.Matches) == 0 {
		b.WriteString("\nNo similar code found.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "\n%d similar pairs:\n", len(out.Matches))
	for _, m := range out.Matches {
		fmt.Fprintf(&b, "\n  %.2f  %s (%s)\n", m.Score, m.Classification, m.Signal)
		fmt.Fprintf(&b, "        %s  %s\n", sideLabel(m.A), m.A.FilePath)
		fmt.Fprintf(&b, "        %s  %s\n", sideLabel(m.B), m.B.FilePath)
	}
	return b.String()
}

func formatSearchHuman(out *searchOutput) string {
	if len(out.Results) == 0 {
		return fmt.Sprintf("No results for %q\n", out.Query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Results for %q:\n", out.Query)
	for i, r := range out.Results {
		name := r.Entry.ComponentName
		if r.Entry.MethodName != "" {
			name += "." + r.Entry.MethodName
		}
		fmt.Fprintf(&b, "%2d. %.3f  %s  %s\n", i+1, r.Score, name, r.Entry.FilePath)
		if r.Entry.Description != "" {
			fmt.Fprintf(&b, "           %s\n", r.Entry.Description)
		}
	}
	return b.String()
}

func sideLabel(s duplicates.Side) string {
	if s.MethodName != "" {
		return s.EntityName + "." + s.MethodName
	}
	return s.EntityName
}

func shortCommit(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
