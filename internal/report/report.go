// Package report summarizes a run's per-variant CSV files into a
// cross-variant comparison.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/startline/startline/internal/result"
)

type VariantSummary struct {
	Name               string   `json:"name"`
	Runs               int      `json:"runs"`
	ValidRuns          int      `json:"valid_runs"`
	MeanStartupSeconds *float64 `json:"mean_startup_s"`
	MeanMemoryKB       *float64 `json:"mean_memory_kb"`
}

// Generate reads every per-variant CSV under runDir and writes a summary in
// the requested format.
func Generate(runDir, format string, w io.Writer) error {
	series, err := collectSeries(runDir)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		return fmt.Errorf("no variant CSV files found in %s", runDir)
	}

	summaries := summarize(series)

	switch format {
	case "markdown":
		return writeMarkdown(summaries, w)
	case "json":
		return writeJSON(summaries, w)
	default:
		return writeTable(summaries, w)
	}
}

func collectSeries(runDir string) ([]*result.Series, error) {
	paths, err := filepath.Glob(filepath.Join(runDir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("listing csv files: %w", err)
	}
	var series []*result.Series
	for _, p := range paths {
		s, err := result.ReadCSV(p)
		if err != nil {
			return nil, err
		}
		series = append(series, s)
	}
	return series, nil
}

func summarize(series []*result.Series) []VariantSummary {
	var summaries []VariantSummary
	for _, s := range series {
		valid := 0
		for _, sm := range s.Samples {
			if sm.StartupSeconds != nil {
				valid++
			}
		}
		summaries = append(summaries, VariantSummary{
			Name:               s.Variant,
			Runs:               len(s.Samples),
			ValidRuns:          valid,
			MeanStartupSeconds: s.MeanStartupSeconds,
			MeanMemoryKB:       s.MeanMemoryKB,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})
	return summaries
}

func writeTable(summaries []VariantSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIANT\tRUNS\tVALID\tSTARTUP (s)\tMAX MEMORY")
	fmt.Fprintln(tw, strings.Repeat("-", 60))
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n",
			s.Name, s.Runs, s.ValidRuns, startupCell(s.MeanStartupSeconds), memoryCell(s.MeanMemoryKB))
	}
	return tw.Flush()
}

func writeMarkdown(summaries []VariantSummary, w io.Writer) error {
	fmt.Fprintln(w, "| Variant | Runs | Valid | Startup (s) | Max Memory |")
	fmt.Fprintln(w, "|---|---|---|---|---|")
	for _, s := range summaries {
		fmt.Fprintf(w, "| %s | %d | %d | %s | %s |\n",
			s.Name, s.Runs, s.ValidRuns, startupCell(s.MeanStartupSeconds), memoryCell(s.MeanMemoryKB))
	}
	return nil
}

func writeJSON(summaries []VariantSummary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}

func startupCell(v *float64) string {
	if v == nil {
		return result.NA
	}
	return fmt.Sprintf("%.3f", *v)
}

func memoryCell(kb *float64) string {
	if kb == nil {
		return result.NA
	}
	return humanize.IBytes(uint64(*kb * 1024))
}

// Latest resolves a results dir's "latest" symlink.
func Latest(resultsDir string) (string, error) {
	resolved, err := filepath.EvalSymlinks(filepath.Join(resultsDir, "latest"))
	if err != nil {
		return "", fmt.Errorf("resolving latest run: %w", err)
	}
	if _, err := os.Stat(resolved); err != nil {
		return "", fmt.Errorf("resolving latest run: %w", err)
	}
	return resolved, nil
}
