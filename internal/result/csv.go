package result

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// NA is the literal token for a missing value. Missing data is always
// rendered, never dropped or left blank: an N/A cell is the visible signal of
// a recovered failure.
const NA = "N/A"

// AggregateLabel names the trailing trimmed-mean row.
const AggregateLabel = "A"

var csvHeader = []string{"Run", "Startup Time (s)", "Max Memory (KB)", "Startup GCs", "Benchmark GCs", "Ran at"}

// WriteCSV renders a series as rows 1..N plus the aggregate row. GC counts
// and timestamps are per-trial only and stay N/A on the aggregate row.
func WriteCSV(path string, s *Series) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, sm := range s.Samples {
		row := []string{
			strconv.Itoa(sm.Run),
			formatFloat(sm.StartupSeconds),
			formatInt(sm.MaxMemoryKB),
			strconv.Itoa(sm.StartupGCs),
			strconv.Itoa(sm.BenchmarkGCs),
			sm.RanAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	agg := []string{
		AggregateLabel,
		formatFloat(s.MeanStartupSeconds),
		formatMeanKB(s.MeanMemoryKB),
		NA,
		NA,
		NA,
	}
	if err := w.Write(agg); err != nil {
		return fmt.Errorf("writing csv aggregate row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// ReadCSV parses a per-variant report back into a series, for the summary
// report command.
func ReadCSV(path string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening csv %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv %s: %w", path, err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("csv %s: empty", path)
	}

	variant := strings.TrimSuffix(filepath.Base(path), ".csv")
	s := &Series{Variant: variant}
	for _, rec := range records[1:] {
		if len(rec) < 6 {
			continue
		}
		if rec[0] == AggregateLabel {
			s.MeanStartupSeconds = parseFloat(rec[1])
			s.MeanMemoryKB = parseFloat(rec[2])
			continue
		}
		run, err := strconv.Atoi(rec[0])
		if err != nil {
			continue
		}
		sm := Sample{Run: run}
		sm.StartupSeconds = parseFloat(rec[1])
		if kb := parseFloat(rec[2]); kb != nil {
			sm.MaxMemoryKB = Int(int64(*kb))
		}
		sm.StartupGCs, _ = strconv.Atoi(rec[3])
		sm.BenchmarkGCs, _ = strconv.Atoi(rec[4])
		if at, err := time.Parse(time.RFC3339, rec[5]); err == nil {
			sm.RanAt = at
		}
		s.Samples = append(s.Samples, sm)
	}
	return s, nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return NA
	}
	return strconv.FormatFloat(*v, 'f', 3, 64)
}

func formatInt(v *int64) string {
	if v == nil {
		return NA
	}
	return strconv.FormatInt(*v, 10)
}

func formatMeanKB(v *float64) string {
	if v == nil {
		return NA
	}
	return strconv.FormatFloat(*v, 'f', 0, 64)
}

func parseFloat(s string) *float64 {
	if s == NA || s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
