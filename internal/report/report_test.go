package report_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/startline/startline/internal/report"
	"github.com/startline/startline/internal/result"
)

func writeRun(t *testing.T) string {
	t.Helper()
	runDir := t.TempDir()
	at := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	baseline := &result.Series{
		Variant: "baseline",
		Samples: []result.Sample{
			{Run: 1, StartupSeconds: result.Float(2.301), MaxMemoryKB: result.Int(310000), RanAt: at},
			{Run: 2, StartupSeconds: result.Float(2.287), MaxMemoryKB: result.Int(305000), RanAt: at},
			{Run: 3, StartupSeconds: result.Float(2.350), MaxMemoryKB: result.Int(308000), RanAt: at},
		},
		MeanStartupSeconds: result.Float(2.301),
		MeanMemoryKB:       result.Float(308000),
	}
	crac := &result.Series{
		Variant: "crac",
		Samples: []result.Sample{
			{Run: 1, StartupSeconds: result.Float(0.055), MaxMemoryKB: result.Int(250000), RanAt: at},
			{Run: 2, RanAt: at},
			{Run: 3, StartupSeconds: result.Float(0.051), MaxMemoryKB: result.Int(249000), RanAt: at},
		},
	}
	for _, s := range []*result.Series{baseline, crac} {
		if err := result.WriteCSV(result.CSVPath(runDir, s.Variant), s); err != nil {
			t.Fatal(err)
		}
	}
	return runDir
}

func TestGenerateTable(t *testing.T) {
	runDir := writeRun(t)
	var buf bytes.Buffer
	if err := report.Generate(runDir, "table", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"VARIANT", "baseline", "crac", "2.301", "301 MiB"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	// crac never reached the 3 valid samples a trimmed mean needs.
	cracLine := ""
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "crac") {
			cracLine = line
		}
	}
	if !strings.Contains(cracLine, result.NA) {
		t.Errorf("crac row should carry N/A aggregates: %q", cracLine)
	}
}

func TestGenerateMarkdown(t *testing.T) {
	runDir := writeRun(t)
	var buf bytes.Buffer
	if err := report.Generate(runDir, "markdown", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "| Variant |") {
		t.Errorf("unexpected markdown header:\n%s", out)
	}
	if !strings.Contains(out, "| baseline | 3 | 3 |") {
		t.Errorf("missing baseline row:\n%s", out)
	}
	if !strings.Contains(out, "| crac | 3 | 2 |") {
		t.Errorf("crac row should count 2 valid runs of 3:\n%s", out)
	}
}

func TestGenerateJSON(t *testing.T) {
	runDir := writeRun(t)
	var buf bytes.Buffer
	if err := report.Generate(runDir, "json", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var summaries []report.VariantSummary
	if err := json.Unmarshal(buf.Bytes(), &summaries); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, buf.String())
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	if summaries[0].Name != "baseline" || summaries[1].Name != "crac" {
		t.Errorf("summaries out of order: %v, %v", summaries[0].Name, summaries[1].Name)
	}
	if summaries[1].MeanStartupSeconds != nil {
		t.Errorf("crac mean should be null, got %v", *summaries[1].MeanStartupSeconds)
	}
}

func TestGenerateEmptyRunDir(t *testing.T) {
	if err := report.Generate(t.TempDir(), "table", &bytes.Buffer{}); err == nil {
		t.Error("expected an error for a run dir without CSVs")
	}
}

func TestLatest(t *testing.T) {
	base := t.TempDir()
	runDir, err := result.CreateRunDir(base)
	if err != nil {
		t.Fatal(err)
	}
	got, err := report.Latest(base)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got != runDir {
		t.Errorf("Latest = %s, want %s", got, runDir)
	}

	if _, err := report.Latest(t.TempDir()); err == nil {
		t.Error("expected an error when no runs exist")
	}
}
