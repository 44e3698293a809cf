package metrics_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/startline/startline/internal/metrics"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPeakRSSKBGNUTime(t *testing.T) {
	path := writeFile(t, "app.rusage", `	Command being timed: "java -jar app.jar"
	User time (seconds): 4.21
	Maximum resident set size (kbytes): 284512
	Exit status: 0
`)
	kb, ok := metrics.PeakRSSKB(path)
	if !ok {
		t.Fatal("expected a value from GNU time output")
	}
	if kb != 284512 {
		t.Errorf("got %d KB, want 284512", kb)
	}
}

func TestPeakRSSKBBSDTime(t *testing.T) {
	path := writeFile(t, "app.log", `Started DemoApp in 1.042 seconds
        4.21 real         3.80 user         0.41 sys
   104857600  maximum resident set size
   104857600  peak memory footprint
`)
	kb, ok := metrics.PeakRSSKB(path)
	if !ok {
		t.Fatal("expected a value from BSD time output")
	}
	if kb != 102400 {
		t.Errorf("got %d KB, want 102400 (104857600 bytes)", kb)
	}
}

func TestPeakRSSKBMissing(t *testing.T) {
	if _, ok := metrics.PeakRSSKB(""); ok {
		t.Error("empty path should report no value")
	}
	if _, ok := metrics.PeakRSSKB(filepath.Join(t.TempDir(), "nope")); ok {
		t.Error("missing file should report no value")
	}
	path := writeFile(t, "garbage", "no memory lines here\n")
	if _, ok := metrics.PeakRSSKB(path); ok {
		t.Error("unrecognized report should report no value")
	}
}

func TestCountPauses(t *testing.T) {
	ready := time.Date(2026, 8, 26, 9, 15, 10, 0, time.UTC)
	stamp := func(off time.Duration) string {
		return ready.Add(off).Format("2006-01-02T15:04:05.000-0700")
	}
	log := fmt.Sprintf(`[%s][info][gc] GC(0) Pause Young (Normal) (G1 Evacuation Pause) 24M->8M(256M) 3.2ms
[%s][info][gc] GC(1) Pause Young (Concurrent Start) (Metadata GC Threshold) 40M->12M(256M) 4.1ms
[not-a-timestamp][info][gc] GC(2) Pause Young (Normal) 50M->14M(256M) 2.0ms
[%s][info][gc] GC(3) Concurrent Mark Cycle
[%s][info][gc] GC(4) Pause Remark 60M->58M(256M) 1.1ms
[%s][info][gc] GC(5) Pause Young (Normal) (G1 Evacuation Pause) 70M->20M(256M) 3.9ms
`, stamp(-2*time.Second), stamp(-1*time.Second), stamp(2*time.Second), stamp(3*time.Second), stamp(10*time.Second))

	path := writeFile(t, "app.log.gc", log)
	counts := metrics.CountPauses(path, ready)
	if counts.Startup != 2 {
		t.Errorf("startup pauses = %d, want 2", counts.Startup)
	}
	if counts.Benchmark != 2 {
		t.Errorf("benchmark pauses = %d, want 2", counts.Benchmark)
	}
}

func TestCountPausesMissingLog(t *testing.T) {
	counts := metrics.CountPauses(filepath.Join(t.TempDir(), "absent.gc"), time.Now())
	if counts.Startup != 0 || counts.Benchmark != 0 {
		t.Errorf("missing log should count zero, got %+v", counts)
	}
}
