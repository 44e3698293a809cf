package runner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/startline/startline/internal/config"
	"github.com/startline/startline/internal/proc"
	"github.com/startline/startline/internal/result"
	"github.com/startline/startline/internal/variant"
)

var fakeMarker = variant.Marker{Pattern: regexp.MustCompile(`Started \S+ in ([0-9.]+) seconds`)}

// fakeStrategy serves a canned readiness line from a shell one-liner instead
// of a JVM, so the sequencer can be driven end to end in-process.
type fakeStrategy struct {
	name     string
	artifact string
	launch   []string
	steps    []variant.TrainStep
	trained  *variant.Artifact
	marker   variant.Marker
}

func (f *fakeStrategy) Name() string        { return f.name }
func (f *fakeStrategy) JavaVersion() string { return "" }

func (f *fakeStrategy) LaunchCommand(gcLog string, extra []string) []string { return f.launch }
func (f *fakeStrategy) ArtifactPath() string                               { return f.artifact }

func (f *fakeStrategy) TrainSteps(gcLog string) []variant.TrainStep { return f.steps }
func (f *fakeStrategy) TrainedArtifact() *variant.Artifact          { return f.trained }
func (f *fakeStrategy) Checkpoint() *variant.CheckpointHook         { return nil }

func (f *fakeStrategy) ReadyMarker() variant.Marker {
	if f.marker.Pattern != nil {
		return f.marker
	}
	return fakeMarker
}

func (f *fakeStrategy) PidQueries(h *proc.Handle) []proc.Query { return nil }
func (f *fakeStrategy) Sudo() bool                             { return false }
func (f *fakeStrategy) Grace() time.Duration                   { return 500 * time.Millisecond }

func testConfig(baseURL string, warmups, runs int) *config.Config {
	return &config.Config{
		App:     config.App{BaseURL: baseURL, Paths: []string{"/"}, RequestDelayMS: 1},
		Warmups: warmups,
		Runs:    runs,
		Timeouts: config.Timeouts{
			ReadySeconds:      10,
			HTTPReadySeconds:  2,
			TrainSeconds:      20,
			CheckpointSeconds: 5,
		},
	}
}

func okServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fakeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.jar")
	if err := os.WriteFile(path, []byte("jar"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunVariantProducesSeries(t *testing.T) {
	srv := okServer(t)
	runDir := t.TempDir()

	s := &fakeStrategy{
		name:     "fake",
		artifact: fakeArtifact(t),
		launch:   []string{"/bin/sh", "-c", `echo "Started FakeApp in 0.123 seconds"; sleep 30`},
	}
	opts := &Options{Strategy: s, Config: testConfig(srv.URL, 1, 4), RunDir: runDir}

	series, err := RunVariant(context.Background(), opts)
	if err != nil {
		t.Fatalf("RunVariant: %v", err)
	}
	if len(series.Samples) != 4 {
		t.Fatalf("got %d samples, want 4 (warm-up runs must not be recorded)", len(series.Samples))
	}
	for i, sm := range series.Samples {
		if sm.Run != i+1 {
			t.Errorf("sample %d numbered %d", i, sm.Run)
		}
		if sm.StartupSeconds == nil || *sm.StartupSeconds != 0.123 {
			t.Errorf("sample %d startup = %v, want 0.123", i, sm.StartupSeconds)
		}
		if sm.RanAt.IsZero() {
			t.Errorf("sample %d missing timestamp", i)
		}
	}
	if series.MeanStartupSeconds == nil || *series.MeanStartupSeconds != 0.123 {
		t.Errorf("mean startup = %v, want 0.123", series.MeanStartupSeconds)
	}

	if _, err := os.Stat(result.CSVPath(runDir, "fake")); err != nil {
		t.Errorf("per-variant csv not written: %v", err)
	}
	roundTrip, err := result.ReadCSV(result.CSVPath(runDir, "fake"))
	if err != nil {
		t.Fatal(err)
	}
	if len(roundTrip.Samples) != 4 {
		t.Errorf("csv carries %d samples, want 4", len(roundTrip.Samples))
	}
}

func TestRunVariantDegradesOnReadinessTimeout(t *testing.T) {
	srv := okServer(t)
	runDir := t.TempDir()

	s := &fakeStrategy{
		name:     "stuck",
		artifact: fakeArtifact(t),
		launch:   []string{"/bin/sh", "-c", "echo booting; sleep 30"},
	}
	cfg := testConfig(srv.URL, 0, 3)
	cfg.Timeouts.ReadySeconds = 1
	opts := &Options{Strategy: s, Config: cfg, RunDir: runDir}

	series, err := RunVariant(context.Background(), opts)
	if err != nil {
		t.Fatalf("RunVariant: %v", err)
	}
	if len(series.Samples) != 3 {
		t.Fatalf("got %d samples, want 3: a timed-out trial still yields a row", len(series.Samples))
	}
	for i, sm := range series.Samples {
		if sm.StartupSeconds != nil || sm.MaxMemoryKB != nil {
			t.Errorf("sample %d should be fully degraded: %+v", i, sm)
		}
	}
	if series.MeanStartupSeconds != nil {
		t.Error("no valid samples, mean must be unavailable")
	}
}

func TestTrainProducesArtifactAndSkipsWhenPresent(t *testing.T) {
	srv := okServer(t)
	runDir := t.TempDir()
	artifactPath := filepath.Join(t.TempDir(), "work", "app.jsa")
	sentinel := filepath.Join(t.TempDir(), "trained")

	s := &fakeStrategy{
		name:     "trained",
		artifact: fakeArtifact(t),
		launch:   []string{"/bin/sh", "-c", `echo "Started FakeApp in 0.100 seconds"; sleep 30`},
		steps: []variant.TrainStep{{
			Name: "archive-dump",
			Command: []string{"/bin/sh", "-c",
				`echo "Started FakeApp in 0.200 seconds"; echo jsa > ` + artifactPath + `; touch ` + sentinel + `; sleep 30`},
			Serve: true,
			Ready: fakeMarker,
		}},
		trained: &variant.Artifact{Path: artifactPath},
	}
	opts := &Options{Strategy: s, Config: testConfig(srv.URL, 0, 3), RunDir: runDir}

	if _, err := RunVariant(context.Background(), opts); err != nil {
		t.Fatalf("RunVariant: %v", err)
	}
	if !s.trained.Present() {
		t.Fatal("training did not produce the artifact")
	}

	// Second run: artifact present, training must be skipped.
	if err := os.Remove(sentinel); err != nil {
		t.Fatal(err)
	}
	if _, err := RunVariant(context.Background(), opts); err != nil {
		t.Fatalf("second RunVariant: %v", err)
	}
	if _, err := os.Stat(sentinel); !os.IsNotExist(err) {
		t.Error("training ran again despite a present artifact")
	}
}

func TestSampleFallsBackToLiveMemory(t *testing.T) {
	srv := okServer(t)
	s := &fakeStrategy{
		name:     "fallback",
		artifact: fakeArtifact(t),
		launch:   []string{"/bin/sh", "-c", `echo "Started FakeApp in 0.100 seconds"; sleep 30`},
	}
	opts := &Options{Strategy: s, Config: testConfig(srv.URL, 0, 1), RunDir: t.TempDir()}
	if err := os.MkdirAll(opts.trialDir(), 0o755); err != nil {
		t.Fatal(err)
	}

	tr := &trial{strategy: s, opts: opts, phase: PhaseBenchmark, num: 1}
	if err := tr.run(context.Background(), s.LaunchCommand(tr.gcLogPath(), nil), s.ReadyMarker(), nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if tr.timedOut {
		t.Fatal("trial unexpectedly timed out")
	}
	if tr.liveKB == nil {
		t.Fatal("no live memory sample taken before termination")
	}

	// A wrapper that was killed before writing its report leaves the path
	// behind with nothing at it.
	tr.rusagePath = filepath.Join(t.TempDir(), "never.rusage")
	sm := tr.sample()
	if sm.MaxMemoryKB == nil {
		t.Fatal("memory must fall back to the live sample when the report is unavailable")
	}
	if *sm.MaxMemoryKB != *tr.liveKB {
		t.Errorf("memory = %d, want live sample %d", *sm.MaxMemoryKB, *tr.liveKB)
	}
}

func TestRunVariantRetrainsStaleArtifact(t *testing.T) {
	srv := okServer(t)
	runDir := t.TempDir()
	artifactPath := filepath.Join(t.TempDir(), "work", "app.jsa")
	sentinel := filepath.Join(t.TempDir(), "trained")

	s := &fakeStrategy{
		name:     "stale",
		artifact: fakeArtifact(t),
		launch:   []string{"/bin/sh", "-c", `echo "Started FakeApp in 0.100 seconds"; sleep 30`},
		steps: []variant.TrainStep{{
			Name: "archive-dump",
			Command: []string{"/bin/sh", "-c",
				`echo "Started FakeApp in 0.200 seconds"; echo jsa > ` + artifactPath + `; touch ` + sentinel + `; sleep 30`},
			Serve: true,
			Ready: fakeMarker,
		}},
		trained: &variant.Artifact{Path: artifactPath},
	}
	opts := &Options{Strategy: s, Config: testConfig(srv.URL, 0, 3), RunDir: runDir}

	if _, err := RunVariant(context.Background(), opts); err != nil {
		t.Fatalf("RunVariant: %v", err)
	}

	// Backdate the artifact behind the application build.
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(artifactPath, past, past); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(sentinel); err != nil {
		t.Fatal(err)
	}
	if _, err := RunVariant(context.Background(), opts); err != nil {
		t.Fatalf("second RunVariant: %v", err)
	}
	if _, err := os.Stat(sentinel); err != nil {
		t.Error("stale artifact was reused instead of retrained")
	}
}

func TestTrainFailsWithoutArtifact(t *testing.T) {
	srv := okServer(t)
	s := &fakeStrategy{
		name:     "broken",
		artifact: fakeArtifact(t),
		steps: []variant.TrainStep{{
			Name:    "archive-dump",
			Command: []string{"/bin/sh", "-c", `echo "Started FakeApp in 0.200 seconds"; sleep 30`},
			Serve:   true,
			Ready:   fakeMarker,
		}},
		trained: &variant.Artifact{Path: filepath.Join(t.TempDir(), "never.jsa")},
	}
	opts := &Options{Strategy: s, Config: testConfig(srv.URL, 0, 1), RunDir: t.TempDir()}

	err := Train(context.Background(), opts)
	if !errors.Is(err, ErrTraining) {
		t.Fatalf("err = %v, want ErrTraining", err)
	}
}

func TestTrainBoundedStep(t *testing.T) {
	artifactPath := filepath.Join(t.TempDir(), "app.aot")
	s := &fakeStrategy{
		name:     "assembly",
		artifact: fakeArtifact(t),
		steps: []variant.TrainStep{{
			Name:    "aot-create",
			Command: []string{"/bin/sh", "-c", "echo aot > " + artifactPath},
			Timeout: 10 * time.Second,
		}},
		trained: &variant.Artifact{Path: artifactPath},
	}
	opts := &Options{Strategy: s, Config: testConfig("http://127.0.0.1:0", 0, 1), RunDir: t.TempDir()}

	if err := Train(context.Background(), opts); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if !s.trained.Present() {
		t.Error("bounded step did not produce the artifact")
	}
}

func TestTrainBoundedStepTimeout(t *testing.T) {
	s := &fakeStrategy{
		name:     "runaway",
		artifact: fakeArtifact(t),
		steps: []variant.TrainStep{{
			Name:    "aot-create",
			Command: []string{"/bin/sh", "-c", "sleep 60"},
			Timeout: time.Second,
		}},
		trained: &variant.Artifact{Path: filepath.Join(t.TempDir(), "never.aot")},
	}
	opts := &Options{Strategy: s, Config: testConfig("http://127.0.0.1:0", 0, 1), RunDir: t.TempDir()}

	err := Train(context.Background(), opts)
	if !errors.Is(err, ErrTraining) {
		t.Fatalf("err = %v, want ErrTraining", err)
	}
}

func TestTrainBoundedStepExitFailure(t *testing.T) {
	// Pre-built artifact isolates the failure to the step's exit status.
	artifactPath := filepath.Join(t.TempDir(), "app.aot")
	if err := os.WriteFile(artifactPath, []byte("aot"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := &fakeStrategy{
		name:     "crashing",
		artifact: fakeArtifact(t),
		steps: []variant.TrainStep{{
			Name:    "aot-create",
			Command: []string{"/bin/sh", "-c", "exit 3"},
			Timeout: 10 * time.Second,
		}},
		trained: &variant.Artifact{Path: artifactPath},
	}
	opts := &Options{Strategy: s, Config: testConfig("http://127.0.0.1:0", 0, 1), RunDir: t.TempDir()}

	err := Train(context.Background(), opts)
	if !errors.Is(err, ErrTraining) {
		t.Fatalf("err = %v, want ErrTraining", err)
	}
	if !strings.Contains(err.Error(), "exited with failure") {
		t.Errorf("err = %v, want the exit-status failure", err)
	}
}

func TestRunVariantHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &fakeStrategy{
		name:     "cancelled",
		artifact: fakeArtifact(t),
		launch:   []string{"/bin/sh", "-c", "sleep 30"},
	}
	opts := &Options{Strategy: s, Config: testConfig("http://127.0.0.1:0", 1, 1), RunDir: t.TempDir()}

	if _, err := RunVariant(ctx, opts); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestAggregate(t *testing.T) {
	series := &result.Series{
		Samples: []result.Sample{
			{StartupSeconds: result.Float(10), MaxMemoryKB: result.Int(100)},
			{StartupSeconds: result.Float(12), MaxMemoryKB: result.Int(120)},
			{StartupSeconds: result.Float(11), MaxMemoryKB: result.Int(110)},
			{StartupSeconds: result.Float(50), MaxMemoryKB: result.Int(500)},
			{StartupSeconds: result.Float(9), MaxMemoryKB: result.Int(90)},
		},
	}
	aggregate(series)
	if series.MeanStartupSeconds == nil || *series.MeanStartupSeconds != 11 {
		t.Errorf("mean startup = %v, want 11 (outliers trimmed)", series.MeanStartupSeconds)
	}
	if series.MeanMemoryKB == nil || *series.MeanMemoryKB != 110 {
		t.Errorf("mean memory = %v, want 110", series.MeanMemoryKB)
	}

	degraded := &result.Series{
		Samples: []result.Sample{
			{StartupSeconds: result.Float(10)},
			{},
			{StartupSeconds: result.Float(12)},
		},
	}
	aggregate(degraded)
	if degraded.MeanStartupSeconds != nil {
		t.Error("2 valid samples cannot produce a trimmed mean")
	}
}
