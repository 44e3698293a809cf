package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/startline/startline/internal/bstats"
	"github.com/startline/startline/internal/config"
	"github.com/startline/startline/internal/proc"
	"github.com/startline/startline/internal/result"
	"github.com/startline/startline/internal/variant"
)

// ErrTraining marks a failure that poisons the variant's remaining phases:
// benchmarking against a half-trained artifact would measure nothing real.
var ErrTraining = errors.New("training failed")

// Options configures one variant's run.
type Options struct {
	Strategy variant.Strategy
	Config   *config.Config
	RunDir   string
	Extra    []string // extra runtime parameters appended to every launch
}

func (o *Options) trialDir() string {
	return result.TrialDir(o.RunDir, o.Strategy.Name())
}

func (o *Options) readyTimeout() time.Duration {
	return time.Duration(o.Config.Timeouts.ReadySeconds) * time.Second
}

func (o *Options) httpReadyTimeout() time.Duration {
	return time.Duration(o.Config.Timeouts.HTTPReadySeconds) * time.Second
}

func (o *Options) checkpointTimeout() time.Duration {
	return time.Duration(o.Config.Timeouts.CheckpointSeconds) * time.Second
}

// RunVariant sequences one variant through
// Training (conditional) → WarmUp(×W) → Benchmark(×B) → Aggregating.
// Training runs only when the variant needs it and its artifact is absent or
// predates the application build, so re-invocation against a trained variant
// is idempotent. A readiness timeout
// in a single warm-up or benchmark iteration degrades that iteration's sample
// and the sequence continues; a training failure aborts the variant.
func RunVariant(ctx context.Context, opts *Options) (*result.Series, error) {
	s := opts.Strategy
	if err := os.MkdirAll(opts.trialDir(), 0o755); err != nil {
		return nil, fmt.Errorf("creating trial dir: %w", err)
	}

	if err := checkRuntime(ctx, s); err != nil {
		return nil, err
	}

	if steps := s.TrainSteps(""); len(steps) > 0 {
		art := s.TrainedArtifact()
		switch {
		case !art.Present():
			if err := Train(ctx, opts); err != nil {
				return nil, err
			}
		case art.StaleAgainst(s.ArtifactPath()):
			log.Printf("%s: artifact %s predates %s, retraining", s.Name(), art.Path, s.ArtifactPath())
			if err := os.RemoveAll(art.Path); err != nil {
				return nil, fmt.Errorf("%w: removing stale artifact %s: %v", ErrTraining, art.Path, err)
			}
			if err := Train(ctx, opts); err != nil {
				return nil, err
			}
		default:
			log.Printf("%s: artifact %s present, skipping training", s.Name(), art.Path)
		}
	}

	for w := 1; w <= opts.Config.Warmups; w++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		fmt.Printf("%s: warm-up %d/%d...\n", s.Name(), w, opts.Config.Warmups)
		t := &trial{strategy: s, opts: opts, phase: PhaseWarmup, num: w}
		if err := t.run(ctx, s.LaunchCommand(t.gcLogPath(), opts.Extra), s.ReadyMarker(), nil); err != nil {
			return nil, fmt.Errorf("warm-up %d: %w", w, err)
		}
	}

	series := &result.Series{Variant: s.Name()}
	for i := 1; i <= opts.Config.Runs; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		fmt.Printf("%s: benchmark %d/%d...\n", s.Name(), i, opts.Config.Runs)
		t := &trial{strategy: s, opts: opts, phase: PhaseBenchmark, num: i}
		if err := t.run(ctx, s.LaunchCommand(t.gcLogPath(), opts.Extra), s.ReadyMarker(), nil); err != nil {
			return nil, fmt.Errorf("benchmark %d: %w", i, err)
		}
		series.Samples = append(series.Samples, t.sample())
	}

	aggregate(series)

	csvPath := result.CSVPath(opts.RunDir, s.Name())
	if err := result.WriteCSV(csvPath, series); err != nil {
		return nil, err
	}
	fmt.Printf("%s: wrote %s\n", s.Name(), csvPath)
	return series, nil
}

// Train runs the variant's training flow and verifies the artifact it was
// supposed to produce. Any step failure, or a produced-but-empty artifact, is
// wrapped in ErrTraining.
func Train(ctx context.Context, opts *Options) error {
	s := opts.Strategy
	if err := os.MkdirAll(opts.trialDir(), 0o755); err != nil {
		return fmt.Errorf("creating trial dir: %w", err)
	}
	art := s.TrainedArtifact()
	if art != nil {
		if err := os.MkdirAll(filepath.Dir(art.Path), 0o755); err != nil {
			return fmt.Errorf("%w: preparing artifact dir: %v", ErrTraining, err)
		}
	}

	for i := range s.TrainSteps("") {
		t := &trial{strategy: s, opts: opts, phase: PhaseTraining, num: i + 1}
		step := s.TrainSteps(t.gcLogPath())[i]
		fmt.Printf("%s: training step %q...\n", s.Name(), step.Name)
		if step.Serve {
			var hook func(context.Context, *trial) error
			if cp := s.Checkpoint(); cp != nil {
				hook = func(ctx context.Context, t *trial) error {
					return runCheckpoint(ctx, opts, cp, t)
				}
			}
			if err := t.run(ctx, step.Command, step.Ready, hook); err != nil {
				return fmt.Errorf("%w: step %q: %v", ErrTraining, step.Name, err)
			}
			if t.timedOut {
				return fmt.Errorf("%w: step %q: application never became ready", ErrTraining, step.Name)
			}
		} else if err := runBoundedStep(ctx, opts, t, step); err != nil {
			return fmt.Errorf("%w: step %q: %v", ErrTraining, step.Name, err)
		}
	}

	if art != nil && !art.Present() {
		return fmt.Errorf("%w: artifact %s absent or empty after training", ErrTraining, art.Path)
	}
	return nil
}

// runBoundedStep executes a non-serving training command (e.g. AOT cache
// assembly) with a hard wall-clock bound and optional resource caps.
func runBoundedStep(ctx context.Context, opts *Options, t *trial, step variant.TrainStep) error {
	spec := &proc.Spec{
		Command:  step.Command,
		LogPath:  t.logPath(),
		Artifact: opts.Strategy.ArtifactPath(),
		Sudo:     opts.Strategy.Sudo(),
		Limits:   step.Sandbox,
	}
	h, err := proc.Start(spec)
	if err != nil {
		return err
	}
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = time.Duration(opts.Config.Timeouts.TrainSeconds) * time.Second
	}
	if !h.WaitExit(timeout) {
		proc.Terminate(h, proc.Resolution{}, opts.Strategy.Grace())
		return fmt.Errorf("did not finish within %s", timeout)
	}
	if err := h.ExitErr(); err != nil {
		return fmt.Errorf("exited with failure: %w (see %s)", err, h.LogPath)
	}
	return ctx.Err()
}

// checkRuntime verifies the installed runtime matches the variant's
// requirement. An environment mismatch is fatal to this variant only; the
// message carries the remediation.
func checkRuntime(ctx context.Context, s variant.Strategy) error {
	required := s.JavaVersion()
	if required == "" {
		return nil
	}
	actual, err := variant.JavaVersion(ctx)
	if err != nil {
		return fmt.Errorf("variant %s needs java %s but none was found: %w (install it and ensure java is on PATH)",
			s.Name(), required, err)
	}
	if !variant.VersionMatches(required, actual) {
		return fmt.Errorf("variant %s needs java %s but found %s (switch JDKs, e.g. via your version manager)",
			s.Name(), required, actual)
	}
	return nil
}

// aggregate appends trimmed-mean results over the valid samples. GC counts
// stay per-trial: no aggregate is defined for them.
func aggregate(series *result.Series) {
	durations := make([]*float64, 0, len(series.Samples))
	memory := make([]*float64, 0, len(series.Samples))
	for _, sm := range series.Samples {
		durations = append(durations, sm.StartupSeconds)
		if sm.MaxMemoryKB != nil {
			kb := float64(*sm.MaxMemoryKB)
			memory = append(memory, &kb)
		} else {
			memory = append(memory, nil)
		}
	}
	if mean, ok := bstats.TrimmedMeanPtr(durations); ok {
		series.MeanStartupSeconds = result.Float(mean)
	}
	if mean, ok := bstats.TrimmedMeanPtr(memory); ok {
		series.MeanMemoryKB = result.Float(mean)
	}
}
