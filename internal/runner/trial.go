package runner

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/startline/startline/internal/load"
	"github.com/startline/startline/internal/metrics"
	"github.com/startline/startline/internal/proc"
	"github.com/startline/startline/internal/readiness"
	"github.com/startline/startline/internal/result"
	"github.com/startline/startline/internal/variant"
)

// Phase names one stage of a variant's lifecycle.
type Phase string

const (
	PhaseTraining  Phase = "training"
	PhaseWarmup    Phase = "warmup"
	PhaseBenchmark Phase = "benchmark"
)

// trial is one process lifecycle: Launch → Readiness → Load → Terminate,
// always in that order, with Terminate guaranteed even when readiness timed
// out. It owns exactly one subprocess; ownership ends when Terminate observes
// exit.
type trial struct {
	strategy variant.Strategy
	opts     *Options
	phase    Phase
	num      int

	handle     *proc.Handle
	res        proc.Resolution
	readyAt    time.Time
	ready      string // matched readiness line
	timedOut   bool
	liveKB     *int64
	statuses   []int
	gcLog      string
	rusagePath string
}

func (t *trial) logPath() string {
	return filepath.Join(t.opts.trialDir(), fmt.Sprintf("%s-%d.log", t.phase, t.num))
}

// gcLogPath is where the launch command is told to write its GC log. Variants
// without one (native image, restored checkpoints) simply never create the
// file, which counts as zero pauses.
func (t *trial) gcLogPath() string {
	return t.logPath() + ".gc"
}

// run drives the lifecycle with the given command and readiness marker.
// Launch errors (missing artifact, exec failure) are returned; a readiness
// timeout is not an error here; the caller decides whether it degrades the
// sample or fails the phase.
func (t *trial) run(ctx context.Context, command []string, marker variant.Marker, hook func(context.Context, *trial) error) error {
	spec := &proc.Spec{
		Command:  command,
		LogPath:  t.logPath(),
		Artifact: t.strategy.ArtifactPath(),
		Sudo:     t.strategy.Sudo(),
		Rusage:   true,
	}
	h, err := proc.Start(spec)
	if err != nil {
		return err
	}
	t.handle = h
	t.rusagePath = h.RusagePath
	t.gcLog = t.gcLogPath()
	defer t.terminate()

	line, readyAt, err := readiness.WaitForLine(ctx, h.LogPath, marker.Pattern, t.opts.readyTimeout())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("%s %s trial %d: readiness timed out: %v", t.strategy.Name(), t.phase, t.num, err)
		t.timedOut = true
		return nil
	}
	t.ready = line
	t.readyAt = readyAt

	// Some variants bring the HTTP listener up slightly after the log
	// marker; tolerate a probe timeout rather than aborting the trial.
	if err := readiness.WaitForHTTP(ctx, t.opts.Config.App.BaseURL+"/", t.opts.httpReadyTimeout()); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("warning: %s %s trial %d: http endpoint not confirmed, proceeding: %v",
			t.strategy.Name(), t.phase, t.num, err)
	}

	t.res, err = proc.Resolve(t.strategy.PidQueries(h), 5, 300*time.Millisecond)
	if err != nil {
		log.Printf("warning: %s %s trial %d: %v, will signal launch handle",
			t.strategy.Name(), t.phase, t.num, err)
	}

	gen := load.New(t.opts.Config.App.BaseURL, t.opts.Config.App.Paths,
		time.Duration(t.opts.Config.App.RequestDelayMS)*time.Millisecond)
	t.statuses = gen.Run(ctx)
	if n := load.Failures(t.statuses); n > 0 {
		log.Printf("warning: %s %s trial %d: %d of %d load requests failed",
			t.strategy.Name(), t.phase, t.num, n, len(t.statuses))
	}

	if hook != nil {
		if err := hook(ctx, t); err != nil {
			return err
		}
	}

	// The rusage report only lands if the wrapper exits cleanly and writes
	// its file, so one live sample taken just before termination is always
	// armed as the fallback memory source.
	pid := int32(h.PID)
	if t.res.Method != proc.MethodUnresolved {
		pid = t.res.PID
	}
	if kb, err := proc.LiveRSSKB(pid); err == nil {
		t.liveKB = &kb
	}
	return ctx.Err()
}

// terminate is idempotent and tolerant of processes that already exited
// (a completed checkpoint kills its JVM).
func (t *trial) terminate() {
	if t.handle == nil {
		return
	}
	proc.Terminate(t.handle, t.res, t.strategy.Grace())
	t.handle = nil
}

// sample extracts the trial's metrics. A timed-out trial yields a fully
// degraded row; partial data is still a row, never dropped.
func (t *trial) sample() result.Sample {
	sm := result.Sample{Run: t.num, RanAt: time.Now()}
	if t.timedOut {
		return sm
	}
	if secs, ok := t.strategy.ReadyMarker().Seconds(t.ready); ok {
		sm.StartupSeconds = result.Float(secs)
	}
	if kb, ok := metrics.PeakRSSKB(t.rusagePath); ok {
		sm.MaxMemoryKB = result.Int(kb)
	} else if t.liveKB != nil {
		sm.MaxMemoryKB = t.liveKB
	}
	counts := metrics.CountPauses(t.gcLog, t.readyAt)
	sm.StartupGCs = counts.Startup
	sm.BenchmarkGCs = counts.Benchmark
	return sm
}
