// Package variant defines one strategy per startup-optimization technique
// under test. A strategy knows how to launch its variant, how to train its
// persisted artifact, which log line means "ready", and how to find the real
// application process.
package variant

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/startline/startline/internal/config"
	"github.com/startline/startline/internal/proc"
)

// Marker matches a readiness line and extracts the embedded startup duration.
type Marker struct {
	Pattern *regexp.Regexp // exactly one numeric capture group
	Millis  bool           // capture is milliseconds, convert to seconds
}

// Seconds parses the startup duration out of a matched readiness line.
func (m Marker) Seconds(line string) (float64, bool) {
	sub := m.Pattern.FindStringSubmatch(line)
	if len(sub) < 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(sub[1], 64)
	if err != nil {
		return 0, false
	}
	if m.Millis {
		v /= 1000
	}
	return v, true
}

// TrainStep is one command of a variant's training flow. Serve steps start
// the application and go through readiness, load and graceful stop; non-serve
// steps are plain bounded commands (e.g. AOT cache assembly).
type TrainStep struct {
	Name    string
	Command []string
	Serve   bool
	Ready   Marker // serve steps: readiness marker of the training run
	Sandbox *proc.Limits
	Timeout time.Duration
}

// CheckpointHook is the external checkpoint command a checkpoint/restore
// variant issues mid-training, plus the evidence that it worked.
type CheckpointHook struct {
	Command     func(pid int32) []string
	DoneMarker  *regexp.Regexp // secondary confirmation in the app's own log
	ArtifactDir string
}

// Artifact is the persisted warm state produced by training. Regenerated
// wholesale when absent; never mutated in place.
type Artifact struct {
	Path string
	Dir  bool
}

// Present reports whether the artifact exists with non-trivial content. A
// directory holding only log files counts as absent: checkpoint engines leave
// their own logs behind even when the dump failed.
func (a *Artifact) Present() bool {
	if a == nil {
		return false
	}
	info, err := os.Stat(a.Path)
	if err != nil {
		return false
	}
	if !a.Dir {
		return !info.IsDir() && info.Size() > 0
	}
	if !info.IsDir() {
		return false
	}
	found := false
	filepath.WalkDir(a.Path, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".log") {
			found = true
		}
		return nil
	})
	return found
}

// StaleAgainst reports whether the artifact predates the application build it
// was trained from. Stale artifacts are regenerated wholesale, like missing
// ones. An unreadable reference build keeps the artifact usable.
func (a *Artifact) StaleAgainst(ref string) bool {
	refInfo, err := os.Stat(ref)
	if err != nil {
		return false
	}
	at, ok := a.modTime()
	if !ok {
		return false
	}
	return at.Before(refInfo.ModTime())
}

// modTime is the artifact's newest content time; for directories, the newest
// non-log file.
func (a *Artifact) modTime() (time.Time, bool) {
	info, err := os.Stat(a.Path)
	if err != nil {
		return time.Time{}, false
	}
	if !a.Dir {
		return info.ModTime(), true
	}
	var newest time.Time
	found := false
	filepath.WalkDir(a.Path, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || strings.HasSuffix(d.Name(), ".log") {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if fi.ModTime().After(newest) {
			newest = fi.ModTime()
			found = true
		}
		return nil
	})
	return newest, found
}

// Strategy is implemented once per optimization technique.
type Strategy interface {
	Name() string
	JavaVersion() string // required runtime version prefix, "" accepts any

	// LaunchCommand builds the benchmark/warm-up command line. gcLog is the
	// per-trial GC log destination ("" when the trial collects none).
	LaunchCommand(gcLog string, extra []string) []string
	// ArtifactPath is the binary or JAR that must exist before any launch.
	ArtifactPath() string

	// TrainSteps is nil for variants that need no training.
	TrainSteps(gcLog string) []TrainStep
	// TrainedArtifact is the persisted state training produces, nil when the
	// variant is stateless.
	TrainedArtifact() *Artifact
	// Checkpoint is non-nil only for checkpoint/restore variants.
	Checkpoint() *CheckpointHook

	ReadyMarker() Marker
	// PidQueries lists discovery strategies for the real application PID, most
	// specific first.
	PidQueries(h *proc.Handle) []proc.Query

	Sudo() bool
	Grace() time.Duration
}

// Readiness line of the sample application, e.g.
// "Started DemoApplication in 2.312 seconds (process running for 2.778)".
var startedMarker = Marker{
	Pattern: regexp.MustCompile(`Started \S+ in ([0-9.]+) seconds`),
}

// Restore marker of the checkpoint/restore variant, reported in milliseconds:
// "Spring-managed lifecycle restart completed (restored JVM running for 53 ms)".
var restoredMarker = Marker{
	Pattern: regexp.MustCompile(`restored JVM running for (\d+) ms`),
	Millis:  true,
}

// New builds the strategy for one configured variant.
func New(cfg config.Variant, build config.Build) (Strategy, error) {
	base := base{cfg: cfg, buildDir: build.Dir, jar: filepath.Join(build.Dir, build.JarPath())}
	switch cfg.Kind {
	case "jvm":
		return &JVM{base}, nil
	case "cds":
		return &CDS{base: base, archive: filepath.Join(build.Dir, cfg.Archive)}, nil
	case "aotcache":
		return &AOTCache{base: base, cache: filepath.Join(build.Dir, cfg.Cache)}, nil
	case "crac":
		return &CRaC{base: base, dir: filepath.Join(build.Dir, cfg.CheckpointDir)}, nil
	case "native":
		return &Native{base: base, binary: filepath.Join(build.Dir, build.NativePath())}, nil
	default:
		return nil, fmt.Errorf("variant %q: unknown kind %q", cfg.Name, cfg.Kind)
	}
}

// base carries the config shared by every strategy.
type base struct {
	cfg      config.Variant
	buildDir string
	jar      string
}

func (b *base) Name() string        { return b.cfg.Name }
func (b *base) JavaVersion() string { return b.cfg.JavaVersion }
func (b *base) Sudo() bool          { return b.cfg.Sudo }
func (b *base) Grace() time.Duration {
	return time.Duration(b.cfg.GraceMS) * time.Millisecond
}

// javaCommand assembles a java invocation with optional GC logging, variant
// flags, extra runtime parameters and leading JVM options.
func (b *base) javaCommand(gcLog string, jvmFlags, extra []string) []string {
	cmd := []string{"java"}
	if gcLog != "" {
		cmd = append(cmd, "-Xlog:gc:file="+gcLog+":time,uptime,tags")
	}
	cmd = append(cmd, b.cfg.ExtraFlags...)
	cmd = append(cmd, jvmFlags...)
	cmd = append(cmd, "-jar", b.jar)
	cmd = append(cmd, extra...)
	return cmd
}

// javaPidQueries finds the JVM first as a direct child of the launch handle,
// then (when wrappers like sudo+time push it a generation down) by the jar on
// its command line.
func (b *base) javaPidQueries(h *proc.Handle) []proc.Query {
	return []proc.Query{
		{Method: proc.MethodChild, ParentPID: int32(h.PID), ExeName: "java"},
		{Method: proc.MethodCmdline, Marker: b.jar, ExeName: "java", Exclude: int32(h.PID)},
	}
}
