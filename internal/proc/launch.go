package proc

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"syscall"
	"time"
)

// ErrMissingArtifact is returned before any launch attempt when the binary or
// JAR a command depends on does not exist.
var ErrMissingArtifact = fmt.Errorf("missing artifact")

// Limits caps resource use of a launched process. Applied by running the
// command under a shell that sets ulimit before exec'ing, which is the only
// wrapping that survives an intermediate sudo.
type Limits struct {
	CPUSeconds int
	VirtualKB  int64
}

type Spec struct {
	Command  []string
	Dir      string
	Env      map[string]string
	LogPath  string
	Artifact string // when set, must exist before launch
	Sudo     bool
	Rusage   bool // wrap with /usr/bin/time to capture peak RSS
	Limits   *Limits
}

// Handle identifies a launched process. PID is the immediate child; when the
// launch goes through a wrapper (sudo, time, ulimit shell) that child is a
// supervisor and the real application PID must be discovered separately.
type Handle struct {
	PID           int
	SupervisorPID int // 0 when the child is the application itself
	LogPath       string
	RusagePath    string
	StartedAt     time.Time

	cmd     *exec.Cmd
	logFile *os.File
	done    chan struct{}
	waitErr error
}

// Start launches the command detached from the caller's terminal with stdout
// and stderr merged into LogPath, truncating any previous contents.
func Start(spec *Spec) (*Handle, error) {
	if spec.Artifact != "" {
		if _, err := os.Stat(spec.Artifact); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingArtifact, spec.Artifact)
		}
	}
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	logFile, err := os.Create(spec.LogPath)
	if err != nil {
		return nil, fmt.Errorf("creating log file: %w", err)
	}

	argv := spec.Command
	if spec.Limits != nil {
		argv = limitWrap(argv, spec.Limits)
	}
	rusagePath := ""
	if spec.Rusage {
		argv, rusagePath = rusageWrap(argv, spec.LogPath)
	}
	if spec.Sudo {
		argv = append([]string{"sudo", "-n"}, argv...)
	}
	wrapped := len(argv) != len(spec.Command)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = os.Environ()
	for k, v := range spec.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("starting %s: %w", argv[0], err)
	}

	h := &Handle{
		PID:        cmd.Process.Pid,
		LogPath:    spec.LogPath,
		RusagePath: rusagePath,
		StartedAt:  time.Now(),
		cmd:        cmd,
		logFile:    logFile,
		done:       make(chan struct{}),
	}
	if wrapped {
		h.SupervisorPID = h.PID
	}
	go func() {
		h.waitErr = cmd.Wait()
		logFile.Close()
		close(h.done)
	}()
	return h, nil
}

// Exited reports whether the launched child has been reaped.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// WaitExit blocks until the child exits or the timeout elapses.
func (h *Handle) WaitExit(timeout time.Duration) bool {
	select {
	case <-h.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// ExitErr reports how the child exited: nil for a clean exit, the wait error
// otherwise. Nil while the child is still running.
func (h *Handle) ExitErr() error {
	select {
	case <-h.done:
		return h.waitErr
	default:
		return nil
	}
}

// Signal delivers sig to the immediate child.
func (h *Handle) Signal(sig syscall.Signal) error {
	if h.Exited() {
		return nil
	}
	return syscall.Kill(h.PID, sig)
}

// rusageWrap prefixes the command with the system time utility. GNU time
// writes "Maximum resident set size (kbytes)" to -o; the BSD variant has no
// -o and emits "peak memory footprint" (bytes) on stderr, so the report lands
// in the trial log itself.
func rusageWrap(argv []string, logPath string) ([]string, string) {
	const timeBin = "/usr/bin/time"
	if _, err := os.Stat(timeBin); err != nil {
		return argv, ""
	}
	if runtime.GOOS == "darwin" {
		return append([]string{timeBin, "-l"}, argv...), logPath
	}
	rusagePath := logPath + ".rusage"
	return append([]string{timeBin, "-v", "-o", rusagePath}, argv...), rusagePath
}

func limitWrap(argv []string, lim *Limits) []string {
	var sb strings.Builder
	if lim.CPUSeconds > 0 {
		fmt.Fprintf(&sb, "ulimit -t %d; ", lim.CPUSeconds)
	}
	if lim.VirtualKB > 0 {
		fmt.Fprintf(&sb, "ulimit -v %d; ", lim.VirtualKB)
	}
	sb.WriteString("exec")
	for _, a := range argv {
		sb.WriteString(" ")
		sb.WriteString(shellQuote(a))
	}
	return []string{"/bin/sh", "-c", sb.String()}
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$&|;<>()*?[]#~%{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
