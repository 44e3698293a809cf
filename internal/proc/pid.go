package proc

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Method tags how an application PID was resolved, so termination policy can
// be written once against the tag instead of per-variant.
type Method int

const (
	MethodUnresolved Method = iota
	MethodChild             // direct child of the launch handle
	MethodPath              // executable path substring match
	MethodCmdline           // command line marker flag match
)

func (m Method) String() string {
	switch m {
	case MethodChild:
		return "direct-child"
	case MethodPath:
		return "pattern-matched"
	case MethodCmdline:
		return "cmdline-matched"
	default:
		return "unresolved"
	}
}

// Query describes one discovery strategy for the real application PID.
type Query struct {
	Method     Method
	ParentPID  int32  // MethodChild: parent to search under
	ExeName    string // required executable name, "" skips the check
	PathSubstr string // MethodPath: substring of the binary path
	Exclude    int32  // supervisor PID to skip
	Marker     string // MethodCmdline: flag unique to the variant's cmdline
}

type Resolution struct {
	PID    int32
	Method Method
}

// Resolve attempts each query in order, retrying the whole list with backoff.
// Discovery failure is not fatal; callers fall back to the launch handle.
func Resolve(queries []Query, attempts int, backoff time.Duration) (Resolution, error) {
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(backoff)
		}
		for _, q := range queries {
			if pid, ok := lookup(q); ok {
				return Resolution{PID: pid, Method: q.Method}, nil
			}
		}
	}
	return Resolution{Method: MethodUnresolved}, fmt.Errorf("no application pid found after %d attempts", attempts)
}

func lookup(q Query) (int32, bool) {
	procs, err := process.Processes()
	if err != nil {
		return 0, false
	}
	self := int32(os.Getpid())
	for _, p := range procs {
		if p.Pid == self || (q.Exclude != 0 && p.Pid == q.Exclude) {
			continue
		}
		if q.ExeName != "" {
			name, err := p.Name()
			if err != nil || name != q.ExeName {
				continue
			}
		}
		switch q.Method {
		case MethodChild:
			ppid, err := p.Ppid()
			if err != nil || ppid != q.ParentPID {
				continue
			}
			return p.Pid, true
		case MethodPath:
			exe, err := p.Exe()
			if err != nil || !strings.Contains(exe, q.PathSubstr) {
				continue
			}
			return p.Pid, true
		case MethodCmdline:
			cl, err := p.Cmdline()
			if err != nil || !strings.Contains(cl, q.Marker) {
				continue
			}
			return p.Pid, true
		}
	}
	return 0, false
}

// Alive reports whether pid still names a running process.
func Alive(pid int32) bool {
	ok, err := process.PidExists(pid)
	return err == nil && ok
}

// LiveRSSKB samples the resident set size of a running process in kilobytes.
// Used as the memory fallback when no rusage report is available.
func LiveRSSKB(pid int32) (int64, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("opening process %d: %w", pid, err)
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return 0, fmt.Errorf("reading memory info for %d: %w", pid, err)
	}
	return int64(mem.RSS / 1024), nil
}
