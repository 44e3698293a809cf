package proc

import (
	"log"
	"syscall"
	"time"
)

// Terminate stops the measured process: graceful SIGTERM to the most specific
// known PID, a bounded grace period, SIGKILL escalation, then a blocking wait
// for the launch handle to report exit. Safe to call after a failed trial;
// the sequencer relies on it never leaking a process.
//
// Launches run in their own process group, so the unresolved fallback and the
// kill escalation signal the whole group: wrappers like time(1) do not
// forward signals to their children.
func Terminate(h *Handle, res Resolution, grace time.Duration) {
	resolved := res.Method != MethodUnresolved && res.PID > 0
	if resolved {
		syscall.Kill(int(res.PID), syscall.SIGTERM)
	} else {
		log.Printf("terminate: application pid unresolved, signaling process group %d", h.PID)
		syscall.Kill(-h.PID, syscall.SIGTERM)
	}

	if !h.WaitExit(grace) {
		if resolved {
			syscall.Kill(int(res.PID), syscall.SIGKILL)
		}
		syscall.Kill(-h.PID, syscall.SIGKILL)
		h.WaitExit(5 * time.Second)
	}

	// A restored or pattern-matched process may live outside the launch
	// handle's group and outlive it.
	if resolved && int(res.PID) != h.PID && Alive(res.PID) {
		deadline := time.Now().Add(grace)
		for Alive(res.PID) && time.Now().Before(deadline) {
			time.Sleep(100 * time.Millisecond)
		}
		if Alive(res.PID) {
			syscall.Kill(int(res.PID), syscall.SIGKILL)
		}
	}
}
