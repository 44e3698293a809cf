package runner

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/startline/startline/internal/proc"
	"github.com/startline/startline/internal/readiness"
	"github.com/startline/startline/internal/variant"
)

// runCheckpoint is the training-phase hook for checkpoint/restore variants:
// issue the external checkpoint command against the warmed-up application,
// wait for the image directory to hold real content, and confirm the success
// marker in the application's own log. Runs between Load and Terminate.
func runCheckpoint(ctx context.Context, opts *Options, cp *variant.CheckpointHook, t *trial) error {
	pid := int32(t.handle.PID)
	if t.res.Method != proc.MethodUnresolved {
		pid = t.res.PID
	}

	argv := cp.Command(pid)
	log.Printf("%s: checkpointing pid %d (%s)", opts.Strategy.Name(), pid, strings.Join(argv, " "))
	cmdCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	out, err := exec.CommandContext(cmdCtx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("checkpoint command: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}

	if err := waitForImage(ctx, cp.ArtifactDir, opts.checkpointTimeout()); err != nil {
		return err
	}

	// Secondary confirmation: the engine's own view of success, independent
	// of what landed on disk.
	if _, _, err := readiness.WaitForLine(ctx, t.logPath(), cp.DoneMarker, 10*time.Second); err != nil {
		return fmt.Errorf("no checkpoint confirmation in application log: %w", err)
	}
	return nil
}

// waitForImage polls until the checkpoint directory contains at least one
// non-log file. A directory that never appears and one that fills up with
// nothing but engine logs are distinct failures.
func waitForImage(ctx context.Context, dir string, timeout time.Duration) error {
	art := &variant.Artifact{Path: dir, Dir: true}
	deadline := time.Now().Add(timeout)
	for {
		if art.Present() {
			return nil
		}
		if time.Now().After(deadline) {
			if _, err := os.Stat(dir); err != nil {
				return fmt.Errorf("checkpoint directory %s never appeared within %s", dir, timeout)
			}
			return fmt.Errorf("checkpoint directory %s contains only log files after %s: image never materialized", dir, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
