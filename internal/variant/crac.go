package variant

import (
	"fmt"
	"regexp"

	"github.com/startline/startline/internal/proc"
)

const checkpointFlag = "-XX:CRaCCheckpointTo"

var checkpointDoneRe = regexp.MustCompile(`Starting checkpoint|CR: Checkpoint`)

// CRaC trains by checkpointing a warmed-up JVM via an external jcmd call and
// benchmarks by restoring from the checkpoint image. The restored process is
// not a child of the restore launcher, so discovery goes by the checkpoint
// flag preserved in the restored image's command line.
type CRaC struct {
	base
	dir string
}

func (v *CRaC) LaunchCommand(gcLog string, extra []string) []string {
	// GC logging and extra flags were fixed at checkpoint time; the restore
	// command only names the image.
	cmd := []string{"java", "-XX:CRaCRestoreFrom=" + v.dir}
	return cmd
}

func (v *CRaC) ArtifactPath() string { return v.jar }

func (v *CRaC) TrainSteps(gcLog string) []TrainStep {
	return []TrainStep{{
		Name:    "checkpoint-record",
		Command: v.javaCommand(gcLog, []string{checkpointFlag + "=" + v.dir}, nil),
		Serve:   true,
		// The record run starts like any JVM; the restore marker only ever
		// appears after a restore.
		Ready: startedMarker,
	}}
}

func (v *CRaC) TrainedArtifact() *Artifact {
	return &Artifact{Path: v.dir, Dir: true}
}

func (v *CRaC) Checkpoint() *CheckpointHook {
	return &CheckpointHook{
		Command: func(pid int32) []string {
			return []string{"jcmd", fmt.Sprintf("%d", pid), "JDK.checkpoint"}
		},
		DoneMarker:  checkpointDoneRe,
		ArtifactDir: v.dir,
	}
}

func (v *CRaC) ReadyMarker() Marker { return restoredMarker }

func (v *CRaC) PidQueries(h *proc.Handle) []proc.Query {
	return []proc.Query{
		{Method: proc.MethodCmdline, Marker: checkpointFlag, ExeName: "java", Exclude: int32(h.PID)},
		{Method: proc.MethodChild, ParentPID: int32(h.PID), ExeName: "java"},
	}
}
