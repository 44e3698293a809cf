package variant

import "github.com/startline/startline/internal/proc"

// CDS trains a class-sharing archive by running the application once with
// -XX:ArchiveClassesAtExit (the archive is dumped on graceful stop) and then
// benchmarks with the archive mapped in.
type CDS struct {
	base
	archive string
}

func (v *CDS) LaunchCommand(gcLog string, extra []string) []string {
	return v.javaCommand(gcLog, []string{"-XX:SharedArchiveFile=" + v.archive}, extra)
}

func (v *CDS) ArtifactPath() string { return v.jar }

func (v *CDS) TrainSteps(gcLog string) []TrainStep {
	return []TrainStep{{
		Name:    "archive-dump",
		Command: v.javaCommand(gcLog, []string{"-XX:ArchiveClassesAtExit=" + v.archive}, nil),
		Serve:   true,
		Ready:   startedMarker,
	}}
}

func (v *CDS) TrainedArtifact() *Artifact {
	return &Artifact{Path: v.archive}
}

func (v *CDS) Checkpoint() *CheckpointHook            { return nil }
func (v *CDS) ReadyMarker() Marker                    { return startedMarker }
func (v *CDS) PidQueries(h *proc.Handle) []proc.Query { return v.javaPidQueries(h) }
