package variant

import "github.com/startline/startline/internal/proc"

// Native is the GraalVM native-image variant: a plain binary, no JVM, no
// training and no GC log. The binary never runs as "java", so discovery goes
// by its path.
type Native struct {
	base
	binary string
}

func (v *Native) LaunchCommand(gcLog string, extra []string) []string {
	return append([]string{v.binary}, extra...)
}

func (v *Native) ArtifactPath() string          { return v.binary }
func (v *Native) TrainSteps(string) []TrainStep { return nil }
func (v *Native) TrainedArtifact() *Artifact    { return nil }
func (v *Native) Checkpoint() *CheckpointHook   { return nil }
func (v *Native) ReadyMarker() Marker           { return startedMarker }

func (v *Native) PidQueries(h *proc.Handle) []proc.Query {
	return []proc.Query{
		{Method: proc.MethodChild, ParentPID: int32(h.PID)},
		{Method: proc.MethodPath, PathSubstr: v.binary, Exclude: int32(h.PID)},
	}
}
