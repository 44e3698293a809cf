package variant

import "github.com/startline/startline/internal/proc"

// JVM is the plain java -jar variant. With extra_flags it also covers the
// AOT-tuning configuration (tiered compilation caps, -Xshare tweaks); either
// way there is no training and no persisted artifact.
type JVM struct {
	base
}

func (v *JVM) LaunchCommand(gcLog string, extra []string) []string {
	return v.javaCommand(gcLog, nil, extra)
}

func (v *JVM) ArtifactPath() string                   { return v.jar }
func (v *JVM) TrainSteps(string) []TrainStep          { return nil }
func (v *JVM) TrainedArtifact() *Artifact             { return nil }
func (v *JVM) Checkpoint() *CheckpointHook            { return nil }
func (v *JVM) ReadyMarker() Marker                    { return startedMarker }
func (v *JVM) PidQueries(h *proc.Handle) []proc.Query { return v.javaPidQueries(h) }
