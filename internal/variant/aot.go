package variant

import (
	"time"

	"github.com/startline/startline/internal/proc"
)

// AOTCache is the Leyden-style ahead-of-time cache variant. Training is a
// two-step flow: a serving run in record mode, then a bounded non-serving
// assembly step that turns the recorded configuration into the cache. The
// assembly step has been observed to run away on memory, so it is launched
// under CPU and virtual-memory caps.
type AOTCache struct {
	base
	cache string
}

func (v *AOTCache) aotConf() string { return v.cache + "conf" }

func (v *AOTCache) LaunchCommand(gcLog string, extra []string) []string {
	return v.javaCommand(gcLog, []string{"-XX:AOTCache=" + v.cache}, extra)
}

func (v *AOTCache) ArtifactPath() string { return v.jar }

func (v *AOTCache) TrainSteps(gcLog string) []TrainStep {
	return []TrainStep{
		{
			Name: "aot-record",
			Command: v.javaCommand(gcLog, []string{
				"-XX:AOTMode=record",
				"-XX:AOTConfiguration=" + v.aotConf(),
			}, nil),
			Serve: true,
			Ready: startedMarker,
		},
		{
			Name: "aot-create",
			Command: v.javaCommand("", []string{
				"-XX:AOTMode=create",
				"-XX:AOTConfiguration=" + v.aotConf(),
				"-XX:AOTCache=" + v.cache,
			}, nil),
			Sandbox: &proc.Limits{CPUSeconds: 120, VirtualKB: 8 * 1024 * 1024},
			Timeout: 60 * time.Second,
		},
	}
}

func (v *AOTCache) TrainedArtifact() *Artifact {
	return &Artifact{Path: v.cache}
}

func (v *AOTCache) Checkpoint() *CheckpointHook            { return nil }
func (v *AOTCache) ReadyMarker() Marker                    { return startedMarker }
func (v *AOTCache) PidQueries(h *proc.Handle) []proc.Query { return v.javaPidQueries(h) }
