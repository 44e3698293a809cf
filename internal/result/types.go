package result

import "time"

// Sample is the measured outcome of one benchmark trial. Nil pointer fields
// mean "not available": the measurement failed but the row is still recorded.
type Sample struct {
	Run            int
	StartupSeconds *float64
	MaxMemoryKB    *int64
	StartupGCs     int
	BenchmarkGCs   int
	RanAt          time.Time
}

// Series is one variant's ordered benchmark samples plus the trimmed-mean
// aggregates computed over the valid entries.
type Series struct {
	Variant            string
	Samples            []Sample
	MeanStartupSeconds *float64
	MeanMemoryKB       *float64
}

func Float(v float64) *float64 { return &v }
func Int(v int64) *int64       { return &v }
