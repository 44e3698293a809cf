// Package bstats aggregates benchmark sample series.
package bstats

import (
	"sort"

	"github.com/montanaflynn/stats"
)

// TrimmedMean drops exactly one minimum and one maximum value and averages
// the rest. Requires at least 3 values; ties are broken by position via a
// stable sort. Returns false when too few values remain, which renders as
// N/A downstream.
func TrimmedMean(values []float64) (float64, bool) {
	if len(values) < 3 {
		return 0, false
	}
	sorted := append([]float64(nil), values...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mean, err := stats.Mean(stats.Float64Data(sorted[1 : len(sorted)-1]))
	if err != nil {
		return 0, false
	}
	return mean, true
}

// TrimmedMeanPtr aggregates a series with missing entries (nil pointers are
// filtered out, never treated as zero).
func TrimmedMeanPtr(values []*float64) (float64, bool) {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil {
			valid = append(valid, *v)
		}
	}
	return TrimmedMean(valid)
}
