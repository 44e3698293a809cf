// Package metrics turns trial log artifacts into structured measurements:
// peak resident memory from a time(1) report and GC pause counts attributed
// to the startup or benchmark phase.
package metrics

import (
	"os"
	"regexp"
	"strconv"
)

var (
	// GNU time -v, already in kilobytes.
	maxRSSRe = regexp.MustCompile(`Maximum resident set size \(kbytes\):\s*(\d+)`)
	// BSD time -l, reported in bytes.
	footprintRe = regexp.MustCompile(`(\d+)\s+peak memory footprint`)
)

// PeakRSSKB extracts peak resident memory in kilobytes from a rusage report.
// Returns false when the report is missing or carries neither format; callers
// then fall back to a live RSS sample.
func PeakRSSKB(rusagePath string) (int64, bool) {
	if rusagePath == "" {
		return 0, false
	}
	data, err := os.ReadFile(rusagePath)
	if err != nil {
		return 0, false
	}
	if m := maxRSSRe.FindSubmatch(data); m != nil {
		kb, err := strconv.ParseInt(string(m[1]), 10, 64)
		if err == nil {
			return kb, true
		}
	}
	if m := footprintRe.FindSubmatch(data); m != nil {
		bytes, err := strconv.ParseInt(string(m[1]), 10, 64)
		if err == nil {
			return bytes / 1024, true
		}
	}
	return 0, false
}
