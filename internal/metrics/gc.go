package metrics

import (
	"bufio"
	"os"
	"regexp"
	"strings"
	"time"
)

type GCCounts struct {
	Startup   int // pauses logged strictly before the readiness marker
	Benchmark int // pauses logged at or after it
}

// Unified JVM GC log line with time decoration, e.g.
// [2026-08-26T09:15:02.123+0000][0.834s][info][gc] GC(3) Pause Young (Normal) ...
var gcTimestampRe = regexp.MustCompile(`^\[(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}[+-]\d{4})\]`)

const gcTimeLayout = "2006-01-02T15:04:05.000-0700"

// CountPauses scans a GC log and buckets each pause event by whether its
// wall-clock timestamp falls before readyAt. Events without a parseable
// timestamp are skipped rather than mis-attributed. A missing log (native
// image trials have none) yields zero counts.
func CountPauses(gcLogPath string, readyAt time.Time) GCCounts {
	var counts GCCounts
	f, err := os.Open(gcLogPath)
	if err != nil {
		return counts
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, "Pause") || !strings.Contains(line, "GC(") {
			continue
		}
		m := gcTimestampRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		at, err := time.Parse(gcTimeLayout, m[1])
		if err != nil {
			continue
		}
		if at.Before(readyAt) {
			counts.Startup++
		} else {
			counts.Benchmark++
		}
	}
	return counts
}
