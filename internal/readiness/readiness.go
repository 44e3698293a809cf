// Package readiness polls for the measured application to finish starting,
// either by watching its log for a marker line or by probing an HTTP endpoint.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"
)

// ErrTimeout is returned when a marker or endpoint never became ready within
// the bounded wait.
var ErrTimeout = errors.New("readiness timeout")

const pollInterval = time.Second

// WaitForLine polls logPath at a fixed interval until a line matching pattern
// appears or the timeout elapses. It returns the matched line and the
// wall-clock readiness instant, which downstream GC attribution treats as the
// startup/benchmark boundary. When the matched line carries its own log
// timestamp that is used; otherwise the instant is the observation time,
// which lags actual readiness by up to one poll interval.
func WaitForLine(ctx context.Context, logPath string, pattern *regexp.Regexp, timeout time.Duration) (string, time.Time, error) {
	deadline := time.Now().Add(timeout)
	for {
		if line, ok := scanLog(logPath, pattern); ok {
			at := time.Now()
			if ts, ok := lineTimestamp(line); ok {
				at = ts
			}
			return line, at, nil
		}
		if time.Now().After(deadline) {
			return "", time.Time{}, fmt.Errorf("%w: %q not seen in %s within %s", ErrTimeout, pattern, logPath, timeout)
		}
		select {
		case <-ctx.Done():
			return "", time.Time{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Leading wall-clock stamp of an application log line, e.g.
// "2026-08-26T09:15:02.123Z  INFO ..." or "2026-08-26 09:15:02.123 ...".
var lineStampRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}\.\d+(?:Z|[+-]\d{2}:?\d{2})?`)

func lineTimestamp(line string) (time.Time, bool) {
	raw := lineStampRe.FindString(line)
	if raw == "" {
		return time.Time{}, false
	}
	raw = strings.Replace(raw, " ", "T", 1)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999-0700"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	// No zone suffix: application logs default to local time.
	if ts, err := time.ParseInLocation("2006-01-02T15:04:05.999", raw, time.Local); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

func scanLog(logPath string, pattern *regexp.Regexp) (string, bool) {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return "", false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if pattern.MatchString(line) {
			return line, true
		}
	}
	return "", false
}

// WaitForHTTP polls url with GET until a 2xx response or the timeout elapses.
// Callers treat exhaustion as a warning, not a failure: some variants bring
// the listener up slightly after the log marker.
func WaitForHTTP(ctx context.Context, url string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s not responding within %s", ErrTimeout, url, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
