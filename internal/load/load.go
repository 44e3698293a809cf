// Package load drives a fixed synthetic HTTP workload against the measured
// application. The same request sequence runs during training, warm-up and
// benchmark phases so caches and archives are primed with the workload that
// is later measured.
package load

import (
	"context"
	"log"
	"net/http"
	"time"
)

// StatusConnFailed is recorded when a request never reached the server.
const StatusConnFailed = 0

type Generator struct {
	BaseURL string
	Paths   []string
	Delay   time.Duration
	Client  *http.Client
}

func New(baseURL string, paths []string, delay time.Duration) *Generator {
	return &Generator{
		BaseURL: baseURL,
		Paths:   paths,
		Delay:   delay,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Run issues one GET per configured path, in order, pausing Delay after each
// request. Failures are recorded in the returned status sequence and never
// abort the run; a flaky request must not cost an expensive training pass or
// a benchmark sample.
func (g *Generator) Run(ctx context.Context) []int {
	statuses := make([]int, 0, len(g.Paths))
	for _, p := range g.Paths {
		statuses = append(statuses, g.get(ctx, g.BaseURL+p))
		select {
		case <-ctx.Done():
			return statuses
		case <-time.After(g.Delay):
		}
	}
	return statuses
}

func (g *Generator) get(ctx context.Context, url string) int {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Printf("warning: load request %s: %v", url, err)
		return StatusConnFailed
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		log.Printf("warning: load request %s: %v", url, err)
		return StatusConnFailed
	}
	resp.Body.Close()
	return resp.StatusCode
}

// Failures counts entries outside the 2xx range, for diagnostics only.
func Failures(statuses []int) int {
	n := 0
	for _, s := range statuses {
		if s < 200 || s >= 300 {
			n++
		}
	}
	return n
}
