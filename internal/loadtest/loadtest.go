// Package loadtest drives concurrent search and export requests against a
// running search service and summarises latency, status codes and search
// outcomes.
package loadtest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultQueries mixes single terms, phrases and every join so that found,
// empty and not-found outcomes all occur against the report index.
var DefaultQueries = []string{
	"coal",
	"gold",
	"coal seam",
	"coal seam gas",
	"coal AND gold",
	"gold OR copper",
	"copper NOT gold",
	"coal AND seam NOT gas",
	"bauxite OR magnetite OR uranium",
	"drill core",
	"exploration permit",
	"xyzzyplugh",
}

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Queries     []string
	// ExportEvery sends every nth request of a worker to the CSV export
	// endpoint. Zero disables exports.
	ExportEvery int
	Client      *http.Client
}

type Stats struct {
	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
	outcomes    map[string]int64
	total       int64
	success     int64
	errors      int64
	cacheHits   int64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]int64),
		outcomes:    make(map[string]int64),
	}
}

// Record adds one request. outcome is the search status, "export" for a CSV
// download, or "" when the body could not be read.
func (s *Stats) Record(d time.Duration, statusCode int, outcome string, cacheHit bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	if err != nil {
		s.errors++
		return
	}
	// 404 is the export answer for missing terms, not a failure.
	if statusCode < 300 || statusCode == http.StatusNotFound {
		s.success++
	} else {
		s.errors++
	}
	if cacheHit {
		s.cacheHits++
	}
	if outcome != "" {
		s.outcomes[outcome]++
	}
	s.latencies = append(s.latencies, d)
	s.statusCodes[statusCode]++
}

type Report struct {
	Total       int64
	Success     int64
	Errors      int64
	CacheHits   int64
	RPS         float64
	ErrorRate   float64
	StatusCodes map[int]int64
	Outcomes    map[string]int64

	Min, Avg, P50, P90, P95, P99, Max, StdDev time.Duration
}

// Report summarises everything recorded over elapsed.
func (s *Stats) Report(elapsed time.Duration) Report {
	s.mu.Lock()
	r := Report{
		Total:       s.total,
		Success:     s.success,
		Errors:      s.errors,
		CacheHits:   s.cacheHits,
		StatusCodes: make(map[int]int64, len(s.statusCodes)),
		Outcomes:    make(map[string]int64, len(s.outcomes)),
	}
	for k, v := range s.statusCodes {
		r.StatusCodes[k] = v
	}
	for k, v := range s.outcomes {
		r.Outcomes[k] = v
	}
	latencies := append([]time.Duration(nil), s.latencies...)
	s.mu.Unlock()

	if r.Total > 0 {
		r.ErrorRate = float64(r.Errors) / float64(r.Total) * 100
		if elapsed > 0 {
			r.RPS = float64(r.Total) / elapsed.Seconds()
		}
	}
	if len(latencies) == 0 {
		return r
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	r.Avg = sum / time.Duration(len(latencies))
	r.Min = latencies[0]
	r.Max = latencies[len(latencies)-1]
	r.P50 = percentile(latencies, 50)
	r.P90 = percentile(latencies, 90)
	r.P95 = percentile(latencies, 95)
	r.P99 = percentile(latencies, 99)

	var sumSquared float64
	for _, l := range latencies {
		diff := float64(l - r.Avg)
		sumSquared += diff * diff
	}
	r.StdDev = time.Duration(math.Sqrt(sumSquared / float64(len(latencies))))
	return r
}

// Print writes the report in the layout of the command's console output.
func (r Report) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", r.Total)
	fmt.Fprintf(w, "Successful:      %d\n", r.Success)
	fmt.Fprintf(w, "Errors:          %d\n", r.Errors)
	fmt.Fprintf(w, "Cache Hits:      %d\n", r.CacheHits)
	if r.Total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", r.ErrorRate)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", r.RPS)
	}

	if r.Max > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", r.Min)
		fmt.Fprintf(w, "Avg:    %s\n", r.Avg)
		fmt.Fprintf(w, "P50:    %s\n", r.P50)
		fmt.Fprintf(w, "P90:    %s\n", r.P90)
		fmt.Fprintf(w, "P95:    %s\n", r.P95)
		fmt.Fprintf(w, "P99:    %s\n", r.P99)
		fmt.Fprintf(w, "Max:    %s\n", r.Max)
		fmt.Fprintf(w, "StdDev: %s\n", r.StdDev)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Outcomes ===")
	outcomes := make([]string, 0, len(r.Outcomes))
	for o := range r.Outcomes {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(w, "  %-15s %d\n", o, r.Outcomes[o])
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	codes := make([]int, 0, len(r.StatusCodes))
	for code := range r.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, r.StatusCodes[code])
	}
}

// Run sends requests from cfg.Concurrency workers until cfg.Duration has
// elapsed or ctx is cancelled.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	if len(cfg.Queries) == 0 {
		return nil, fmt.Errorf("no queries to send")
	}
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.Concurrency * 2,
				MaxIdleConnsPerHost: cfg.Concurrency * 2,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	stats := NewStats()
	var g errgroup.Group
	for w := 0; w < cfg.Concurrency; w++ {
		worker := w
		g.Go(func() error {
			for n := 1; ctx.Err() == nil; n++ {
				query := cfg.Queries[(worker+n)%len(cfg.Queries)]
				export := cfg.ExportEvery > 0 && n%cfg.ExportEvery == 0
				start := time.Now()
				status, outcome, hit, err := send(ctx, client, cfg.BaseURL, query, export)
				if ctx.Err() != nil {
					return nil
				}
				stats.Record(time.Since(start), status, outcome, hit, err)
			}
			return nil
		})
	}
	return stats, g.Wait()
}

func send(ctx context.Context, client *http.Client, baseURL, query string, export bool) (int, string, bool, error) {
	path := "/api/v1/search"
	if export {
		path = "/api/v1/search/export"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return 0, "", false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", false, err
	}
	defer resp.Body.Close()

	if export && resp.StatusCode == http.StatusOK {
		_, err := io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, "export", false, err
	}
	var body struct {
		Status   string `json:"status"`
		Count    int    `json:"count"`
		CacheHit bool   `json:"cache_hit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return resp.StatusCode, "", false, nil
	}
	outcome := body.Status
	if outcome == "found" && body.Count == 0 {
		outcome = "empty"
	}
	return resp.StatusCode, outcome, body.CacheHit, nil
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
