package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"
)

// Stats accumulates per-request outcomes from all workers.
type Stats struct {
	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int
	errors      int
	zeroResults int
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]int),
	}
}

// Record stores one request. Transport errors have no latency sample.
func (s *Stats) Record(d time.Duration, status, hits int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errors++
		if status != 0 {
			s.statusCodes[status]++
		}
		return
	}
	s.statusCodes[status]++
	s.latencies = append(s.latencies, d)
	if status < 200 || status >= 300 {
		s.errors++
		return
	}
	if hits == 0 {
		s.zeroResults++
	}
}

type Report struct {
	Total       int
	Successful  int
	Errors      int
	ZeroResults int
	RPS         float64
	Min         time.Duration
	Avg         time.Duration
	P50         time.Duration
	P90         time.Duration
	P99         time.Duration
	Max         time.Duration
	StdDev      time.Duration
	StatusCodes map[int]int
}

func (s *Stats) Report(elapsed time.Duration) Report {
	s.mu.Lock()
	latencies := append([]time.Duration(nil), s.latencies...)
	codes := make(map[int]int, len(s.statusCodes))
	for k, v := range s.statusCodes {
		codes[k] = v
	}
	errs, zero := s.errors, s.zeroResults
	s.mu.Unlock()

	total := errs
	for code, n := range codes {
		if code >= 200 && code < 300 {
			total += n
		}
	}
	r := Report{
		Total:       total,
		Successful:  total - errs,
		Errors:      errs,
		ZeroResults: zero,
		StatusCodes: codes,
	}
	if elapsed > 0 {
		r.RPS = float64(total) / elapsed.Seconds()
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
	var sumSquared float64
	for _, l := range latencies {
		diff := float64(l - r.Avg)
		sumSquared += diff * diff
	}
	r.StdDev = time.Duration(math.Sqrt(sumSquared / float64(len(latencies))))
	r.Min = latencies[0]
	r.Max = latencies[len(latencies)-1]
	r.P50 = percentile(latencies, 50)
	r.P90 = percentile(latencies, 90)
	r.P99 = percentile(latencies, 99)
	return r
}

func (r Report) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", r.Total)
	fmt.Fprintf(w, "Successful:      %d\n", r.Successful)
	fmt.Fprintf(w, "Zero results:    %d\n", r.ZeroResults)
	fmt.Fprintf(w, "Errors:          %d\n", r.Errors)
	if r.Total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(r.Errors)/float64(r.Total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", r.RPS)
	}
	if r.Max > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", r.Min)
		fmt.Fprintf(w, "Avg:    %s\n", r.Avg)
		fmt.Fprintf(w, "P50:    %s\n", r.P50)
		fmt.Fprintf(w, "P90:    %s\n", r.P90)
		fmt.Fprintf(w, "P99:    %s\n", r.P99)
		fmt.Fprintf(w, "Max:    %s\n", r.Max)
		fmt.Fprintf(w, "StdDev: %s\n", r.StdDev)
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

// percentile expects sorted input.
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
