package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"vdestor_backend/internal/search/domain"

	"github.com/panjf2000/ants/v2"
)

type searcher interface {
	Search(ctx context.Context, raw domain.RawSearchParams) (*domain.SearchResult, error)
}

type benchOptions struct {
	Queries     []string
	CityID      string
	Requests    int
	Concurrency int
}

type benchReport struct {
	Requests   int
	Errors     int
	Sources    map[string]int
	Degraded   map[string]int
	Elapsed    time.Duration
	P50        time.Duration
	P95        time.Duration
	P99        time.Duration
	Max        time.Duration
	FirstError string
}

func (r benchReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "requests: %d  errors: %d  elapsed: %s\n", r.Requests, r.Errors, r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "latency p50=%s p95=%s p99=%s max=%s\n",
		r.P50.Round(time.Millisecond), r.P95.Round(time.Millisecond), r.P99.Round(time.Millisecond), r.Max.Round(time.Millisecond))
	for _, source := range sortedKeys(r.Sources) {
		fmt.Fprintf(&b, "source %-9s %d\n", source, r.Sources[source])
	}
	for _, reason := range sortedKeys(r.Degraded) {
		fmt.Fprintf(&b, "degraded %-20s %d\n", reason, r.Degraded[reason])
	}
	return b.String()
}

func runBench(ctx context.Context, svc searcher, opts benchOptions) (benchReport, error) {
	if opts.Requests < 1 {
		return benchReport{}, errors.New("requests must be positive")
	}
	if len(opts.Queries) == 0 {
		opts.Queries = []string{""}
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	pool, err := ants.NewPool(opts.Concurrency)
	if err != nil {
		return benchReport{}, err
	}
	defer pool.Release()

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		latencies = make([]time.Duration, 0, opts.Requests)
		report    = benchReport{Sources: map[string]int{}, Degraded: map[string]int{}}
	)

	started := time.Now()
	for i := 0; i < opts.Requests; i++ {
		query := opts.Queries[i%len(opts.Queries)]
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			t0 := time.Now()
			result, err := svc.Search(ctx, domain.RawSearchParams{Query: query, CityID: opts.CityID})
			took := time.Since(t0)

			mu.Lock()
			defer mu.Unlock()
			report.Requests++
			latencies = append(latencies, took)
			if err != nil {
				report.Errors++
				if report.FirstError == "" {
					report.FirstError = err.Error()
				}
				return
			}
			report.Sources[string(result.Source)]++
			if result.DegradedReason != domain.DegradedNone {
				report.Degraded[string(result.DegradedReason)]++
			}
		})
		if err != nil {
			wg.Done()
			return benchReport{}, fmt.Errorf("submit search: %w", err)
		}
	}
	wg.Wait()

	report.Elapsed = time.Since(started)
	report.P50, report.P95, report.P99, report.Max = percentiles(latencies)
	return report, nil
}

// percentiles uses the nearest-rank method.
func percentiles(latencies []time.Duration) (p50, p95, p99, slowest time.Duration) {
	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sorted := append([]time.Duration(nil), latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rank := func(p float64) time.Duration {
		idx := int(math.Ceil(p*float64(len(sorted))-1e-9)) - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}
	return rank(0.50), rank(0.95), rank(0.99), sorted[len(sorted)-1]
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
