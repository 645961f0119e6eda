package main

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"vdestor_backend/internal/search/domain"
)

type countingSearcher struct {
	calls atomic.Int32
}

func (s *countingSearcher) Search(_ context.Context, raw domain.RawSearchParams) (*domain.SearchResult, error) {
	n := s.calls.Add(1)
	if raw.Query == "boom" {
		return nil, errors.New("fallback failed")
	}
	result := &domain.SearchResult{Source: domain.SourcePrimary}
	if n%2 == 0 {
		result.Source = domain.SourceFallback
		result.DegradedReason = domain.DegradedPrimaryTimeout
	}
	return result, nil
}

func TestRunBenchCountsEveryRequest(t *testing.T) {
	svc := &countingSearcher{}

	report, err := runBench(context.Background(), svc, benchOptions{
		Queries:     []string{"кабель", "boom"},
		CityID:      "1",
		Requests:    40,
		Concurrency: 4,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Requests != 40 || svc.calls.Load() != 40 {
		t.Fatalf("expected 40 requests, got %d (calls %d)", report.Requests, svc.calls.Load())
	}
	if report.Errors != 20 || report.FirstError == "" {
		t.Fatalf("expected 20 errors, got %d", report.Errors)
	}
	if report.Sources["primary"]+report.Sources["fallback"] != 20 {
		t.Fatalf("unexpected sources %v", report.Sources)
	}
	if !strings.Contains(report.String(), "requests: 40") {
		t.Fatalf("unexpected report text %q", report.String())
	}
}

func TestRunBenchRejectsZeroRequests(t *testing.T) {
	if _, err := runBench(context.Background(), &countingSearcher{}, benchOptions{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPercentiles(t *testing.T) {
	latencies := make([]time.Duration, 100)
	for i := range latencies {
		latencies[len(latencies)-1-i] = time.Duration(i+1) * time.Millisecond
	}

	p50, p95, p99, slowest := percentiles(latencies)
	if p50 != 50*time.Millisecond || p95 != 95*time.Millisecond || p99 != 99*time.Millisecond || slowest != 100*time.Millisecond {
		t.Fatalf("unexpected percentiles %s %s %s %s", p50, p95, p99, slowest)
	}

	if a, b, c, d := percentiles(nil); a+b+c+d != 0 {
		t.Fatalf("expected zeros for no samples")
	}
}
