package health

import (
	"testing"
	"time"
)

func newTestMonitor(limits ResourceLimits, heapMB uint64, load float64, loadOK bool) (*ResourceMonitor, *fakeClock) {
	clock := newFakeClock()
	m := NewResourceMonitor(limits)
	m.clock = clock
	m.numCPU = 4
	m.readHeap = func() uint64 { return heapMB * 1024 * 1024 }
	m.readLoad = func() (float64, bool) { return load, loadOK }
	return m, clock
}

func TestResourceMonitorWithinLimits(t *testing.T) {
	m, _ := newTestMonitor(ResourceLimits{MaxHeapMB: 512, MaxLoadPerCPU: 2}, 100, 4, true)
	report := m.Check()
	if report.Exhausted {
		t.Fatalf("expected healthy report, got %+v", report)
	}
	if report.LoadPerCPU != 1 {
		t.Fatalf("expected load per cpu 1, got %v", report.LoadPerCPU)
	}
}

func TestResourceMonitorHeapExhausted(t *testing.T) {
	m, _ := newTestMonitor(ResourceLimits{MaxHeapMB: 512}, 600, 0, false)
	report := m.Check()
	if !report.Exhausted || report.Reason == "" {
		t.Fatalf("expected heap exhaustion, got %+v", report)
	}
}

func TestResourceMonitorLoadExhausted(t *testing.T) {
	m, _ := newTestMonitor(ResourceLimits{MaxHeapMB: 512, MaxLoadPerCPU: 2}, 10, 12, true)
	if report := m.Check(); !report.Exhausted {
		t.Fatalf("expected load exhaustion, got %+v", report)
	}
}

func TestResourceMonitorUnknownLoadIsNotExhaustion(t *testing.T) {
	m, _ := newTestMonitor(ResourceLimits{MaxLoadPerCPU: 0.1}, 10, 0, false)
	if report := m.Check(); report.Exhausted || report.LoadKnown {
		t.Fatalf("expected unknown load to pass, got %+v", report)
	}
}

func TestResourceMonitorReusesRecentSample(t *testing.T) {
	m, clock := newTestMonitor(ResourceLimits{MaxHeapMB: 512}, 10, 0, false)
	reads := 0
	m.readHeap = func() uint64 {
		reads++
		return 10 * 1024 * 1024
	}

	m.Check()
	m.Check()
	if reads != 1 {
		t.Fatalf("expected one sample, got %d", reads)
	}
	clock.Advance(2 * time.Second)
	m.Check()
	if reads != 2 {
		t.Fatalf("expected resample after interval, got %d", reads)
	}
}

func TestParseLoadAverage(t *testing.T) {
	load, ok := parseLoadAverage("1.25 0.80 0.50 2/345 6789\n")
	if !ok || load != 1.25 {
		t.Fatalf("expected 1.25, got %v %v", load, ok)
	}
	if _, ok := parseLoadAverage(""); ok {
		t.Fatalf("expected empty input to fail")
	}
}
