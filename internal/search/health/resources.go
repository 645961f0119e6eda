package health

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ResourceReport is one reading of process pressure.
type ResourceReport struct {
	HeapInUseMB   uint64    `json:"heap_in_use_mb"`
	MaxHeapMB     uint64    `json:"max_heap_mb"`
	LoadPerCPU    float64   `json:"load_per_cpu"`
	MaxLoadPerCPU float64   `json:"max_load_per_cpu"`
	LoadKnown     bool      `json:"load_known"`
	Exhausted     bool      `json:"exhausted"`
	Reason        string    `json:"reason,omitempty"`
	SampledAt     time.Time `json:"sampled_at"`
}

// ResourceChecker reports whether the process can afford a primary call.
type ResourceChecker interface {
	Check() ResourceReport
}

// ResourceLimits are the thresholds; zero disables a check.
type ResourceLimits struct {
	MaxHeapMB     uint64
	MaxLoadPerCPU float64
}

// ResourceMonitor samples heap usage and the 1-minute load average.
// Readings are reused for sampleEvery since runtime.ReadMemStats stops the
// world.
type ResourceMonitor struct {
	limits      ResourceLimits
	clock       Clock
	sampleEvery time.Duration
	readHeap    func() uint64
	readLoad    func() (float64, bool)
	numCPU      int

	mu   sync.Mutex
	last ResourceReport
}

// NewResourceMonitor creates a monitor reading from the Go runtime and
// /proc/loadavg.
func NewResourceMonitor(limits ResourceLimits) *ResourceMonitor {
	return &ResourceMonitor{
		limits:      limits,
		clock:       SystemClock{},
		sampleEvery: time.Second,
		readHeap:    runtimeHeapInUse,
		readLoad:    procLoadAverage,
		numCPU:      runtime.NumCPU(),
	}
}

// Check returns the latest report, resampling when the previous one is stale.
func (m *ResourceMonitor) Check() ResourceReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if !m.last.SampledAt.IsZero() && now.Sub(m.last.SampledAt) < m.sampleEvery {
		return m.last
	}

	report := ResourceReport{
		HeapInUseMB:   m.readHeap() / (1024 * 1024),
		MaxHeapMB:     m.limits.MaxHeapMB,
		MaxLoadPerCPU: m.limits.MaxLoadPerCPU,
		SampledAt:     now,
	}

	if load, ok := m.readLoad(); ok && m.numCPU > 0 {
		report.LoadKnown = true
		report.LoadPerCPU = load / float64(m.numCPU)
	}

	switch {
	case m.limits.MaxHeapMB > 0 && report.HeapInUseMB > m.limits.MaxHeapMB:
		report.Exhausted = true
		report.Reason = fmt.Sprintf("heap %dMB exceeds %dMB", report.HeapInUseMB, m.limits.MaxHeapMB)
	case m.limits.MaxLoadPerCPU > 0 && report.LoadKnown && report.LoadPerCPU > m.limits.MaxLoadPerCPU:
		report.Exhausted = true
		report.Reason = fmt.Sprintf("load %.2f per cpu exceeds %.2f", report.LoadPerCPU, m.limits.MaxLoadPerCPU)
	}

	m.last = report
	return report
}

func runtimeHeapInUse() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapInuse
}

// procLoadAverage reads the 1-minute load average. Platforms without
// /proc report ok=false and the load check is skipped.
func procLoadAverage() (float64, bool) {
	raw, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, false
	}
	return parseLoadAverage(string(raw))
}

func parseLoadAverage(raw string) (float64, bool) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return 0, false
	}
	load, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return load, true
}
