// Package health decides whether the primary search backend may be used.
//
// Gate tracks consecutive primary failures and spaces out probes with an
// adaptive backoff. ResourceMonitor reports process pressure that makes the
// orchestrator skip the primary entirely.
package health

import "time"

// BackoffPolicy computes the wait before the next probe from the number of
// consecutive failures: clamp(Floor + failures*Step, Floor, Ceiling).
type BackoffPolicy struct {
	Floor   time.Duration
	Step    time.Duration
	Ceiling time.Duration
}

// DefaultBackoff is 30s plus 10s per failure, capped at five minutes.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{
		Floor:   30 * time.Second,
		Step:    10 * time.Second,
		Ceiling: 300 * time.Second,
	}
}

// Interval returns the probe interval after the given number of failures.
// It is non-decreasing in failures.
func (p BackoffPolicy) Interval(failures uint) time.Duration {
	if p.Step > 0 && failures > 0 {
		// Past this many steps the ceiling is reached anyway; stopping early
		// keeps the multiplication from overflowing.
		maxSteps := uint((p.Ceiling - p.Floor) / p.Step)
		if failures > maxSteps+1 {
			failures = maxSteps + 1
		}
	}

	interval := p.Floor + time.Duration(failures)*p.Step
	if interval < p.Floor {
		interval = p.Floor
	}
	if interval > p.Ceiling {
		interval = p.Ceiling
	}
	return interval
}
