package health

import (
	"testing"
	"time"
)

func TestDefaultBackoffInterval(t *testing.T) {
	policy := DefaultBackoff()
	cases := map[uint]time.Duration{
		0:    30 * time.Second,
		1:    40 * time.Second,
		3:    60 * time.Second,
		27:   300 * time.Second,
		28:   300 * time.Second,
		1000: 300 * time.Second,
	}
	for failures, want := range cases {
		if got := policy.Interval(failures); got != want {
			t.Fatalf("failures=%d: expected %s, got %s", failures, want, got)
		}
	}
}

func TestBackoffIsMonotonicWithinBounds(t *testing.T) {
	policy := DefaultBackoff()
	prev := policy.Interval(0)
	for f := uint(1); f < 100; f++ {
		got := policy.Interval(f)
		if got < prev {
			t.Fatalf("interval decreased at %d: %s < %s", f, got, prev)
		}
		if got < policy.Floor || got > policy.Ceiling {
			t.Fatalf("interval %s outside [%s, %s]", got, policy.Floor, policy.Ceiling)
		}
		prev = got
	}
}

func TestBackoffHandlesHugeFailureCounts(t *testing.T) {
	policy := DefaultBackoff()
	if got := policy.Interval(^uint(0)); got != policy.Ceiling {
		t.Fatalf("expected ceiling, got %s", got)
	}
}

func TestBackoffWithZeroStepStaysAtFloor(t *testing.T) {
	policy := BackoffPolicy{Floor: 5 * time.Second, Ceiling: time.Minute}
	if got := policy.Interval(10); got != 5*time.Second {
		t.Fatalf("expected floor, got %s", got)
	}
}
