package health

import (
	"context"
	"sync"
	"time"

	"vdestor_backend/platform/logger"

	"golang.org/x/sync/singleflight"
)

// Status is the availability of the primary backend as seen by the gate.
type Status string

const (
	StatusUp       Status = "UP"
	StatusDegraded Status = "DEGRADED"
	StatusDown     Status = "DOWN"
)

// State is a snapshot of the gate.
type State struct {
	Status              Status    `json:"status"`
	ConsecutiveFailures uint      `json:"consecutive_failures"`
	NextProbeAllowedAt  time.Time `json:"next_probe_allowed_at"`
	LastProbeAt         time.Time `json:"last_probe_at,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
}

// Clock is the gate's time source.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Prober performs one cheap liveness call against the primary backend.
type Prober interface {
	Ping(ctx context.Context) error
}

// Checker is what the orchestrator needs from the gate.
type Checker interface {
	IsAvailable(ctx context.Context) bool
	RecordOutcome(success bool)
	Snapshot() State
}

// GateConfig bounds the gate's behavior.
type GateConfig struct {
	Backoff          BackoffPolicy
	FailureThreshold uint
	ProbeTimeout     time.Duration
}

// Gate is the process-wide availability tracker for the primary backend.
// All state transitions happen under mu; probes are collapsed with
// singleflight so a burst of requests produces at most one probe.
type Gate struct {
	mu     sync.Mutex
	state  State
	cfg    GateConfig
	prober Prober
	clock  Clock
	log    *logger.Logger
	flight singleflight.Group
}

// GateOption customizes a Gate.
type GateOption func(*Gate)

// WithClock injects the time source.
func WithClock(clock Clock) GateOption {
	return func(g *Gate) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithLogger sets the logger used for status transitions.
func WithLogger(log *logger.Logger) GateOption {
	return func(g *Gate) {
		if log != nil {
			g.log = log
		}
	}
}

// NewGate creates a gate that starts UP with a probe due immediately.
func NewGate(prober Prober, cfg GateConfig, opts ...GateOption) *Gate {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 2 * time.Second
	}
	if cfg.Backoff == (BackoffPolicy{}) {
		cfg.Backoff = DefaultBackoff()
	}

	g := &Gate{
		state:  State{Status: StatusUp},
		cfg:    cfg,
		prober: prober,
		clock:  SystemClock{},
		log:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsAvailable reports whether the primary should be tried.
//
// Before NextProbeAllowedAt the cached status answers without contacting the
// backend. Otherwise one probe runs on behalf of every concurrent caller. A
// caller whose context ends stops waiting, but the probe keeps running under
// its own timeout and still updates the state.
func (g *Gate) IsAvailable(ctx context.Context) bool {
	if available, cached := g.cached(); cached {
		return available
	}

	result := g.flight.DoChan("probe", func() (interface{}, error) {
		if available, cached := g.cached(); cached {
			return available, nil
		}

		probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.ProbeTimeout)
		defer cancel()

		err := g.prober.Ping(probeCtx)
		g.record(err, true)
		return g.Snapshot().Status != StatusDown, nil
	})

	select {
	case res := <-result:
		return res.Val.(bool)
	case <-ctx.Done():
		return g.Snapshot().Status != StatusDown
	}
}

// RecordOutcome feeds the result of a real primary call into the gate.
func (g *Gate) RecordOutcome(success bool) {
	var err error
	if !success {
		err = errCallFailed
	}
	g.record(err, false)
}

// Snapshot returns a copy of the current state.
func (g *Gate) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gate) cached() (available bool, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.clock.Now().Before(g.state.NextProbeAllowedAt) {
		return g.state.Status != StatusDown, true
	}
	return false, false
}

func (g *Gate) record(err error, probe bool) {
	g.mu.Lock()
	now := g.clock.Now()
	prev := g.state.Status

	if err == nil {
		g.state.ConsecutiveFailures = 0
		g.state.Status = StatusUp
		g.state.LastError = ""
	} else {
		g.state.ConsecutiveFailures++
		g.state.LastError = err.Error()
		if g.state.ConsecutiveFailures >= g.cfg.FailureThreshold {
			g.state.Status = StatusDown
		} else {
			g.state.Status = StatusDegraded
		}
	}

	interval := g.cfg.Backoff.Interval(g.state.ConsecutiveFailures)
	g.state.NextProbeAllowedAt = now.Add(interval)
	if probe {
		g.state.LastProbeAt = now
	}
	next := g.state
	g.mu.Unlock()

	if prev != next.Status {
		g.log.GateTransition(string(prev), string(next.Status), next.ConsecutiveFailures, interval.Seconds())
	}
}

type gateError string

func (e gateError) Error() string { return string(e) }

const errCallFailed = gateError("primary call failed")
