package alert

import (
	"context"
	"sync"
	"time"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/notify"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/types"
)

// Decision is the gate's verdict for one reading.
type Decision int

const (
	DecisionBelowThreshold Decision = iota
	DecisionFired
	DecisionSuppressed
	DecisionNotifyFailed
)

func (d Decision) String() string {
	switch d {
	case DecisionFired:
		return "fired"
	case DecisionSuppressed:
		return "suppressed"
	case DecisionNotifyFailed:
		return "notify_failed"
	default:
		return "below_threshold"
	}
}

// State is a station's cooldown state.
type State int

const (
	StateQuiet State = iota
	StateSuppressed
)

func (s State) String() string {
	if s == StateSuppressed {
		return "suppressed"
	}
	return "quiet"
}

// StationState is a point-in-time view of one station's gate entry.
type StationState struct {
	State       State
	LastAlertAt time.Time // zero when the station never alerted
}

type stationEntry struct {
	mu       sync.Mutex
	lastSent time.Time
	sent     bool
}

// Gate rate-limits alert dispatch per station. A station fires at most once
// per cooldown window, and the window only starts on a successful delivery.
type Gate struct {
	threshold Threshold
	cooldown  time.Duration
	notifier  notify.Notifier
	now       func() time.Time

	mu       sync.Mutex
	stations map[string]*stationEntry
}

func NewGate(threshold Threshold, cooldown time.Duration, n notify.Notifier) *Gate {
	return &Gate{
		threshold: threshold,
		cooldown:  cooldown,
		notifier:  notify.Safe(n),
		now:       time.Now,
		stations:  make(map[string]*stationEntry),
	}
}

// SetClock replaces the time source used for cooldown decisions.
func (g *Gate) SetClock(now func() time.Time) {
	g.now = now
}

func (g *Gate) Threshold() Threshold { return g.threshold }

func (g *Gate) entry(stationID string) *stationEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.stations[stationID]
	if !ok {
		e = &stationEntry{}
		g.stations[stationID] = e
	}
	return e
}

// Evaluate decides whether r triggers an alert and dispatches it if so. The
// returned error is the notifier's failure for DecisionNotifyFailed.
//
// The station entry stays locked across the notify call, so concurrent
// evaluations of the same station dispatch at most once per window.
func (g *Gate) Evaluate(ctx context.Context, r types.Reading) (Decision, error) {
	if !g.threshold.IsHigh(r.EthylenePpm) {
		return DecisionBelowThreshold, nil
	}

	e := g.entry(r.StationID)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := g.now()
	if e.sent && now.Sub(e.lastSent) <= g.cooldown {
		return DecisionSuppressed, nil
	}

	err := g.notifier.Notify(ctx, notify.Alert{
		StationID:    r.StationID,
		EthylenePpm:  r.EthylenePpm,
		ThresholdPpm: float64(g.threshold),
		ObservedAt:   r.Timestamp,
	})
	if err != nil {
		return DecisionNotifyFailed, err
	}

	if !e.sent || now.After(e.lastSent) {
		e.lastSent = now
	}
	e.sent = true
	return DecisionFired, nil
}

// State reports a station's gate state without changing it.
func (g *Gate) State(stationID string) StationState {
	g.mu.Lock()
	e, ok := g.stations[stationID]
	g.mu.Unlock()
	if !ok {
		return StationState{State: StateQuiet}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.sent {
		return StationState{State: StateQuiet}
	}
	st := StationState{State: StateQuiet, LastAlertAt: e.lastSent}
	if g.now().Sub(e.lastSent) <= g.cooldown {
		st.State = StateSuppressed
	}
	return st
}
