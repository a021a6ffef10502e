package alert

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/metrics"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/notify"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/store"
)

// History records alerts that were delivered.
type History interface {
	RecordAlert(ctx context.Context, a notify.Alert, raisedAt time.Time) error
}

type MonitorConfig struct {
	// Interval between observation passes. Status answers from the last
	// snapshot while it is younger than Interval.
	Interval time.Duration
	// Lookback bounds how far back each pass reads the store.
	Lookback time.Duration
}

// Monitor runs the observation path: list recent readings, aggregate per
// station, and pass each station's current reading through the Gate.
type Monitor struct {
	lister  store.Lister
	gate    *Gate
	cfg     MonitorConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
	history History

	mu       sync.Mutex
	snapshot Snapshot
	snapAt   time.Time
	storeErr error
}

func NewMonitor(lister store.Lister, gate *Gate, cfg MonitorConfig, m *metrics.Metrics, logger *slog.Logger) *Monitor {
	return &Monitor{
		lister:  lister,
		gate:    gate,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock replaces the time source for snapshot age and lookback.
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}

// SetHistory makes the monitor record every delivered alert in h.
func (m *Monitor) SetHistory(h History) {
	m.history = h
}

// Report summarizes one observation pass.
type Report struct {
	Stations  int
	Skipped   int
	Decisions map[string]Decision
}

// Run performs a pass immediately and then every Interval until ctx is done.
// Failed passes are logged and do not stop the loop.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("alert monitor started", "interval", m.cfg.Interval, "lookback", m.cfg.Lookback)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := m.RunOnce(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn("observation pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			m.logger.Info("alert monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce performs one observation pass, dispatching alerts as the Gate decides.
func (m *Monitor) RunOnce(ctx context.Context) (Report, error) {
	m.mu.Lock()
	snap, err := m.refreshLocked(ctx)
	m.mu.Unlock()
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		Stations:  len(snap.current),
		Skipped:   snap.Skipped,
		Decisions: make(map[string]Decision, len(snap.current)),
	}
	if snap.Skipped > 0 {
		m.logger.Warn("skipped undecodable stored readings", "count", snap.Skipped)
	}
	if snap.Empty() {
		m.logger.Info("no readings available")
		return rep, nil
	}

	for _, id := range snap.Stations() {
		r, _ := snap.Current(id)
		m.metrics.SetStationPpm(id, r.EthylenePpm)

		d, err := m.gate.Evaluate(ctx, r)
		rep.Decisions[id] = d
		if d != DecisionBelowThreshold {
			m.metrics.IncAlert(d.String())
		}

		switch d {
		case DecisionFired:
			m.logger.Warn("ethylene alert sent",
				"station_id", id,
				"ethylene_ppm", r.EthylenePpm,
				"threshold_ppm", float64(m.gate.Threshold()),
				"observed_at", r.Timestamp,
			)
			m.recordAlert(ctx, notify.Alert{
				StationID:    id,
				EthylenePpm:  r.EthylenePpm,
				ThresholdPpm: float64(m.gate.Threshold()),
				ObservedAt:   r.Timestamp,
			})
		case DecisionSuppressed:
			m.logger.Info("ethylene alert suppressed by cooldown", "station_id", id, "ethylene_ppm", r.EthylenePpm)
		case DecisionNotifyFailed:
			m.logger.Error("ethylene alert delivery failed", "station_id", id, "ethylene_ppm", r.EthylenePpm, "error", err)
		default:
			m.logger.Debug("ethylene level normal", "station_id", id, "ethylene_ppm", r.EthylenePpm)
		}
	}
	return rep, nil
}

func (m *Monitor) recordAlert(ctx context.Context, a notify.Alert) {
	if m.history == nil {
		return
	}
	if err := m.history.RecordAlert(ctx, a, m.now().UTC()); err != nil {
		m.logger.Warn("record alert history failed", "station_id", a.StationID, "error", err)
	}
}

func (m *Monitor) refreshLocked(ctx context.Context) (Snapshot, error) {
	now := m.now()
	var since time.Time
	if m.cfg.Lookback > 0 {
		since = now.Add(-m.cfg.Lookback)
	}

	records, err := m.lister.ListRecent(ctx, since)
	if err != nil {
		if !errors.Is(err, store.ErrUnavailable) {
			err = store.Unavailable("list recent", err)
		}
		m.storeErr = err
		m.metrics.SetStoreUp(false)
		return Snapshot{}, err
	}

	m.storeErr = nil
	m.metrics.SetStoreUp(true)
	m.snapshot = Aggregate(records)
	m.snapAt = now
	return m.snapshot, nil
}

// Healthy reports whether the last store read succeeded.
func (m *Monitor) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.storeErr == nil
}

// StationStatus is the display form of one station's current decision.
type StationStatus struct {
	StationID   string     `json:"station_id"`
	Timestamp   time.Time  `json:"timestamp"`
	EthylenePpm float64    `json:"ethylene_ppm"`
	High        bool       `json:"high"`
	AlertState  string     `json:"alert_state"`
	LastAlertAt *time.Time `json:"last_alert_at,omitempty"`
}

// Status is the display form of the whole observation path.
type Status struct {
	NoData         bool            `json:"no_data"`
	StoreHealthy   bool            `json:"store_healthy"`
	ThresholdPpm   float64         `json:"threshold_ppm"`
	SkippedRecords int             `json:"skipped_records"`
	AsOf           time.Time       `json:"as_of"`
	Stations       []StationStatus `json:"stations"`
}

// Status re-derives every station's alert decision for display. It never
// dispatches alerts. When the store cannot be read the last snapshot is served
// with StoreHealthy false; with no snapshot at all the store error is returned.
func (m *Monitor) Status(ctx context.Context) (Status, error) {
	m.mu.Lock()
	snap, asOf := m.snapshot, m.snapAt
	healthy := m.storeErr == nil
	if asOf.IsZero() || m.now().Sub(asOf) >= m.cfg.Interval {
		fresh, err := m.refreshLocked(ctx)
		switch {
		case err == nil:
			snap, asOf, healthy = fresh, m.snapAt, true
		case asOf.IsZero():
			m.mu.Unlock()
			return Status{}, err
		default:
			healthy = false
		}
	}
	m.mu.Unlock()

	st := Status{
		NoData:         snap.Empty(),
		StoreHealthy:   healthy,
		ThresholdPpm:   float64(m.gate.Threshold()),
		SkippedRecords: snap.Skipped,
		AsOf:           asOf.UTC(),
		Stations:       make([]StationStatus, 0, len(snap.current)),
	}
	for _, id := range snap.Stations() {
		st.Stations = append(st.Stations, m.stationStatus(id, snap))
	}
	return st, nil
}

// StationStatus returns one station's status. ok is false when the station has
// no readings, which is a "no data" condition and not an error.
func (m *Monitor) StationStatus(ctx context.Context, stationID string) (StationStatus, bool, error) {
	st, err := m.Status(ctx)
	if err != nil {
		return StationStatus{}, false, err
	}
	for _, s := range st.Stations {
		if s.StationID == stationID {
			return s, true, nil
		}
	}
	return StationStatus{}, false, nil
}

func (m *Monitor) stationStatus(id string, snap Snapshot) StationStatus {
	r, _ := snap.Current(id)
	gs := m.gate.State(id)
	out := StationStatus{
		StationID:   id,
		Timestamp:   r.Timestamp,
		EthylenePpm: r.EthylenePpm,
		High:        m.gate.Threshold().IsHigh(r.EthylenePpm),
		AlertState:  gs.State.String(),
	}
	if !gs.LastAlertAt.IsZero() {
		t := gs.LastAlertAt.UTC()
		out.LastAlertAt = &t
	}
	return out
}
