package notify

import (
	"context"
	"log/slog"
)

// Log reports alerts as warning log lines. It never fails, so next to other
// channels it does not count as a delivery.
type Log struct {
	Logger *slog.Logger
}

func (Log) BestEffort() bool { return true }

func (l Log) Notify(ctx context.Context, a Alert) error {
	l.Logger.WarnContext(ctx, "high ethylene alert",
		"station_id", a.StationID,
		"ethylene_ppm", a.EthylenePpm,
		"threshold_ppm", a.ThresholdPpm,
		"observed_at", a.ObservedAt,
		"message", Message(a),
	)
	return nil
}
