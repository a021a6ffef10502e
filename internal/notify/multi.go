package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// bestEffort is implemented by channels whose success does not count as a
// delivery when other channels are configured.
type bestEffort interface {
	BestEffort() bool
}

func isBestEffort(n Notifier) bool {
	be, ok := n.(bestEffort)
	return ok && be.BestEffort()
}

// Multi fans an alert out to several channels. It succeeds when at least one
// delivering channel (email, mqtt) succeeded. Best-effort channels such as Log
// always run but only count when nothing else is configured.
type Multi struct {
	Channels map[string]Notifier
	Logger   *slog.Logger
}

func (m Multi) Notify(ctx context.Context, a Alert) error {
	if len(m.Channels) == 0 {
		return fmt.Errorf("%w: no channels configured", ErrDeliveryFailed)
	}

	var errs []error
	required, delivered := 0, 0
	for name, n := range m.Channels {
		counts := !isBestEffort(n)
		if counts {
			required++
		}
		if err := Safe(n).Notify(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			if m.Logger != nil {
				m.Logger.Warn("alert channel failed", "channel", name, "station_id", a.StationID, "error", err)
			}
			continue
		}
		if counts {
			delivered++
		}
	}

	if required == 0 || delivered == 0 {
		return errors.Join(errs...)
	}
	return nil
}
