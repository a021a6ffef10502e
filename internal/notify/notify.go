package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDeliveryFailed wraps every alert that could not be delivered.
var ErrDeliveryFailed = errors.New("alert delivery failed")

// Alert is a high-concentration event for one station.
type Alert struct {
	StationID    string
	EthylenePpm  float64
	ThresholdPpm float64
	// ObservedAt is the timestamp of the reading that triggered the alert.
	ObservedAt time.Time
}

// Notifier delivers an alert. A nil error means the alert was delivered.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, a Alert) error

func (f Func) Notify(ctx context.Context, a Alert) error { return f(ctx, a) }

// Subject is the alert email subject line.
func Subject(a Alert) string {
	return fmt.Sprintf("High Ethylene Alert: Station %s", a.StationID)
}

// Message is the human-readable alert text.
func Message(a Alert) string {
	return fmt.Sprintf("Ethylene level is high (%.2f ppm) at Station %s!", a.EthylenePpm, a.StationID)
}

// Safe wraps n so that a panic inside it becomes a delivery failure and every
// error matches ErrDeliveryFailed.
func Safe(n Notifier) Notifier {
	if n == nil {
		return Func(func(context.Context, Alert) error {
			return fmt.Errorf("%w: no notifier configured", ErrDeliveryFailed)
		})
	}
	if _, ok := n.(safe); ok {
		return n
	}
	return safe{next: n}
}

type safe struct {
	next Notifier
}

func (s safe) Notify(ctx context.Context, a Alert) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: notifier panicked: %v", ErrDeliveryFailed, r)
		}
	}()
	if err := s.next.Notify(ctx, a); err != nil {
		if errors.Is(err, ErrDeliveryFailed) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return nil
}
