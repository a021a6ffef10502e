package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Publisher is the part of the MQTT client the alert channel needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, retained bool, payload []byte) error
}

// AlertEvent is the JSON body published for an alert.
type AlertEvent struct {
	EventID      string    `json:"event_id"`
	StationID    string    `json:"station_id"`
	EthylenePpm  float64   `json:"ethylene_ppm"`
	ThresholdPpm float64   `json:"threshold_ppm"`
	ObservedAt   time.Time `json:"observed_at"`
	RaisedAt     time.Time `json:"raised_at"`
	Message      string    `json:"message"`
}

// MQTT publishes alert events to a per-station topic.
type MQTT struct {
	Publisher Publisher
	// Topic maps a station id to the topic its alerts go to.
	Topic func(stationID string) string
	Now   func() time.Time
}

func (m MQTT) Notify(ctx context.Context, a Alert) error {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}

	ev := AlertEvent{
		EventID:      uuid.NewString(),
		StationID:    a.StationID,
		EthylenePpm:  a.EthylenePpm,
		ThresholdPpm: a.ThresholdPpm,
		ObservedAt:   a.ObservedAt.UTC(),
		RaisedAt:     now().UTC(),
		Message:      Message(a),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal alert event: %w", err)
	}

	if err := m.Publisher.Publish(ctx, m.Topic(a.StationID), false, data); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return nil
}
