package types

import "time"

// Reading is one calibrated ethylene measurement for a station.
type Reading struct {
	StationID   string    `json:"station_id"`
	Timestamp   time.Time `json:"timestamp"`
	EthylenePpm float64   `json:"ethylene_ppm"`
	Sequence    uint64    `json:"sequence,omitempty"`
}

// Record is a reading as it comes back from a store. Timestamp and concentration
// are kept as text so that rows written by other producers (or damaged rows) can
// be inspected and rejected by the caller instead of failing the whole listing.
type Record struct {
	StationID   string
	Timestamp   string
	EthylenePpm string
	Sequence    uint64
}

// Station is a distinct station seen in the reading store.
type Station struct {
	ID string `json:"id"`
}

// AlertRecord is a delivered alert as kept in the alert history.
type AlertRecord struct {
	StationID    string    `json:"station_id"`
	EthylenePpm  float64   `json:"ethylene_ppm"`
	ThresholdPpm float64   `json:"threshold_ppm"`
	ObservedAt   time.Time `json:"observed_at"`
	RaisedAt     time.Time `json:"raised_at"`
}
