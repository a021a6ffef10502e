package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultStationID        = "pi-lab-1"
	DefaultThresholdPpm     = 2.0
	DefaultCooldownSeconds  = 1800
	DefaultWindowSize       = 5
	DefaultDisconnectFloorV = 0.3
	DefaultCalibrationSlope = 8.5
)

// Tuning is the signal-conditioning and alerting configuration shared by the
// gateway and the server.
type Tuning struct {
	StationID        string
	ThresholdPpm     float64
	Cooldown         time.Duration
	WindowSize       int
	DisconnectFloorV float64
	CalibrationSlope float64
}

// tuningFile mirrors Tuning in the YAML file. Pointers tell "absent" from zero.
type tuningFile struct {
	StationID        *string  `yaml:"station_id"`
	ThresholdPpm     *float64 `yaml:"threshold_ppm"`
	CooldownSeconds  *int     `yaml:"cooldown_seconds"`
	WindowSize       *int     `yaml:"window_size"`
	DisconnectFloorV *float64 `yaml:"disconnect_floor_v"`
	CalibrationSlope *float64 `yaml:"calibration_slope"`
}

// DefaultTuning returns the deployment defaults.
func DefaultTuning() Tuning {
	return Tuning{
		StationID:        DefaultStationID,
		ThresholdPpm:     DefaultThresholdPpm,
		Cooldown:         DefaultCooldownSeconds * time.Second,
		WindowSize:       DefaultWindowSize,
		DisconnectFloorV: DefaultDisconnectFloorV,
		CalibrationSlope: DefaultCalibrationSlope,
	}
}

// LoadTuning starts from the defaults, applies TUNING_FILE (YAML) when set, then
// applies environment overrides, then validates.
func LoadTuning() (Tuning, error) {
	t := DefaultTuning()

	if path := strings.TrimSpace(os.Getenv("TUNING_FILE")); path != "" {
		if err := t.applyFile(path); err != nil {
			return Tuning{}, err
		}
	}

	t.StationID = envString("STATION_ID", t.StationID)

	var err error
	if t.ThresholdPpm, err = envFloat("ALERT_THRESHOLD_PPM", t.ThresholdPpm); err != nil {
		return Tuning{}, err
	}
	cooldownSeconds, err := envInt("ALERT_COOLDOWN_SECONDS", int(t.Cooldown/time.Second))
	if err != nil {
		return Tuning{}, err
	}
	t.Cooldown = time.Duration(cooldownSeconds) * time.Second
	if t.WindowSize, err = envInt("ROLLING_WINDOW_SIZE", t.WindowSize); err != nil {
		return Tuning{}, err
	}
	if t.DisconnectFloorV, err = envFloat("DISCONNECT_FLOOR_V", t.DisconnectFloorV); err != nil {
		return Tuning{}, err
	}
	if t.CalibrationSlope, err = envFloat("CALIBRATION_SLOPE", t.CalibrationSlope); err != nil {
		return Tuning{}, err
	}

	if err := t.Validate(); err != nil {
		return Tuning{}, err
	}
	return t, nil
}

func (t *Tuning) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read TUNING_FILE %q: %w", path, err)
	}
	var f tuningFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse TUNING_FILE %q: %w", path, err)
	}

	if f.StationID != nil {
		t.StationID = strings.TrimSpace(*f.StationID)
	}
	if f.ThresholdPpm != nil {
		t.ThresholdPpm = *f.ThresholdPpm
	}
	if f.CooldownSeconds != nil {
		t.Cooldown = time.Duration(*f.CooldownSeconds) * time.Second
	}
	if f.WindowSize != nil {
		t.WindowSize = *f.WindowSize
	}
	if f.DisconnectFloorV != nil {
		t.DisconnectFloorV = *f.DisconnectFloorV
	}
	if f.CalibrationSlope != nil {
		t.CalibrationSlope = *f.CalibrationSlope
	}
	return nil
}

// Validate reports the first setting that cannot drive the pipeline.
func (t Tuning) Validate() error {
	if t.StationID == "" {
		return fmt.Errorf("STATION_ID must not be empty")
	}
	if !finite(t.ThresholdPpm) {
		return fmt.Errorf("ALERT_THRESHOLD_PPM must be finite, got %v", t.ThresholdPpm)
	}
	if t.Cooldown < 0 {
		return fmt.Errorf("ALERT_COOLDOWN_SECONDS must not be negative, got %v", t.Cooldown)
	}
	if t.WindowSize < 1 {
		return fmt.Errorf("ROLLING_WINDOW_SIZE must be >= 1, got %d", t.WindowSize)
	}
	if !finite(t.DisconnectFloorV) {
		return fmt.Errorf("DISCONNECT_FLOOR_V must be finite, got %v", t.DisconnectFloorV)
	}
	if !finite(t.CalibrationSlope) {
		return fmt.Errorf("CALIBRATION_SLOPE must be finite, got %v", t.CalibrationSlope)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
