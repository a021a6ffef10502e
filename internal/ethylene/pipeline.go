package ethylene

import (
	"errors"
	"fmt"
	"time"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/types"
)

// Outcome is what happened to one line fed through the Pipeline.
type Outcome int

const (
	OutcomeUnrecognized Outcome = iota
	OutcomeMalformed
	OutcomeDisconnected
	OutcomeInvalid
	OutcomeReading
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMalformed:
		return "malformed"
	case OutcomeDisconnected:
		return "disconnected"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeReading:
		return "reading"
	default:
		return "unrecognized"
	}
}

// Outcomes lists every Outcome, in declaration order.
func Outcomes() []Outcome {
	return []Outcome{OutcomeUnrecognized, OutcomeMalformed, OutcomeDisconnected, OutcomeInvalid, OutcomeReading}
}

// Result describes one processed line. Reading is only set for OutcomeReading.
type Result struct {
	Outcome  Outcome
	Voltage  float64
	Smoothed float64
	Reading  types.Reading
	Err      error
}

type PipelineConfig struct {
	StationID        string
	WindowSize       int
	DisconnectFloorV float64
	CalibrationSlope float64
}

// Pipeline runs parse, filter, smooth and convert for one station's stream.
// It is owned by a single ingest loop and is not safe for concurrent use.
type Pipeline struct {
	stationID string
	filter    Filter
	smoother  *Smoother
	converter Converter
	seq       uint64
	now       func() time.Time
}

func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.StationID == "" {
		return nil, fmt.Errorf("station id must not be empty")
	}
	smoother, err := NewSmoother(cfg.WindowSize)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		stationID: cfg.StationID,
		filter:    Filter{Floor: cfg.DisconnectFloorV},
		smoother:  smoother,
		converter: Converter{Slope: cfg.CalibrationSlope},
		now:       time.Now,
	}, nil
}

// SetClock replaces the time source used to stamp readings.
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}

// Process feeds one line through the pipeline.
func (p *Pipeline) Process(line string) Result {
	frame := ParseLine(line)
	switch frame.Kind {
	case FrameUnrecognized:
		return Result{Outcome: OutcomeUnrecognized}
	case FrameMalformed:
		return Result{Outcome: OutcomeMalformed, Err: frame.Err}
	}
	return p.ProcessVoltage(frame.Voltage)
}

// ProcessVoltage feeds an already decoded voltage through filter, smoother and converter.
func (p *Pipeline) ProcessVoltage(v float64) Result {
	if err := p.filter.Check(v); err != nil {
		outcome := OutcomeDisconnected
		if errors.Is(err, ErrInvalidNumeric) {
			outcome = OutcomeInvalid
		}
		return Result{Outcome: outcome, Voltage: v, Err: err}
	}

	smoothed := p.smoother.Add(v)
	ppm, err := p.converter.Convert(smoothed)
	if err != nil {
		return Result{Outcome: OutcomeInvalid, Voltage: v, Smoothed: smoothed, Err: err}
	}

	p.seq++
	return Result{
		Outcome:  OutcomeReading,
		Voltage:  v,
		Smoothed: smoothed,
		Reading: types.Reading{
			StationID:   p.stationID,
			Timestamp:   p.now().UTC(),
			EthylenePpm: ppm,
			Sequence:    p.seq,
		},
	}
}

// Window returns a copy of the smoothing window, oldest first.
func (p *Pipeline) Window() []float64 {
	return p.smoother.Samples()
}
