package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/ethylene"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/metrics"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/serial"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/store"
)

const appendTimeout = 10 * time.Second

// FrameSource yields one text frame per call.
type FrameSource interface {
	ReadLine(ctx context.Context) (string, error)
}

// Loop is the ingest path: frame source, pipeline, reading store. Frames are
// processed one at a time, end to end, before the next is read.
type Loop struct {
	source   FrameSource
	pipeline *ethylene.Pipeline
	appender store.Appender
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewLoop(src FrameSource, p *ethylene.Pipeline, a store.Appender, m *metrics.Metrics, logger *slog.Logger) *Loop {
	outcomes := ethylene.Outcomes()
	names := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		names = append(names, o.String())
	}
	m.InitFrames(names...)
	return &Loop{source: src, pipeline: p, appender: a, metrics: m, logger: logger}
}

// Run processes frames until ctx is cancelled or the source ends. An append
// already in flight when ctx is cancelled is allowed to finish.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("ingest loop started")
	for {
		line, err := l.source.ReadLine(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("ingest loop stopped")
				return nil
			}
			if errors.Is(err, serial.ErrFrameTooLong) {
				l.metrics.IncFrame(ethylene.OutcomeMalformed.String())
				l.logger.Warn("dropped overlong frame", "max_bytes", serial.MaxFrameLen)
				continue
			}
			return err
		}
		l.Handle(ctx, line)
	}
}

// Handle runs one frame through the pipeline and stores the resulting reading.
func (l *Loop) Handle(ctx context.Context, line string) ethylene.Result {
	res := l.pipeline.Process(line)
	l.metrics.IncFrame(res.Outcome.String())

	switch res.Outcome {
	case ethylene.OutcomeUnrecognized:
		if line != "" {
			l.logger.Debug("ignored non-sensor line", "line", line)
		}
	case ethylene.OutcomeMalformed:
		l.logger.Warn("malformed sensor line", "stage", "parse", "line", line, "error", res.Err)
	case ethylene.OutcomeDisconnected:
		l.logger.Warn("sensor disconnected or unstable voltage", "stage", "filter", "voltage", res.Voltage)
	case ethylene.OutcomeInvalid:
		l.logger.Warn("rejected non-finite value", "stage", "convert", "line", line, "error", res.Err)
	case ethylene.OutcomeReading:
		l.logger.Info("reading",
			"voltage_avg", res.Smoothed,
			"ethylene_ppm", res.Reading.EthylenePpm,
			"sequence", res.Reading.Sequence,
		)
		l.store(ctx, res)
	}
	return res
}

func (l *Loop) store(ctx context.Context, res ethylene.Result) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
	defer cancel()

	start := time.Now()
	err := l.appender.Append(actx, res.Reading)
	l.metrics.ObserveAppend(time.Since(start).Seconds(), err)
	if err != nil {
		l.logger.Error("store append failed, reading dropped",
			"timestamp", res.Reading.Timestamp,
			"ethylene_ppm", res.Reading.EthylenePpm,
			"error", err,
		)
	}
}
