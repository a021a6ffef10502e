package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.bug.st/serial"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/metrics"
)

// Opener opens the device behind a Source.
type Opener func(cfg Config) (io.ReadCloser, error)

type Config struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
	// Settle is how long to wait after opening for the microcontroller to reset.
	Settle     time.Duration
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// OpenDevice opens a serial port with go.bug.st/serial, 8N1 at cfg.Baud, with
// cfg.ReadTimeout as the per-read timeout.
func OpenDevice(cfg Config) (io.ReadCloser, error) {
	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", cfg.Port, err)
	}
	return port, nil
}

// Source yields frames from a serial device and reopens it when it fails.
// It is used by a single ingest loop.
type Source struct {
	cfg     Config
	open    Opener
	logger  *slog.Logger
	metrics *metrics.Metrics

	port io.ReadCloser
	lr   *LineReader
}

// NewSource builds a Source. open defaults to OpenDevice; m may be nil.
func NewSource(cfg Config, open Opener, logger *slog.Logger, m *metrics.Metrics) *Source {
	if open == nil {
		open = OpenDevice
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Source{cfg: cfg, open: open, logger: logger, metrics: m}
}

// Open opens the device once. A failure here is meant to be fatal for the caller.
func (s *Source) Open(ctx context.Context) error {
	return s.openOnce(ctx)
}

func (s *Source) openOnce(ctx context.Context) error {
	port, err := s.open(s.cfg)
	if err != nil {
		return err
	}

	if s.cfg.Settle > 0 {
		if err := sleep(ctx, s.cfg.Settle); err != nil {
			_ = port.Close()
			return err
		}
	}
	if r, ok := port.(interface{ ResetInputBuffer() error }); ok {
		if err := r.ResetInputBuffer(); err != nil {
			s.logger.Debug("reset serial input buffer failed", "port", s.cfg.Port, "error", err)
		}
	}

	s.port = port
	s.lr = NewLineReader(port)
	s.logger.Info("serial port open", "port", s.cfg.Port, "baud", s.cfg.Baud)
	return nil
}

// ReadLine returns the next frame. Device errors are logged and the device is
// reopened with exponential backoff; only ctx cancellation and
// ErrFrameTooLong are returned to the caller.
func (s *Source) ReadLine(ctx context.Context) (string, error) {
	for {
		if s.port == nil {
			if err := s.reopen(ctx); err != nil {
				return "", err
			}
		}

		line, err := s.lr.ReadLine(ctx)
		switch {
		case err == nil:
			return line, nil
		case errors.Is(err, ErrFrameTooLong):
			return "", err
		case ctx.Err() != nil:
			return "", ctx.Err()
		}

		s.logger.Warn("serial link failed, reopening", "port", s.cfg.Port, "error", err)
		s.closePort()
	}
}

func (s *Source) reopen(ctx context.Context) error {
	backoff := s.cfg.MinBackoff
	for {
		if err := sleep(ctx, backoff); err != nil {
			return err
		}
		err := s.openOnce(ctx)
		if err == nil {
			if s.metrics != nil {
				s.metrics.IncSerialReopen()
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("serial reopen failed", "port", s.cfg.Port, "retry_in", backoff, "error", err)

		backoff *= 2
		if backoff > s.cfg.MaxBackoff {
			backoff = s.cfg.MaxBackoff
		}
	}
}

func (s *Source) closePort() {
	if s.port != nil {
		if err := s.port.Close(); err != nil {
			s.logger.Debug("close serial port", "port", s.cfg.Port, "error", err)
		}
	}
	s.port = nil
	s.lr = nil
}

// Close releases the device.
func (s *Source) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.lr = nil
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
