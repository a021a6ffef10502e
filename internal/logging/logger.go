package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/config"
)

// New builds the process logger on stdout. Development builds get colored,
// human-readable output; release builds emit JSON tagged with app, version and env.
func New(cfg config.Base, version string, appName string) *slog.Logger {
	return NewWithWriter(os.Stdout, cfg, version, appName)
}

func NewWithWriter(w io.Writer, cfg config.Base, version string, appName string) *slog.Logger {
	if version == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
	)
}

// Station scopes a logger to one monitoring station.
func Station(log *slog.Logger, stationID string) *slog.Logger {
	return log.With("station_id", stationID)
}
