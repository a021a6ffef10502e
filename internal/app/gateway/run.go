package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/config"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/db"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/ethylene"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/httpapi"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/ingest"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/logging"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/metrics"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/migrate"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/modules/ethylene/repository"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/mqtt"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/serial"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/store"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/store/dynamo"
)

// openSerial is replaced in tests.
var openSerial serial.Opener = serial.OpenDevice

func Run(ctx context.Context, cfg config.Gateway, logger *slog.Logger) error {
	logger.Info("initializing gateway",
		"station_id", cfg.Tuning.StationID,
		"serial_port", cfg.SerialPort,
		"serial_baud", cfg.SerialBaud,
		"store_backend", cfg.StoreBackend,
		"window_size", cfg.Tuning.WindowSize,
		"disconnect_floor_v", cfg.Tuning.DisconnectFloorV,
		"calibration_slope", cfg.Tuning.CalibrationSlope,
	)

	m := metrics.New()
	pipeline, err := ethylene.NewPipeline(ethylene.PipelineConfig{
		StationID:        cfg.Tuning.StationID,
		WindowSize:       cfg.Tuning.WindowSize,
		DisconnectFloorV: cfg.Tuning.DisconnectFloorV,
		CalibrationSlope: cfg.Tuning.CalibrationSlope,
	})
	if err != nil {
		return err
	}

	appender, cleanup, err := buildAppender(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", m.Handler())
		metricsSrv = httpapi.NewServer(cfg.MetricsAddr, mux, logger)
		go func() {
			logger.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	src := serial.NewSource(serial.Config{
		Port:        cfg.SerialPort,
		Baud:        cfg.SerialBaud,
		ReadTimeout: cfg.SerialReadTimeout,
		Settle:      cfg.SerialSettle,
	}, openSerial, logger, m)
	if err := src.Open(ctx); err != nil {
		return fmt.Errorf("serial: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Debug("serial close", "error", err)
		}
	}()

	loop := ingest.NewLoop(src, pipeline, appender, m, logging.Station(logger, cfg.Tuning.StationID))
	runErr := loop.Run(ctx)

	logger.Info("gateway shutting down")
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown", "error", err)
		}
	}
	return runErr
}

// buildAppender returns the reading store selected by cfg.StoreBackend and a
// func releasing it.
func buildAppender(ctx context.Context, cfg config.Gateway, logger *slog.Logger) (store.Appender, func(), error) {
	switch cfg.StoreBackend {
	case "mqtt":
		client := mqtt.NewClient(cfg.MQTT, logger)
		go func() {
			// Readings appended before the first connect fail as unavailable.
			if err := client.Connect(ctx); err != nil {
				logger.Error("mqtt connect failed", "error", err)
			}
		}()
		return client, client.Disconnect, nil

	case "sqlite":
		dbConn, err := db.Open(cfg.SQLite, logger)
		if err != nil {
			return nil, nil, err
		}
		if _, err := migrate.Run(ctx, dbConn, logger); err != nil {
			_ = db.Close(dbConn)
			return nil, nil, err
		}
		cleanup := func() {
			if err := db.Close(dbConn); err != nil {
				logger.Error("db close", "error", err)
			}
		}
		return repository.NewRepository(dbConn), cleanup, nil

	case "dynamodb":
		s, err := dynamo.NewFromConfig(ctx, cfg.DynamoDB)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
	return nil, nil, fmt.Errorf("invalid store backend %q", cfg.StoreBackend)
}
