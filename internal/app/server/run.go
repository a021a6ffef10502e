package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/alert"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/config"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/db"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/httpapi"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/metrics"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/migrate"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/modules/ethylene"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/modules/ethylene/repository"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/modules/ethylene/views"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/mqtt"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/notify"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/store"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/store/dynamo"
)

func Run(ctx context.Context, cfg config.Server, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"storeBackend", cfg.StoreBackend,
		"sqlitePath", cfg.SQLite.Path,
		"refreshInterval", cfg.RefreshInterval,
		"lookback", cfg.Lookback,
		"notifiers", cfg.Notifiers,
		"thresholdPpm", cfg.Tuning.ThresholdPpm,
		"cooldown", cfg.Tuning.Cooldown,
		"mqttBroker", cfg.MQTT.Broker,
		"mqttPort", cfg.MQTT.Port,
		"mqttTopic", cfg.MQTT.Topic,
	)

	dbConn, err := db.Open(cfg.SQLite, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	if _, err := migrate.Run(ctx, dbConn, logger); err != nil {
		return err
	}

	var ok int
	if err := dbConn.QueryRowContext(ctx, `SELECT 1`).Scan(&ok); err != nil {
		return err
	}
	if ok != 1 {
		return errors.New("database connection failed")
	}
	logger.Info("database connection successful")

	repo := repository.NewRepository(dbConn)
	lister, err := buildLister(ctx, cfg, repo)
	if err != nil {
		return err
	}

	m := metrics.New()
	notifier, closeNotifier, err := buildNotifier(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	gate := alert.NewGate(alert.Threshold(cfg.Tuning.ThresholdPpm), cfg.Tuning.Cooldown, notifier)
	monitor := alert.NewMonitor(lister, gate, alert.MonitorConfig{
		Interval: cfg.RefreshInterval,
		Lookback: cfg.Lookback,
	}, m, logger)
	monitor.SetHistory(repo)

	if err := views.LoadTemplates(); err != nil {
		return err
	}

	// Set the MQTT handler before Connect so the first subscription already
	// delivers to the repository.
	subscriber := mqtt.NewSubscriber(cfg.MQTT, logger, m)
	mux := httpapi.NewMux(dbConn, monitor, m.Handler(), logger)
	ethylene.RegisterFeature(mux, repo, monitor, cfg.RefreshInterval, subscriber, logger)

	// Short timeout so a missing broker does not block startup.
	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	err = subscriber.Connect(connectCtx)
	connectCancel()
	if err != nil {
		logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
	}

	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("monitor stopped", "error", err)
		}
	}()

	srv := httpapi.NewServer(cfg.HTTPAddr, mux, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		subscriber.Disconnect()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("mqtt disconnecting")
	subscriber.Disconnect()

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-monitorDone

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

func buildLister(ctx context.Context, cfg config.Server, repo repository.EthyleneRepository) (store.Lister, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		return repo, nil
	case "dynamodb":
		return dynamo.NewFromConfig(ctx, cfg.DynamoDB)
	}
	return nil, fmt.Errorf("invalid store backend %q", cfg.StoreBackend)
}

// buildNotifier combines the channels named in cfg.Notifiers. The returned
// func releases any connection the channels hold.
func buildNotifier(ctx context.Context, cfg config.Server, logger *slog.Logger) (notify.Notifier, func(), error) {
	channels := make(map[string]notify.Notifier, len(cfg.Notifiers))
	var closers []func()

	for _, name := range cfg.Notifiers {
		switch name {
		case "log":
			channels[name] = notify.Log{Logger: logger}
		case "email":
			e, err := notify.NewEmail(cfg.Email)
			if err != nil {
				return nil, nil, err
			}
			channels[name] = e
		case "mqtt":
			mcfg := cfg.MQTT
			mcfg.ClientID = cfg.MQTT.ClientID + "-alerts"
			client := mqtt.NewClient(mcfg, logger)
			go func() {
				if err := client.Connect(ctx); err != nil {
					logger.Warn("mqtt alert channel connect failed", "error", err)
				}
			}()
			closers = append(closers, client.Disconnect)
			channels[name] = notify.MQTT{Publisher: client, Topic: mqtt.AlertsTopic}
		default:
			return nil, nil, fmt.Errorf("unknown notifier %q", name)
		}
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if len(channels) == 1 {
		for _, n := range channels {
			return notify.Safe(n), closeAll, nil
		}
	}
	return notify.Multi{Channels: channels, Logger: logger}, closeAll, nil
}
