package ethylene

import (
	"context"
	"log/slog"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/mqtt"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/store"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/types"
)

func registerMQTTHandler(subscriber mqtt.MQTTSubscriber, repo store.Appender, logger *slog.Logger) {
	subscriber.SetMessageHandler(func(ctx context.Context, r types.Reading) error {
		logger.Debug("processing reading message",
			"station_id", r.StationID,
			"timestamp", r.Timestamp,
		)

		if err := repo.Append(ctx, r); err != nil {
			logger.Error("failed to insert reading",
				"station_id", r.StationID,
				"ethylene_ppm", r.EthylenePpm,
				"error", err,
			)
			return err
		}

		logger.Debug("stored reading", "station_id", r.StationID)
		return nil
	})
}
