package ethylene

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/modules/ethylene/controller"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/modules/ethylene/repository"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/mqtt"
)

// RegisterFeature mounts the read API and dashboard on mux and, when subscriber
// is non-nil, stores every reading received from the broker.
func RegisterFeature(mux *http.ServeMux, repo repository.EthyleneRepository, status controller.StatusSource, refresh time.Duration, subscriber mqtt.MQTTSubscriber, logger *slog.Logger) {
	ethyleneController := controller.NewEthyleneController(repo, status, refresh, logger)
	ethyleneController.RegisterRoutes(mux)

	if subscriber != nil {
		registerMQTTHandler(subscriber, repo, logger)
	}
}
