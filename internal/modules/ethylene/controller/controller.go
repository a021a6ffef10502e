package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/alert"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/modules/ethylene/repository"
)

// StatusSource re-derives the current alert decision per station.
type StatusSource interface {
	Status(ctx context.Context) (alert.Status, error)
	StationStatus(ctx context.Context, stationID string) (alert.StationStatus, bool, error)
}

type EthyleneController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type ethyleneControllerImpl struct {
	repository repository.EthyleneRepository
	status     StatusSource
	refresh    time.Duration
	logger     *slog.Logger
}

// NewEthyleneController builds the HTTP read API. refresh is the dashboard
// reload period.
func NewEthyleneController(repo repository.EthyleneRepository, status StatusSource, refresh time.Duration, logger *slog.Logger) EthyleneController {
	return &ethyleneControllerImpl{repository: repo, status: status, refresh: refresh, logger: logger}
}

func (c *ethyleneControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", c.handleDashboard)
	mux.HandleFunc("GET /api/v1/stations", c.handleStations)
	mux.HandleFunc("GET /api/v1/stations/{id}/latest", c.handleLatest)
	mux.HandleFunc("GET /api/v1/stations/{id}/readings", c.handleReadings)
	mux.HandleFunc("GET /api/v1/stations/{id}/status", c.handleStationStatus)
	mux.HandleFunc("GET /api/v1/status", c.handleStatus)
	mux.HandleFunc("GET /api/v1/alerts", c.handleAlerts)
}
