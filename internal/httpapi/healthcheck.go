package httpapi

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/utils"
)

// StoreHealth reports whether the observation path can read its store.
type StoreHealth interface {
	Healthy() bool
}

type healthchecker struct {
	db     *sql.DB
	store  StoreHealth
	logger *slog.Logger
}

func (h *healthchecker) handleHealthz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	var ok int
	if err := h.db.QueryRowContext(ctx, `SELECT 1`).Scan(&ok); err != nil {
		h.logger.Error("failed to check database connectivity", "error", err)
		checks["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.store != nil {
		if h.store.Healthy() {
			checks["reading_store"] = "ok"
		} else {
			checks["reading_store"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	body := map[string]any{"status": "ok", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	utils.WriteJSON(w, status, body)
}

func registerHealthcheck(mux *http.ServeMux, db *sql.DB, store StoreHealth, logger *slog.Logger) {
	h := &healthchecker{db: db, store: store, logger: logger}
	mux.HandleFunc("GET /healthz", h.handleHealthz)
}
