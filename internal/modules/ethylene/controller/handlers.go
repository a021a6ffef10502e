package controller

import (
	"bytes"
	"net/http"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/modules/ethylene/views"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/utils"
)

func (c *ethyleneControllerImpl) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st, err := c.status.Status(r.Context())
	if err != nil {
		c.logger.Error("dashboard: status failed", "error", err)
		utils.WriteError(w, http.StatusServiceUnavailable, "reading store unavailable")
		return
	}

	data := &views.DashboardData{Status: st, RefreshSeconds: int(c.refresh.Seconds())}
	var buf bytes.Buffer
	if err := views.RenderDashboard(&buf, data); err != nil {
		c.logger.Error("dashboard template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		c.logger.Error("dashboard: write response failed", "error", err)
	}
}

func (c *ethyleneControllerImpl) handleStations(w http.ResponseWriter, r *http.Request) {
	stations, err := c.repository.GetStations(r.Context())
	if err != nil {
		c.logger.Error("get stations failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load stations")
		return
	}
	utils.WriteJSON(w, http.StatusOK, stations)
}

func (c *ethyleneControllerImpl) handleLatest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing station id")
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	latest, err := c.repository.GetLatestReadings(r.Context(), id, limit)
	if err != nil {
		c.logger.Error("get latest readings failed", "station_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}
	utils.WriteJSON(w, http.StatusOK, latest)
}

func (c *ethyleneControllerImpl) handleReadings(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing station id")
		return
	}

	from, to, limit, err := parseReadingsQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := parseOffset(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	upper := to
	if upper.IsZero() {
		upper = endOfTime
	}
	total, err := c.repository.GetReadingsCount(r.Context(), id, from, upper)
	if err != nil {
		c.logger.Error("count readings failed", "station_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}
	readings, err := c.repository.GetReadings(r.Context(), id, from, upper, limit, offset)
	if err != nil {
		c.logger.Error("get readings failed", "station_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"station_id": id,
		"from":       utils.NullTime(from),
		"to":         utils.NullTime(to),
		"limit":      limit,
		"offset":     offset,
		"total":      total,
		"items":      readings,
	})
}

func (c *ethyleneControllerImpl) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := c.status.Status(r.Context())
	if err != nil {
		c.logger.Error("status failed", "error", err)
		utils.WriteError(w, http.StatusServiceUnavailable, "reading store unavailable")
		return
	}
	utils.WriteJSON(w, http.StatusOK, st)
}

func (c *ethyleneControllerImpl) handleStationStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing station id")
		return
	}

	st, ok, err := c.status.StationStatus(r.Context(), id)
	if err != nil {
		c.logger.Error("station status failed", "station_id", id, "error", err)
		utils.WriteError(w, http.StatusServiceUnavailable, "reading store unavailable")
		return
	}
	if !ok {
		utils.WriteError(w, http.StatusNotFound, "no data")
		return
	}
	utils.WriteJSON(w, http.StatusOK, st)
}

func (c *ethyleneControllerImpl) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	stationID := r.URL.Query().Get("station_id")

	alerts, err := c.repository.GetAlerts(r.Context(), stationID, limit)
	if err != nil {
		c.logger.Error("get alerts failed", "station_id", stationID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load alerts")
		return
	}
	utils.WriteJSON(w, http.StatusOK, alerts)
}
