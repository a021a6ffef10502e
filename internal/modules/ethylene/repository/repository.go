package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/relvacode/iso8601"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/notify"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/store"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/types"
)

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/list-recent.sql
var listRecentSQL string

//go:embed sql/get-stations.sql
var getStationsSQL string

//go:embed sql/get-latest-readings.sql
var getLatestReadingsSQL string

//go:embed sql/get-readings.sql
var getReadingsSQL string

//go:embed sql/get-readings-count.sql
var getReadingsCountSQL string

//go:embed sql/insert-alert.sql
var insertAlertSQL string

//go:embed sql/get-alerts.sql
var getAlertsSQL string

// EthyleneRepository is the SQLite reading store. It is both the observation
// path's store (Append, ListRecent) and the source of the HTTP history views.
type EthyleneRepository interface {
	store.Appender
	store.Lister

	GetStations(ctx context.Context) ([]types.Station, error)
	GetLatestReadings(ctx context.Context, stationID string, limit int) ([]types.Reading, error)
	GetReadings(ctx context.Context, stationID string, from, to time.Time, limit, offset int) ([]types.Reading, error)
	GetReadingsCount(ctx context.Context, stationID string, from, to time.Time) (int, error)

	RecordAlert(ctx context.Context, a notify.Alert, raisedAt time.Time) error
	GetAlerts(ctx context.Context, stationID string, limit int) ([]types.AlertRecord, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) EthyleneRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Append(ctx context.Context, rd types.Reading) error {
	if rd.StationID == "" {
		return errors.New("insert reading: empty station id")
	}
	if math.IsNaN(rd.EthylenePpm) || math.IsInf(rd.EthylenePpm, 0) {
		return fmt.Errorf("insert reading: non-finite ethylene_ppm %v", rd.EthylenePpm)
	}
	_, err := r.db.ExecContext(ctx, insertReadingSQL,
		rd.StationID,
		store.FormatTime(rd.Timestamp),
		rd.EthylenePpm,
		int64(rd.Sequence),
	)
	if err != nil {
		return store.Unavailable("insert reading", err)
	}
	return nil
}

// ListRecent returns the stored rows at or after since. Sequence is the row id,
// which increases in insertion order across gateway restarts.
func (r *repositoryImpl) ListRecent(ctx context.Context, since time.Time) ([]types.Record, error) {
	var from string
	if !since.IsZero() {
		from = store.FormatTime(since)
	}
	rows, err := r.db.QueryContext(ctx, listRecentSQL, from)
	if err != nil {
		return nil, store.Unavailable("list recent", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close recent readings rows", "error", err)
		}
	}()

	var out []types.Record
	for rows.Next() {
		var (
			id      int64
			station sql.NullString
			ts      sql.NullString
			ppm     sql.NullString
		)
		if err := rows.Scan(&id, &station, &ts, &ppm); err != nil {
			return nil, store.Unavailable("list recent", err)
		}
		out = append(out, types.Record{
			StationID:   station.String,
			Timestamp:   ts.String,
			EthylenePpm: ppm.String,
			Sequence:    uint64(id),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("list recent", err)
	}
	return out, nil
}

func (r *repositoryImpl) GetStations(ctx context.Context) ([]types.Station, error) {
	rows, err := r.db.QueryContext(ctx, getStationsSQL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close stations rows", "error", err)
		}
	}()
	out := []types.Station{}
	for rows.Next() {
		var s types.Station
		if err := rows.Scan(&s.ID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) GetLatestReadings(ctx context.Context, stationID string, limit int) ([]types.Reading, error) {
	rows, err := r.db.QueryContext(ctx, getLatestReadingsSQL, stationID, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close latest readings rows", "error", err)
		}
	}()
	return scanReadings(rows)
}

func (r *repositoryImpl) GetReadings(ctx context.Context, stationID string, from, to time.Time, limit, offset int) ([]types.Reading, error) {
	rows, err := r.db.QueryContext(ctx, getReadingsSQL, stationID, store.FormatTime(from), store.FormatTime(to), limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close readings rows", "error", err)
		}
	}()
	return scanReadings(rows)
}

func (r *repositoryImpl) GetReadingsCount(ctx context.Context, stationID string, from, to time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, getReadingsCountSQL, stationID, store.FormatTime(from), store.FormatTime(to)).Scan(&n)
	return n, err
}

func scanReadings(rows *sql.Rows) ([]types.Reading, error) {
	out := []types.Reading{}
	for rows.Next() {
		var (
			rec types.Reading
			ts  string
			seq int64
		)
		if err := rows.Scan(&rec.StationID, &ts, &rec.EthylenePpm, &seq); err != nil {
			return nil, err
		}
		t, err := parseTime(ts)
		if err != nil {
			return nil, err
		}
		rec.Timestamp = t
		rec.Sequence = uint64(seq)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) RecordAlert(ctx context.Context, a notify.Alert, raisedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, insertAlertSQL,
		a.StationID,
		a.EthylenePpm,
		a.ThresholdPpm,
		store.FormatTime(a.ObservedAt),
		store.FormatTime(raisedAt),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// GetAlerts returns the newest alerts first. An empty stationID means all stations.
func (r *repositoryImpl) GetAlerts(ctx context.Context, stationID string, limit int) ([]types.AlertRecord, error) {
	rows, err := r.db.QueryContext(ctx, getAlertsSQL, stationID, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close alerts rows", "error", err)
		}
	}()

	out := []types.AlertRecord{}
	for rows.Next() {
		var (
			a                types.AlertRecord
			observed, raised string
		)
		if err := rows.Scan(&a.StationID, &a.EthylenePpm, &a.ThresholdPpm, &observed, &raised); err != nil {
			return nil, err
		}
		if a.ObservedAt, err = parseTime(observed); err != nil {
			return nil, err
		}
		if a.RaisedAt, err = parseTime(raised); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func parseTime(s string) (time.Time, error) {
	t, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
