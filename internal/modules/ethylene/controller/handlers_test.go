package controller

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/alert"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/migrate"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/modules/ethylene/repository"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/modules/ethylene/views"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/notify"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/types"
)

var base = time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

type fakeStatus struct {
	status alert.Status
	err    error
}

func (f *fakeStatus) Status(context.Context) (alert.Status, error) {
	return f.status, f.err
}

func (f *fakeStatus) StationStatus(_ context.Context, id string) (alert.StationStatus, bool, error) {
	if f.err != nil {
		return alert.StationStatus{}, false, f.err
	}
	for _, s := range f.status.Stations {
		if s.StationID == id {
			return s, true, nil
		}
	}
	return alert.StationStatus{}, false, nil
}

type fixture struct {
	db     *sql.DB
	repo   repository.EthyleneRepository
	status *fakeStatus
	mux    *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if _, err := migrate.Run(context.Background(), db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := &fixture{db: db, repo: repository.NewRepository(db), status: &fakeStatus{}, mux: http.NewServeMux()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	NewEthyleneController(f.repo, f.status, time.Minute, logger).RegisterRoutes(f.mux)
	return f
}

func (f *fixture) seed(t *testing.T, station string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		r := types.Reading{StationID: station, Timestamp: base.Add(time.Duration(i) * time.Minute), EthylenePpm: float64(i) / 2}
		if err := f.repo.Append(context.Background(), r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
}

func (f *fixture) get(t *testing.T, url string, out any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	if out != nil {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return rec
}

func Test_handleStations(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "pi-lab-1", 2)
	f.seed(t, "pi-lab-2", 1)

	var stations []types.Station
	rec := f.get(t, "/api/v1/stations", &stations)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	if len(stations) != 2 || stations[0].ID != "pi-lab-1" {
		t.Fatalf("stations = %+v", stations)
	}
}

func Test_handleStations_storeError(t *testing.T) {
	f := newFixture(t)
	_ = f.db.Close()

	var body map[string]any
	rec := f.get(t, "/api/v1/stations", &body)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d; want 500", rec.Code)
	}
	if body["message"] != "failed to load stations" {
		t.Fatalf("body = %v", body)
	}
}

func Test_handleLatest(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "pi-lab-1", 5)

	var readings []types.Reading
	rec := f.get(t, "/api/v1/stations/pi-lab-1/latest?limit=2", &readings)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	if len(readings) != 2 || readings[0].EthylenePpm != 2 {
		t.Fatalf("readings = %+v", readings)
	}

	rec = f.get(t, "/api/v1/stations/pi-lab-1/latest?limit=5000", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("limit=5000 status = %d; want 400", rec.Code)
	}
}

func Test_handleReadings(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "pi-lab-1", 10)

	t.Run("defaults", func(t *testing.T) {
		var body map[string]any
		rec := f.get(t, "/api/v1/stations/pi-lab-1/readings", &body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want 200", rec.Code)
		}
		if body["from"] != nil || body["to"] != nil {
			t.Fatalf("from/to = %v/%v; want null", body["from"], body["to"])
		}
		if body["limit"] != float64(100) || body["total"] != float64(10) {
			t.Fatalf("limit/total = %v/%v", body["limit"], body["total"])
		}
		if items := body["items"].([]any); len(items) != 10 {
			t.Fatalf("items = %d; want 10", len(items))
		}
	})

	t.Run("window, limit and offset", func(t *testing.T) {
		from := base.Add(2 * time.Minute).Format(time.RFC3339)
		to := base.Add(7 * time.Minute).Format(time.RFC3339)
		var body struct {
			Total int             `json:"total"`
			Items []types.Reading `json:"items"`
		}
		rec := f.get(t, "/api/v1/stations/pi-lab-1/readings?from="+from+"&to="+to+"&limit=3&offset=1", &body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want 200", rec.Code)
		}
		if body.Total != 6 || len(body.Items) != 3 {
			t.Fatalf("total=%d items=%d; want 6, 3", body.Total, len(body.Items))
		}
		if !body.Items[0].Timestamp.Equal(base.Add(3 * time.Minute)) {
			t.Fatalf("first item at %v", body.Items[0].Timestamp)
		}
	})

	bad := []string{
		"from=not-a-time",
		"to=not-a-time",
		"from=2026-02-02T10:00:00Z&to=2026-02-02T09:00:00Z",
		"limit=abc",
		"limit=0",
		"offset=-1",
	}
	for _, q := range bad {
		t.Run(q, func(t *testing.T) {
			var body map[string]any
			rec := f.get(t, "/api/v1/stations/pi-lab-1/readings?"+q, &body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d; want 400", rec.Code)
			}
			if _, ok := body["message"]; !ok {
				t.Fatalf("expected message field, got %v", body)
			}
		})
	}
}

func Test_handleStatus(t *testing.T) {
	f := newFixture(t)
	f.status.status = alert.Status{
		StoreHealthy: true,
		ThresholdPpm: 2,
		Stations: []alert.StationStatus{
			{StationID: "A", Timestamp: base, EthylenePpm: 2.5, High: true, AlertState: "suppressed"},
			{StationID: "B", Timestamp: base, EthylenePpm: 0.4, AlertState: "quiet"},
		},
	}

	var st alert.Status
	if rec := f.get(t, "/api/v1/status", &st); rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	if st.NoData || len(st.Stations) != 2 || !st.Stations[0].High {
		t.Fatalf("status = %+v", st)
	}

	var one alert.StationStatus
	if rec := f.get(t, "/api/v1/stations/B/status", &one); rec.Code != http.StatusOK {
		t.Fatalf("station status = %d; want 200", rec.Code)
	}
	if one.StationID != "B" || one.High {
		t.Fatalf("station B = %+v", one)
	}
}

func Test_handleStationStatus_noData(t *testing.T) {
	f := newFixture(t)
	f.status.status = alert.Status{Stations: []alert.StationStatus{{StationID: "A"}, {StationID: "B"}}}

	var body map[string]any
	rec := f.get(t, "/api/v1/stations/C/status", &body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", rec.Code)
	}
	if body["message"] != "no data" {
		t.Fatalf("body = %v", body)
	}
}

func Test_handleStatus_storeDown(t *testing.T) {
	f := newFixture(t)
	f.status.err = errors.New("reading store unavailable")

	for _, url := range []string{"/api/v1/status", "/api/v1/stations/A/status", "/"} {
		rec := f.get(t, url, nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d; want 503", url, rec.Code)
		}
	}
}

func Test_handleAlerts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, id := range []string{"A", "B"} {
		a := notify.Alert{StationID: id, EthylenePpm: 3, ThresholdPpm: 2, ObservedAt: base}
		if err := f.repo.RecordAlert(ctx, a, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("RecordAlert: %v", err)
		}
	}

	var alerts []types.AlertRecord
	if rec := f.get(t, "/api/v1/alerts?station_id=B", &alerts); rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	if len(alerts) != 1 || alerts[0].StationID != "B" {
		t.Fatalf("alerts = %+v", alerts)
	}
}

func Test_handleDashboard(t *testing.T) {
	if err := views.LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	f := newFixture(t)
	f.status.status = alert.Status{NoData: true, StoreHealthy: true}

	rec := f.get(t, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "No data received yet.") {
		t.Fatalf("body missing no-data notice")
	}

	if rec := f.get(t, "/nope", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("/nope status = %d; want 404", rec.Code)
	}
}
