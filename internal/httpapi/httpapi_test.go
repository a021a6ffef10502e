package httpapi

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/metrics"
)

type fakeStoreHealth bool

func (f fakeStoreHealth) Healthy() bool { return bool(f) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestServer(t *testing.T, db *sql.DB, store StoreHealth) *httptest.Server {
	t.Helper()
	mux := NewMux(db, store, metrics.New().Handler(), discardLogger())
	srv := NewServer(":0", mux, discardLogger())
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	return resp.StatusCode, body
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name       string
		closeDB    bool
		store      StoreHealth
		wantStatus int
		wantBody   string
	}{
		{name: "all ok", store: fakeStoreHealth(true), wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "no store check", store: nil, wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "store down", store: fakeStoreHealth(false), wantStatus: http.StatusServiceUnavailable, wantBody: "degraded"},
		{name: "database down", closeDB: true, store: fakeStoreHealth(true), wantStatus: http.StatusServiceUnavailable, wantBody: "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openDB(t)
			ts := newTestServer(t, db, tt.store)
			if tt.closeDB {
				_ = db.Close()
			}
			status, body := getJSON(t, ts.URL+"/healthz")
			if status != tt.wantStatus {
				t.Fatalf("status=%d want=%d", status, tt.wantStatus)
			}
			if body["status"] != tt.wantBody {
				t.Fatalf("body.status=%v want=%q", body["status"], tt.wantBody)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, openDB(t), nil)
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if !strings.Contains(string(raw), "go_goroutines") {
		t.Fatalf("metrics body missing runtime collectors")
	}
}

func TestRouting_WrongMethod(t *testing.T) {
	ts := newTestServer(t, openDB(t), nil)
	resp, err := http.Post(ts.URL+"/healthz", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := requestLogger(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "http request" || entry["path"] != "/api/v1/status" || entry["status"] != float64(http.StatusTeapot) {
		t.Fatalf("log entry = %v", entry)
	}
	if entry["level"] != "INFO" {
		t.Fatalf("level = %v, want INFO", entry["level"])
	}
}
