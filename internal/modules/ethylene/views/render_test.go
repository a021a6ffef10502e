package views

import (
	"bytes"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/alert"
)

func TestLoadTemplates_success(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates() = %v; want nil", err)
	}
	if dashboardTmpl == nil {
		t.Fatal("LoadTemplates() left dashboardTmpl nil")
	}
}

func TestLoadTemplates_failure(t *testing.T) {
	if err := loadTemplatesFromFS(fstest.MapFS{}, "templates"); err == nil {
		t.Fatal("loadTemplatesFromFS(empty) = nil; want error")
	}
	bad := fstest.MapFS{"templates/dashboard.html": {Data: []byte("{{ .")}}
	if err := loadTemplatesFromFS(bad, "templates"); err == nil {
		t.Fatal("loadTemplatesFromFS(bad) = nil; want error")
	}
}

func TestRenderDashboard_notLoaded(t *testing.T) {
	prev := dashboardTmpl
	dashboardTmpl = nil
	t.Cleanup(func() { dashboardTmpl = prev })

	err := RenderDashboard(&bytes.Buffer{}, &DashboardData{})
	if err == nil || !strings.Contains(err.Error(), "not loaded") {
		t.Fatalf("RenderDashboard() = %v; want not loaded error", err)
	}
}

func TestRenderDashboard_noData(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}
	var buf bytes.Buffer
	data := &DashboardData{Status: alert.Status{NoData: true, StoreHealthy: true}, RefreshSeconds: 60}
	if err := RenderDashboard(&buf, data); err != nil {
		t.Fatalf("RenderDashboard() = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Ethylene Monitoring Dashboard", "No data received yet.", "every 60 seconds"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRenderStationsPartial_marksHighStations(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}
	last := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	data := &DashboardData{Status: alert.Status{
		StoreHealthy: true,
		Stations: []alert.StationStatus{
			{StationID: "A", Timestamp: last, EthylenePpm: 3.456, High: true, AlertState: "suppressed", LastAlertAt: &last},
			{StationID: "B", Timestamp: last, EthylenePpm: 0.5, AlertState: "quiet"},
		},
	}}
	var buf bytes.Buffer
	if err := RenderStationsPartial(&buf, data); err != nil {
		t.Fatalf("RenderStationsPartial() = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Station: A", "Station: B", `class="high"><strong>3.46`, `class="normal"><strong>0.50`, "last alert 2025-06-01 08:00:00 UTC"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
