package controller

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func Test_parseReadingsQuery(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantFrom  time.Time
		wantTo    time.Time
		wantLimit int
		wantErr   bool
	}{
		{name: "defaults", query: "", wantLimit: 100},
		{name: "from only", query: "from=2025-01-01T00:00:00Z", wantFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), wantLimit: 100},
		{name: "to only", query: "to=2025-12-31T23:59:59Z", wantTo: time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC), wantLimit: 100},
		{name: "limit", query: "limit=1000", wantLimit: 1000},
		{name: "limit too large", query: "limit=1001", wantErr: true},
		{name: "negative limit", query: "limit=-5", wantErr: true},
		{name: "reversed window", query: "from=2025-01-02T00:00:00Z&to=2025-01-01T00:00:00Z", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/readings?"+tt.query, nil)
			from, to, limit, err := parseReadingsQuery(req)
			if tt.wantErr {
				if err == nil {
					t.Fatal("parseReadingsQuery() err = nil; want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseReadingsQuery() err = %v", err)
			}
			if !from.Equal(tt.wantFrom) || !to.Equal(tt.wantTo) || limit != tt.wantLimit {
				t.Fatalf("got %v, %v, %d; want %v, %v, %d", from, to, limit, tt.wantFrom, tt.wantTo, tt.wantLimit)
			}
		})
	}
}

func Test_parseOffset(t *testing.T) {
	for q, want := range map[string]int{"": 0, "offset=0": 0, "offset=40": 40} {
		got, err := parseOffset(httptest.NewRequest(http.MethodGet, "/r?"+q, nil))
		if err != nil || got != want {
			t.Errorf("parseOffset(%q) = %d, %v; want %d", q, got, err, want)
		}
	}
	if _, err := parseOffset(httptest.NewRequest(http.MethodGet, "/r?offset=x", nil)); err == nil {
		t.Error("parseOffset(x) err = nil")
	}
}
