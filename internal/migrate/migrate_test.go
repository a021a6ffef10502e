package migrate

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRun_AppliesOnce(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	n, err := Run(ctx, db, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n == 0 {
		t.Fatal("Run() applied 0 migrations on an empty database")
	}

	if _, err := db.Exec(`INSERT INTO readings (station_id, ts, ethylene_ppm) VALUES ('pi-lab-1', '2024-01-01T00:00:00.000000Z', 1.5)`); err != nil {
		t.Fatalf("readings table not usable: %v", err)
	}

	n, err = Run(ctx, db, nil)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("second Run() applied %d, want 0", n)
	}
}

func TestPendingMigrations_OrderAndFilter(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/0002_b.sql": {Data: []byte("B")},
		"sql/0001_a.sql": {Data: []byte("A")},
		"sql/0003_c.sql": {Data: []byte("C")},
		"sql/notes.txt":  {Data: []byte("x")},
		"sql/01_bad.sql": {Data: []byte("x")},
	}
	got, err := pendingMigrations(fsys, map[string]bool{"0002": true})
	if err != nil {
		t.Fatalf("pendingMigrations() error = %v", err)
	}
	if len(got) != 2 || got[0].version != "0001" || got[1].version != "0003" {
		t.Fatalf("pending = %+v", got)
	}
	if got[1].name != "c" || got[1].body != "C" {
		t.Fatalf("pending[1] = %+v", got[1])
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		in      string
		version string
		name    string
		ok      bool
	}{
		{"0001_readings.sql", "0001", "readings", true},
		{"0010_add_index.sql", "0010", "add_index", true},
		{"1_x.sql", "", "", false},
		{"0001_x.txt", "", "", false},
	}
	for _, tt := range tests {
		v, n, ok := parseMigrationFilename(tt.in)
		if v != tt.version || n != tt.name || ok != tt.ok {
			t.Errorf("parseMigrationFilename(%q) = %q, %q, %v", tt.in, v, n, ok)
		}
	}
}
