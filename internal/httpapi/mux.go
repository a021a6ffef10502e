package httpapi

import (
	"database/sql"
	"log/slog"
	"net/http"
)

// NewMux returns the server mux with /healthz and, when metrics is non-nil,
// /metrics. Feature modules register their own routes on it.
func NewMux(db *sql.DB, store StoreHealth, metrics http.Handler, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db, store, logger)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return mux
}
