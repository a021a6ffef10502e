package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/config"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/db"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/logging"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/migrate"
)

var version = "dev"
var appName = "ethylene-tools"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <command>\n  migrate  apply pending schema migrations\n", os.Args[0])
		os.Exit(1)
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadServerFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Base, version, appName)

	conn, err := db.Open(cfg.SQLite, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "db open: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()

	switch os.Args[1] {
	case "migrate":
		n, err := migrate.Run(context.Background(), conn, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("migrations applied: %d\n", n)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}
