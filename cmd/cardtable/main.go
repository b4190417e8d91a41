package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/mwynn/cardtable"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cardtable.SetupLogger(nil)

	cfg, err := cardtable.LoadConfig()
	if err != nil {
		fatal("loading config", err)
	}

	db, err := cardtable.NewDB(cfg.DatabaseURL)
	if err != nil {
		fatal("opening database", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		fatal("migrating database", err)
	}

	if len(os.Args) > 1 && os.Args[1] == "--migrate" {
		// Migration-only run, e.g. from a deploy hook.
		return
	}

	auth, err := cardtable.NewAuth(db, cfg.SIDKey)
	if err != nil {
		fatal("configuring auth", err)
	}

	registry := prometheus.NewRegistry()
	metrics := cardtable.NewCollector(registry)

	hub := cardtable.NewHub(metrics)
	defer hub.Close()

	impl := cardtable.NewImpl(db, hub, metrics)

	limiter := cardtable.NewRateLimiter(cfg.BatchRate, cfg.BatchBurst)
	defer limiter.Stop()

	api := cardtable.NewAPI(auth, impl, hub, limiter, registry, cfg.DevMode)

	addr := cfg.Addr
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	slog.Info("serving", "addr", addr)
	if err := api.Serve(addr); err != nil {
		fatal("server exited", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
