// metricsd is the host telemetry collection server daemon.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/metricsd/internal/aggregate"
	"github.com/xtxerr/metricsd/internal/loader"
	"github.com/xtxerr/metricsd/internal/logging"
	"github.com/xtxerr/metricsd/internal/query"
	"github.com/xtxerr/metricsd/internal/retention"
	"github.com/xtxerr/metricsd/internal/server"
	"github.com/xtxerr/metricsd/internal/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// CLI flags
	cfgPath := flag.String("config", "config.yaml", "config file path")
	listen := flag.String("listen", "", "listen address (overrides config)")
	dbPath := flag.String("db", "", "embedded database path (overrides config)")
	dbType := flag.String("db-type", "", "storage backend type: embedded or remote (overrides config)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	logJSON := flag.Bool("log-json", false, "emit logs as JSON")
	flag.Parse()

	// Load config: env first, optional file on top
	cfg, err := loader.LoadOptional(*cfgPath)
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	// CLI overrides
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbPath != "" {
		cfg.Storage.Path = *dbPath
	}
	if *dbType != "" {
		cfg.Storage.Type = *dbType
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logJSON {
		cfg.LogJSON = true
	}

	logging.Init(cfg.SlogLevel(), cfg.LogJSON)
	mainLog := logging.Component("main")
	mainLog.Info("metricsd starting", "version", Version)

	// =========================================================================
	// Storage backend
	// =========================================================================

	backend, err := storage.Open(cfg.ToStorageConfig())
	if err != nil {
		mainLog.Error("open storage backend", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	// =========================================================================
	// Query engine, live aggregates, retention
	// =========================================================================

	engine := query.New(backend)
	aggregates := aggregate.NewManager()
	sweeper := retention.New(backend, cfg.CleanupInterval(), cfg.RetentionPeriod())

	// =========================================================================
	// HTTP server
	// =========================================================================

	router := server.NewRouter(backend, engine, aggregates)
	srv := server.NewServer(cfg.Listen, router)

	// =========================================================================
	// Run until SIGINT/SIGTERM
	// =========================================================================

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })

	if err := g.Wait(); err != nil {
		mainLog.Error("server error", "error", err)
		os.Exit(1)
	}

	mainLog.Info("metricsd stopped")
}
