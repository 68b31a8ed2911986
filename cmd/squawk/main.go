package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/squawkhq/squawk/internal/logger"
	"github.com/squawkhq/squawk/pkg/adapter/api"
	"github.com/squawkhq/squawk/pkg/adapter/relay"
	"github.com/squawkhq/squawk/pkg/config"
	"github.com/squawkhq/squawk/pkg/directory"
	"github.com/squawkhq/squawk/pkg/metrics"
	"github.com/squawkhq/squawk/pkg/registry"
	"github.com/squawkhq/squawk/pkg/server"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/squawk/config.yaml)")
	logLevel := flag.String("log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("squawk %s\n", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// CLI flag beats file and environment.
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		log.Fatalf("Failed to configure log output: %v", err)
	}

	logger.Info("Squawk %s starting", version)

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics collection enabled")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := config.CreateDirectoryStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create directory store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close directory store: %v", err)
		}
	}()

	service := directory.NewService(store)
	reg := registry.New()

	srv := server.New()
	if err := srv.AddAdapter(relay.New(cfg.Adapters.Relay, reg, metrics.NewRelayMetrics())); err != nil {
		log.Fatalf("Failed to register relay adapter: %v", err)
	}
	if err := srv.AddAdapter(api.New(cfg.Adapters.API, service, reg, metrics.NewAPIMetrics())); err != nil {
		log.Fatalf("Failed to register API adapter: %v", err)
	}

	if err := srv.Serve(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Server error: %v", err)
	}

	logger.Info("Squawk stopped")
}
