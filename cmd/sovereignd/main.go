// Sovereignd is the coordination daemon for validation-gated task
// orchestration.
//
// This binary hosts the policy gateway HTTP endpoints, the Prometheus
// metrics endpoint, and an event monitor that mirrors the coordination
// bus into the structured log.
//
// Configuration is loaded from an optional YAML file and environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start daemon with defaults
//	sovereignd
//
//	# Configure via environment
//	SERVER_HTTP_PORT=9001 TORSION_MAX=0.2 sovereignd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/sovereignlabs/sovereignd/internal/config"
	"github.com/sovereignlabs/sovereignd/internal/coord"
	"github.com/sovereignlabs/sovereignd/internal/heart"
	"github.com/sovereignlabs/sovereignd/internal/logging"
	"github.com/sovereignlabs/sovereignd/internal/telemetry"
	"github.com/sovereignlabs/sovereignd/pkg/server"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  sovereignd           Start the sovereignd daemon\n")
			fmt.Fprintf(os.Stderr, "  sovereignd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Daemon error: %v", err)
	}

	log.Println("Shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("sovereignd by Sovereign Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the sovereignd daemon and blocks until context is cancelled.
//
// This function initializes all dependencies and services:
//  1. Loads and validates configuration
//  2. Initializes logger and telemetry
//  3. Connects to NATS and binds the result bucket
//  4. Builds the validation engine over the coordination store
//  5. Registers gateway HTTP routes and the event monitor
//  6. Starts the HTTP server
//  7. Performs graceful shutdown on context cancellation
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting sovereignd",
		zap.Int("port", cfg.Server.Port),
		zap.String("service", cfg.Observability.ServiceName),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	if cfg.Observability.EnableTracing {
		provider, err := telemetry.Init(cfg.Observability.ServiceName)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
			}
		}()
	}

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	logger.Info(ctx, "dependencies initialized",
		zap.String("nats_url", cfg.NATS.URL),
		zap.String("result_bucket", cfg.NATS.ResultBucket))

	// Validation engine reads live VDR inputs from the coordination store.
	engine := heart.NewEngine(
		heart.Thresholds{
			TorsionMax:          cfg.Heart.TorsionMax,
			VDRMin:              cfg.Heart.VDRMin,
			ComplexityThreshold: cfg.Heart.ComplexityThreshold,
		},
		heart.WithValueSource(heart.NewStoreSource(deps.store)),
		heart.WithLogger(logger.Named("heart")),
	)

	srv := server.NewServer(cfg)
	heart.NewHTTPHandler(engine).RegisterRoutes(srv.Echo())

	// Event monitor mirrors coordination bus traffic into the log until
	// shutdown.
	go monitorEvents(ctx, deps.bus, cfg.NATS.EventChannel, logger.Named("events"))

	logger.Info(ctx, "server configured",
		zap.String("validate_endpoint", fmt.Sprintf("http://localhost:%d/validate", cfg.Server.Port)),
		zap.String("metrics_endpoint", "/metrics"))

	return srv.Start(ctx)
}

// dependencies holds all infrastructure dependencies.
type dependencies struct {
	natsConn *nats.Conn
	store    *coord.KVStore
	bus      *coord.EventBus
}

// Close releases all infrastructure resources.
func (d *dependencies) Close() {
	if d.natsConn != nil {
		d.natsConn.Close()
	}
}

// initDependencies connects to NATS and binds the coordination store
// and event bus.
func initDependencies(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*dependencies, error) {
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}

	logger.Info(ctx, "connected to NATS", zap.String("url", cfg.NATS.URL))

	store, err := coord.NewKVStore(ctx, nc, cfg.NATS.ResultBucket)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to bind result bucket: %w", err)
	}

	bus := coord.NewEventBus(nc, logger.Named("bus"))

	return &dependencies{
		natsConn: nc,
		store:    store,
		bus:      bus,
	}, nil
}

// monitorEvents logs every coordination event until ctx is cancelled.
func monitorEvents(ctx context.Context, bus coord.Bus, channel string, logger *logging.Logger) {
	events, err := bus.Subscribe(ctx, channel)
	if err != nil {
		logger.Warn(ctx, "event monitor unavailable", zap.Error(err))
		return
	}
	for ev := range events {
		logger.Info(ctx, "coordination event",
			zap.String("type", string(ev.Type)),
			zap.String("task_id", ev.TaskID))
	}
}
