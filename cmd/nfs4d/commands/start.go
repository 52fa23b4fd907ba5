package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/nfs4d/internal/logger"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/handlers"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/state"
	"github.com/marmos91/nfs4d/internal/telemetry"
	"github.com/marmos91/nfs4d/pkg/adminapi"
	"github.com/marmos91/nfs4d/pkg/clientdb"
	"github.com/marmos91/nfs4d/pkg/config"
	"github.com/marmos91/nfs4d/pkg/metrics"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the nfs4d server",
	Long: `Start the nfs4d server in the foreground.

The server restores persisted clients, opens a grace period for them to
reclaim, and serves the admin API and Prometheus metrics until it receives
SIGINT or SIGTERM. Changing logging.level in the configuration file takes
effect without a restart.

Examples:
  # Start with the default config
  nfs4d start

  # Start with a custom config file
  nfs4d start --config /etc/nfs4d/config.yaml

  # Override settings from the environment
  NFS4D_LOGGING_LEVEL=DEBUG NFS4D_NFS4_GRACE_PERIOD=0s nfs4d start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Write the process id to this file")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, telemetryConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}

	// The registry must exist before the engine so the NFS metrics land in it.
	var gatherer prometheus.Gatherer
	var newMetrics func(*state.Manager) *handlers.Metrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		reg := metrics.GetRegistry()
		gatherer = reg
		newMetrics = func(sm *state.Manager) *handlers.Metrics {
			return handlers.NewMetrics(reg, sm)
		}
	}

	db, err := clientdb.Open(&cfg.ClientDB)
	if err != nil {
		return fmt.Errorf("failed to open client database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Client database close error", "error", err)
		}
	}()

	eng, err := buildEngine(ctx, cfg, db, newMetrics)
	if err != nil {
		return err
	}
	defer eng.Close()

	logger.Info("NFSv4 engine ready",
		"exports", len(eng.exports.Table.All()),
		"minor_versions", fmt.Sprintf("%d-%d", cfg.NFS4.MinMinorVersion, cfg.NFS4.MaxMinorVersion),
		"lease", cfg.NFS4.LeaseTime,
		"grace", eng.state.InGrace())

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		eng.state.StartLeaseReaper(gctx)
		return nil
	})

	if cfg.Metrics.Enabled {
		metrics.GetRegistry().MustRegister(metrics.NewExportCollector(eng.exports.Table))
		srv := metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port})
		g.Go(func() error { return srv.Start(gctx) })
	} else {
		logger.Info("Metrics collection disabled")
	}

	if cfg.Admin.Enabled {
		srv := adminapi.NewServer(adminapi.Config{
			Port:         cfg.Admin.Port,
			ReadTimeout:  cfg.Admin.ReadTimeout,
			WriteTimeout: cfg.Admin.WriteTimeout,
			IdleTimeout:  cfg.Admin.IdleTimeout,
		}, adminapi.Deps{
			State:    eng.state,
			Engine:   eng.handler,
			Exports:  eng.exports.Table,
			Gatherer: gatherer,
		})
		g.Go(func() error { return srv.Start(gctx) })
	} else {
		logger.Info("Admin API disabled")
	}

	if GetConfigFile() != "" || config.DefaultConfigExists() {
		path := GetConfigFile()
		if path == "" {
			path = config.GetDefaultConfigPath()
		}
		if err := config.Watch(path, func(next *config.Config) {
			if next.Logging.Level != cfg.Logging.Level {
				logger.Info("Log level changed", "from", cfg.Logging.Level, "to", next.Logging.Level)
				logger.SetLevel(next.Logging.Level)
				cfg.Logging.Level = next.Logging.Level
			}
		}); err != nil {
			logger.Warn("Configuration reload disabled", "error", err)
		}
	}

	logger.Info("Server is running. Press Ctrl+C to stop.")

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
		return nil
	case <-ctx.Done():
		stop()
		logger.Info("Shutdown signal received, initiating graceful shutdown", "timeout", cfg.ShutdownTimeout)
	}

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		logger.Info("Server stopped gracefully")
		return nil
	case <-time.After(cfg.ShutdownTimeout):
		return fmt.Errorf("shutdown timed out after %s", cfg.ShutdownTimeout)
	}
}

// telemetryConfig layers the configured tracing settings over the telemetry
// defaults of this build.
func telemetryConfig(c config.TelemetryConfig) telemetry.Config {
	tc := telemetry.DefaultConfig(Version)
	tc.Enabled = c.Enabled
	tc.Insecure = c.Insecure
	if c.Endpoint != "" {
		tc.Endpoint = c.Endpoint
	}
	if c.SampleRate > 0 {
		tc.SampleRate = c.SampleRate
	}
	return tc
}
