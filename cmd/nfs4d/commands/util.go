package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/nfs4d/internal/logger"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/handlers"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/state"
	"github.com/marmos91/nfs4d/pkg/config"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// engine is a COMPOUND engine with everything it was built from.
type engine struct {
	handler *handlers.Handler
	state   *state.Manager
	exports *config.Exports
}

func (e *engine) Close() {
	e.state.Shutdown()
	if err := e.exports.Close(); err != nil {
		logger.Warn("Failed to close exports", "error", err)
	}
}

// buildEngine opens the exports of cfg and builds an engine over them.
// store and metrics may be nil.
func buildEngine(ctx context.Context, cfg *config.Config, store state.ClientStore, metrics func(*state.Manager) *handlers.Metrics) (*engine, error) {
	sm := state.NewManager(state.Config{
		LeaseTime:            cfg.NFS4.LeaseTime,
		GracePeriod:          cfg.NFS4.GracePeriod,
		MaxSlots:             cfg.NFS4.MaxSlots,
		MaxSessionsPerClient: cfg.NFS4.MaxSessionsPerClient,
		Store:                store,
	})
	if err := sm.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start state manager: %w", err)
	}

	exps, err := config.InitializeExports(cfg)
	if err != nil {
		sm.Shutdown()
		return nil, fmt.Errorf("failed to initialize exports: %w", err)
	}

	hcfg := handlers.Config{
		Exports:         exps.Table,
		State:           sm,
		MinMinorVersion: cfg.NFS4.MinMinorVersion,
		MaxMinorVersion: cfg.NFS4.MaxMinorVersion,
	}
	if metrics != nil {
		hcfg.Metrics = metrics(sm)
	}
	h, err := handlers.NewHandler(hcfg)
	if err != nil {
		sm.Shutdown()
		_ = exps.Close()
		return nil, err
	}

	return &engine{handler: h, state: sm, exports: exps}, nil
}

// loadOffline loads the configuration for a one-shot command: no client
// database and no grace period, so scripted clients start fresh.
func loadOffline() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, err
	}
	cfg.NFS4.GracePeriod = 0
	if err := InitLogger(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
