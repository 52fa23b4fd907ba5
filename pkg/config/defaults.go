package config

import (
	"strings"
	"time"

	"github.com/marmos91/nfs4d/pkg/clientdb"
	"github.com/marmos91/nfs4d/pkg/objstore"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyMetricsDefaults(&cfg.Metrics)
	applyAdminDefaults(&cfg.Admin)
	applyNFS4Defaults(&cfg.NFS4)
	applyClientDBDefaults(&cfg.ClientDB)
	for i := range cfg.Exports {
		applyExportDefaults(&cfg.Exports[i])
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Port defaults to 9090 if metrics are enabled
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyAdminDefaults sets admin API server defaults.
func applyAdminDefaults(cfg *AdminConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
}

// applyNFS4Defaults sets the engine defaults. The minor version range is
// left alone: 0..0 is a valid explicit choice.
func applyNFS4Defaults(cfg *NFS4Config) {
	if cfg.LeaseTime == 0 {
		cfg.LeaseTime = 90 * time.Second
	}
	if cfg.MaxSlots == 0 {
		cfg.MaxSlots = 64
	}
	if cfg.MaxSessionsPerClient == 0 {
		cfg.MaxSessionsPerClient = 16
	}
	if cfg.EntryCacheSize == 0 {
		cfg.EntryCacheSize = objstore.DefaultCacheSize
	}
}

func applyClientDBDefaults(cfg *clientdb.Config) {
	cfg.ApplyDefaults()
}

func applyExportDefaults(cfg *ExportConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// The default serves one writable in-memory export at /data over NFSv4.0
// and NFSv4.1.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Admin:     AdminConfig{Enabled: true},
		Telemetry: TelemetryConfig{Insecure: true},
		NFS4: NFS4Config{
			MinMinorVersion: 0,
			MaxMinorVersion: 1,
		},
		ClientDB: clientdb.Config{
			Type: clientdb.DatabaseTypeSQLite,
		},
		Exports: []ExportConfig{
			{ID: 1, Path: "/data", NFSv4: true, Backend: "memory"},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
