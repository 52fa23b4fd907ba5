package config

import (
	"time"

	"github.com/marmos91/nfs4d/pkg/clientdb"
)

// Config represents the nfs4d configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (NFS4D_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Admin contains the admin HTTP API configuration
	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`

	// NFS4 tunes the COMPOUND engine and its client state
	NFS4 NFS4Config `mapstructure:"nfs4" yaml:"nfs4"`

	// ClientDB persists confirmed clients so they can reclaim after a restart
	ClientDB clientdb.Config `mapstructure:"clientdb" yaml:"clientdb"`

	// Exports lists the object stores mounted in the pseudo filesystem
	Exports []ExportConfig `mapstructure:"exports" validate:"dive" yaml:"exports"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, one span per COMPOUND and one child span per operation are
// exported to an OTLP-compatible collector.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// AdminConfig configures the admin HTTP API (health, clients, sessions,
// operation statistics).
type AdminConfig struct {
	// Enabled controls whether the admin API is served
	// Default: true
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port of the admin API
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// NFS4Config tunes the COMPOUND engine.
type NFS4Config struct {
	// MinMinorVersion and MaxMinorVersion bound the accepted minor versions.
	// Only 0 and 1 are implemented.
	MinMinorVersion uint32 `mapstructure:"min_minor_version" validate:"lte=1" yaml:"min_minor_version"`
	MaxMinorVersion uint32 `mapstructure:"max_minor_version" validate:"lte=1,gtefield=MinMinorVersion" yaml:"max_minor_version"`

	// LeaseTime is the client lease period
	// Default: 90s
	LeaseTime time.Duration `mapstructure:"lease_time" validate:"omitempty,min=1s" yaml:"lease_time"`

	// GracePeriod is how long REMOVE and RENAME are refused after start-up
	// while previous clients reclaim. Zero disables the grace period.
	GracePeriod time.Duration `mapstructure:"grace_period" validate:"gte=0" yaml:"grace_period"`

	// MaxSlots caps the fore channel slot table of a session
	// Default: 64
	MaxSlots uint32 `mapstructure:"max_slots" validate:"omitempty,min=1,max=1024" yaml:"max_slots"`

	// MaxSessionsPerClient caps the sessions one client may hold
	// Default: 16
	MaxSessionsPerClient int `mapstructure:"max_sessions_per_client" validate:"omitempty,min=1" yaml:"max_sessions_per_client"`

	// EntryCacheSize bounds the per-export LRU of unreferenced entries
	// Default: 4096
	EntryCacheSize int `mapstructure:"entry_cache_size" validate:"omitempty,min=1" yaml:"entry_cache_size"`
}

// ExportConfig describes one export.
type ExportConfig struct {
	// ID is stamped into every filehandle of the export and must never
	// change while clients hold handles.
	ID uint32 `mapstructure:"id" validate:"required" yaml:"id"`

	// Path is where the export is mounted in the pseudo filesystem
	// Example: /data
	Path string `mapstructure:"path" validate:"required,startswith=/" yaml:"path"`

	// NFSv4 allows access over NFSv4
	NFSv4 bool `mapstructure:"nfsv4" yaml:"nfsv4"`

	// ReadOnly rejects REMOVE, LINK and RENAME with NFS4ERR_ROFS
	ReadOnly bool `mapstructure:"read_only" yaml:"read_only"`

	// Backend selects the object store: memory or badger
	// Default: memory
	Backend string `mapstructure:"backend" validate:"required,oneof=memory badger" yaml:"backend"`

	// BadgerDir is the database directory of a badger backend
	BadgerDir string `mapstructure:"badger_dir" validate:"required_if=Backend badger" yaml:"badger_dir,omitempty"`

	// Seed lists objects created at start-up when missing
	Seed []SeedEntry `mapstructure:"seed" validate:"dive" yaml:"seed,omitempty"`
}

// SeedEntry is one object created in an export at start-up.
type SeedEntry struct {
	// Path is relative to the export root; missing directories are created
	Path string `mapstructure:"path" validate:"required" yaml:"path"`

	// Type is file, dir or symlink
	Type string `mapstructure:"type" validate:"required,oneof=file dir symlink" yaml:"type"`

	Mode   uint32 `mapstructure:"mode" yaml:"mode,omitempty"`
	Target string `mapstructure:"target" validate:"required_if=Type symlink" yaml:"target,omitempty"`
}
