package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const sampleHeader = `# nfs4d Configuration File
#
# Every setting can be overridden with an environment variable named after
# its path, e.g. NFS4D_LOGGING_LEVEL=DEBUG or NFS4D_NFS4_LEASE_TIME=30s.
#
# Exports are mounted in the NFSv4 pseudo filesystem at their path. The
# export id is stamped into filehandles: changing it invalidates every
# handle clients hold.

`

// InitConfig writes a sample configuration to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	data, err := sampleConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// sampleConfig renders the default configuration with a seeded export so
// a fresh install has something to look up.
func sampleConfig() ([]byte, error) {
	cfg := GetDefaultConfig()
	cfg.Exports[0].Seed = []SeedEntry{
		{Path: "docs", Type: "dir", Mode: 0755},
		{Path: "docs/README", Type: "file", Mode: 0644},
		{Path: "latest", Type: "symlink", Target: "docs/README"},
	}

	var buf bytes.Buffer
	buf.WriteString(sampleHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to render sample config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to render sample config: %w", err)
	}
	return buf.Bytes(), nil
}
