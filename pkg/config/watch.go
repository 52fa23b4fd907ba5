package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/nfs4d/internal/logger"
)

// Watch re-reads the configuration file whenever it changes and passes the
// result to onChange. An edit that fails to decode or validate is logged and
// skipped; the previous configuration stays in effect.
//
// Only settings that are safe to change at runtime should be applied by
// onChange. Exports and engine limits are fixed at start-up.
func Watch(configPath string, onChange func(*Config)) error {
	v := newViper(configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no configuration file to watch")
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			logger.Warn("Ignoring invalid configuration change", "file", e.Name, "error", err)
			return
		}
		logger.Info("Configuration reloaded", "file", e.Name)
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}
