package config

import (
	"fmt"

	"github.com/marmos91/nfs4d/pkg/objstore"
	"github.com/marmos91/nfs4d/pkg/objstore/badger"
	"github.com/marmos91/nfs4d/pkg/objstore/memory"
)

// createExportStore opens the backend of one export and wraps it in an
// entry cache. Seeding goes through Create, which read-only exports also
// accept.
func createExportStore(cfg ExportConfig, cacheSize int) (*objstore.Cache, error) {
	backend, err := createBackend(cfg)
	if err != nil {
		return nil, err
	}

	cache, err := objstore.NewCache(backend, objstore.CacheConfig{Size: cacheSize, ReadOnly: cfg.ReadOnly})
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to open object cache: %w", err)
	}

	if err := seedExport(cache, cfg.Seed); err != nil {
		_ = cache.Close()
		return nil, err
	}
	return cache, nil
}

// createBackend creates a single object backend.
func createBackend(cfg ExportConfig) (objstore.Backend, error) {
	switch cfg.Backend {
	case "memory", "":
		return memory.New(), nil
	case "badger":
		if cfg.BadgerDir == "" {
			return nil, fmt.Errorf("badger backend requires badger_dir to be set")
		}
		b, err := badger.Open(badger.Config{Dir: cfg.BadgerDir})
		if err != nil {
			return nil, fmt.Errorf("failed to open badger backend: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown backend type: %q", cfg.Backend)
	}
}

// seedExport creates the configured objects that do not exist yet.
func seedExport(cache *objstore.Cache, seeds []SeedEntry) error {
	for _, s := range seeds {
		typ, mode, err := seedType(s)
		if err != nil {
			return err
		}
		if _, err := cache.CreatePath(s.Path, typ, mode, s.Target); err != nil {
			return fmt.Errorf("seed %q: %w", s.Path, err)
		}
	}
	return nil
}

func seedType(s SeedEntry) (objstore.FileType, uint32, error) {
	mode := s.Mode
	switch s.Type {
	case "file":
		if mode == 0 {
			mode = 0644
		}
		return objstore.TypeRegular, mode, nil
	case "dir":
		if mode == 0 {
			mode = 0755
		}
		return objstore.TypeDirectory, mode, nil
	case "symlink":
		if mode == 0 {
			mode = 0777
		}
		return objstore.TypeSymlink, mode, nil
	default:
		return 0, 0, fmt.Errorf("seed %q: unknown type %q", s.Path, s.Type)
	}
}
