package config

import (
	"errors"
	"fmt"
	"path"

	"github.com/marmos91/nfs4d/internal/logger"
	"github.com/marmos91/nfs4d/pkg/export"
	"github.com/marmos91/nfs4d/pkg/objstore"
)

// Exports is the export table built from a configuration together with
// the object stores behind it.
type Exports struct {
	Table *export.Table

	caches map[uint32]*objstore.Cache
}

// Cache returns the object store of export id, or nil.
func (e *Exports) Cache(id uint32) *objstore.Cache {
	return e.caches[id]
}

// Close closes every backend.
func (e *Exports) Close() error {
	var errs []error
	for id, c := range e.caches {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("export %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// InitializeExports opens the backend of every configured export, seeds it
// and builds the export table.
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	exps, err := config.InitializeExports(cfg)
//	if err != nil {
//	    log.Fatalf("Failed to initialize exports: %v", err)
//	}
//	defer exps.Close()
func InitializeExports(cfg *Config) (*Exports, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}
	if len(cfg.Exports) == 0 {
		return nil, fmt.Errorf("no exports configured: at least one export is required")
	}

	exps := &Exports{caches: make(map[uint32]*objstore.Cache, len(cfg.Exports))}
	list := make([]*export.Export, 0, len(cfg.Exports))

	for _, ec := range cfg.Exports {
		logger.Debug("Opening export", "id", ec.ID, "path", ec.Path, "backend", ec.Backend)

		cache, err := createExportStore(ec, cfg.NFS4.EntryCacheSize)
		if err != nil {
			_ = exps.Close()
			return nil, fmt.Errorf("export %q: %w", ec.Path, err)
		}
		exps.caches[ec.ID] = cache

		list = append(list, &export.Export{
			ID:       ec.ID,
			Path:     path.Clean(ec.Path),
			NFSv4:    ec.NFSv4,
			ReadOnly: ec.ReadOnly,
			Store:    cache,
		})
		logger.Info("Export ready",
			"id", ec.ID,
			"path", ec.Path,
			"backend", ec.Backend,
			"nfsv4", ec.NFSv4,
			"read_only", ec.ReadOnly)
	}

	table, err := export.NewTable(list...)
	if err != nil {
		_ = exps.Close()
		return nil, err
	}
	exps.Table = table
	return exps, nil
}
