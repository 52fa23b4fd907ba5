package handlers

import (
	"net/http"

	nfs4 "github.com/marmos91/nfs4d/internal/protocol/nfs/v4/handlers"
	"github.com/marmos91/nfs4d/pkg/export"
	"github.com/marmos91/nfs4d/pkg/objstore"
)

// StatsHandler serves engine and export statistics.
type StatsHandler struct {
	engine  *nfs4.Handler
	exports *export.Table
}

// NewStatsHandler creates a stats handler. engine may be nil.
func NewStatsHandler(engine *nfs4.Handler, exports *export.Table) *StatsHandler {
	return &StatsHandler{engine: engine, exports: exports}
}

// ExportInfo describes one export and its entry cache.
type ExportInfo struct {
	ID       uint32               `json:"id"`
	Path     string               `json:"path"`
	NFSv4    bool                 `json:"nfsv4"`
	ReadOnly bool                 `json:"read_only"`
	Cache    *objstore.CacheStats `json:"cache,omitempty"`
}

// Ops handles GET /api/v1/stats/ops.
func (h *StatsHandler) Ops(w http.ResponseWriter, r *http.Request) {
	out := make([]nfs4.OpStat, 0)
	if h.engine != nil {
		out = append(out, h.engine.Stats().Snapshot()...)
	}
	WriteJSONOK(w, out)
}

// Exports handles GET /api/v1/exports.
func (h *StatsHandler) Exports(w http.ResponseWriter, r *http.Request) {
	out := make([]ExportInfo, 0)
	if h.exports != nil {
		for _, exp := range h.exports.All() {
			info := ExportInfo{
				ID:       exp.ID,
				Path:     exp.Path,
				NFSv4:    exp.NFSv4,
				ReadOnly: exp.ReadOnly,
			}
			if c, ok := exp.Store.(*objstore.Cache); ok {
				st := c.Stats()
				info.Cache = &st
			}
			out = append(out, info)
		}
	}
	WriteJSONOK(w, out)
}
