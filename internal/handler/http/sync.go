package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/storefront-sync/internal/dispatch"
	"github.com/utafrali/storefront-sync/internal/freshness"
	"github.com/utafrali/storefront-sync/internal/workspace"
	"github.com/utafrali/storefront-sync/pkg/httputil"
)

// SyncHandler reports and resets the synchronization state of a workspace.
type SyncHandler struct {
	registry *workspace.Registry
	logger   *slog.Logger
}

// NewSyncHandler creates a new sync HTTP handler.
func NewSyncHandler(reg *workspace.Registry, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{registry: reg, logger: logger}
}

// ResourceStatus is the per-resource view of GET /api/v1/sync/status.
type ResourceStatus struct {
	ItemCount     int             `json:"item_count"`
	LastFetchedAt *time.Time      `json:"last_fetched_at,omitempty"`
	IsFetching    bool            `json:"is_fetching"`
	NextFetch     string          `json:"next_fetch"`
	Command       dispatch.Status `json:"command"`
}

// Status handles GET /api/v1/sync/status
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())

	out := make(map[string]ResourceStatus, len(workspace.Resources))
	for _, res := range workspace.Resources {
		entry := ws.Store.Get(res)
		st := ResourceStatus{
			ItemCount:  len(entry.Items),
			IsFetching: entry.IsFetching,
			NextFetch:  ws.Policy.Decide(entry, false).String(),
			Command:    ws.Dispatcher.Status(res),
		}
		if entry.Fetched() {
			at := entry.LastFetchedAt
			st.LastFetchedAt = &at
		}
		out[res] = st
	}

	httputil.WriteData(w, out, map[string]any{
		"session":    ws.Key,
		"ttl_ms":     ws.Policy.TTL().Milliseconds(),
		"default_ms": freshness.DefaultTTL.Milliseconds(),
	})
}

// ResetCache handles DELETE /api/v1/sync/cache
func (h *SyncHandler) ResetCache(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	dropped := h.registry.ResetCache(r.Context(), ws)
	h.logger.InfoContext(r.Context(), "workspace cache reset",
		slog.String("session", ws.Key),
		slog.Any("resources", dropped),
	)
	httputil.WriteData(w, map[string]any{"reset": dropped}, nil)
}
