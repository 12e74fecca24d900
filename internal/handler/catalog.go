package handler

import (
	"net/http"

	"catalogo-sync-api/internal/engine"
	"catalogo-sync-api/internal/inventory"
	"catalogo-sync-api/internal/model"
	"catalogo-sync-api/pkg/apierror"
	"catalogo-sync-api/pkg/response"
)

// CatalogHandler serves the catalog and triggers syncs.
type CatalogHandler struct {
	engine *engine.Engine
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(e *engine.Engine) *CatalogHandler {
	return &CatalogHandler{engine: e}
}

// Get handles GET /api/v1/catalog. Loads the remote document when no
// snapshot is held yet; pass refresh=1 to force a reload.
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	catalog := h.engine.Snapshot()
	if catalog == nil || r.URL.Query().Get("refresh") == "1" {
		if _, err := h.engine.LoadCatalog(r.Context()); err != nil {
			response.Error(w, err)
			return
		}
		h.engine.Enrich(r.Context(), inventory.Options{})
		catalog = h.engine.Snapshot()
	}

	if kind := r.URL.Query().Get("kind"); kind != "" {
		entityKind := model.EntityKind(kind)
		if !entityKind.Valid() {
			response.Error(w, apierror.BadRequest("kind must be product or pack"))
			return
		}
		response.OK(w, catalog.Entries(entityKind))
		return
	}

	response.OK(w, catalog)
}

// Sync handles POST /api/v1/sync. Applies all staged changes atomically
// and returns the sync summary; a concurrent call is rejected with 409.
func (h *CatalogHandler) Sync(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.Sync(r.Context(), nil)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, result)
}
