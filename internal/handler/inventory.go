package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"catalogo-sync-api/internal/inventory"
	"catalogo-sync-api/internal/model"
	"catalogo-sync-api/pkg/apierror"
	"catalogo-sync-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// InventoryHandler handles secondary-attribute endpoints.
type InventoryHandler struct {
	client     *inventory.Client
	reconciler *inventory.Reconciler
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(client *inventory.Client, reconciler *inventory.Reconciler) *InventoryHandler {
	return &InventoryHandler{client: client, reconciler: reconciler}
}

// Get handles GET /api/v1/inventory/{id}
func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.Error(w, apierror.BadRequest("id is required"))
		return
	}

	if cached := h.client.CacheGet(r.Context(), id); cached != nil {
		response.OK(w, cached)
		return
	}

	record, err := h.client.GetOne(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	h.client.CachePut(r.Context(), record)
	response.OK(w, record)
}

// GetBulk handles GET /api/v1/inventory?ids=a,b,c
func (h *InventoryHandler) GetBulk(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if raw := r.URL.Query().Get("ids"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				ids = append(ids, trimmed)
			}
		}
	}

	records, err := h.client.GetBulk(r.Context(), ids)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, records)
}

// Save handles POST /api/v1/inventory/{id}
func (h *InventoryHandler) Save(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.Error(w, apierror.BadRequest("id is required"))
		return
	}

	var payload model.InventoryWrite
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}

	record, err := h.reconciler.Save(r.Context(), id, r.URL.Query().Get("name"), payload)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, record)
}

// Delete handles DELETE /api/v1/inventory/{id}. Deleting an absent
// record succeeds.
func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.Error(w, apierror.BadRequest("id is required"))
		return
	}

	if err := h.reconciler.Delete(r.Context(), id); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}
