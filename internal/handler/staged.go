package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"catalogo-sync-api/internal/inventory"
	"catalogo-sync-api/internal/model"
	"catalogo-sync-api/internal/staging"
	"catalogo-sync-api/pkg/apierror"
	"catalogo-sync-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// maxStageBody bounds a staging request: the 5 MB image limit plus room
// for the JSON payload.
const maxStageBody = 6 * 1024 * 1024

// StagedHandler handles the staged-change endpoints.
type StagedHandler struct {
	store      *staging.Store
	reconciler *inventory.Reconciler
}

// NewStagedHandler creates a new staged-change handler.
func NewStagedHandler(store *staging.Store, reconciler *inventory.Reconciler) *StagedHandler {
	return &StagedHandler{store: store, reconciler: reconciler}
}

// stageRequest is the JSON payload of a staging request.
type stageRequest struct {
	Kind         model.ChangeKind      `json:"kind"`
	EntityKind   model.EntityKind      `json:"entityKind"`
	Entry        model.CatalogEntry    `json:"entry"`
	OriginalName string                `json:"originalName"`
	Inventory    *model.InventoryWrite `json:"inventory"`
}

// stageResponse returns the recorded change plus the outcome of any
// attribute write submitted alongside it.
type stageResponse struct {
	Change           *model.StagedChange    `json:"change"`
	Inventory        *model.InventoryRecord `json:"inventory,omitempty"`
	InventoryWarning string                 `json:"inventoryWarning,omitempty"`
}

// Stage handles POST /api/v1/staged. Accepts either a JSON body or
// multipart/form-data with a "payload" JSON field and an "image" file.
func (h *StagedHandler) Stage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxStageBody)

	var req stageRequest
	var image *staging.ImageUpload

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxStageBody); err != nil {
			response.Error(w, apierror.BadRequest("failed to parse multipart form"))
			return
		}
		if err := json.Unmarshal([]byte(r.FormValue("payload")), &req); err != nil {
			response.Error(w, apierror.BadRequest("invalid JSON in payload field"))
			return
		}

		file, header, err := r.FormFile("image")
		if err == nil {
			defer file.Close()
			data, readErr := io.ReadAll(file)
			if readErr != nil {
				response.Error(w, apierror.BadRequest("failed to read image"))
				return
			}
			image = &staging.ImageUpload{
				MIME: header.Header.Get("Content-Type"),
				Data: data,
			}
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, apierror.BadRequest("invalid JSON"))
			return
		}
	}

	change, err := h.store.Stage(r.Context(), staging.StageRequest{
		Kind:         req.Kind,
		EntityKind:   req.EntityKind,
		Snapshot:     req.Entry,
		OriginalName: req.OriginalName,
		Image:        image,
	})
	if err != nil {
		response.Error(w, err)
		return
	}

	resp := stageResponse{Change: change}

	// Secondary attributes bypass the staging log: they go straight to
	// the inventory service, parked durably when it is unreachable.
	if req.Inventory != nil && !req.Inventory.IsEmpty() && req.Kind != model.ChangeKindDelete {
		record, invErr := h.reconciler.Save(r.Context(), change.EntityID, change.Snapshot.Name, *req.Inventory)
		if invErr != nil {
			resp.InventoryWarning = "inventory service unavailable; attributes will be retried on next sync"
		} else {
			resp.Inventory = record
		}
	}

	response.Created(w, resp)
}

// List handles GET /api/v1/staged
func (h *StagedHandler) List(w http.ResponseWriter, r *http.Request) {
	changes, err := h.store.List(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, changes)
}

// Discard handles DELETE /api/v1/staged/{id}
func (h *StagedHandler) Discard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.Error(w, apierror.BadRequest("id is required"))
		return
	}

	if err := h.store.Discard(r.Context(), id); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// DiscardAll handles DELETE /api/v1/staged
func (h *StagedHandler) DiscardAll(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DiscardAll(r.Context()); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}
