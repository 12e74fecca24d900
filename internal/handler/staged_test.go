package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogo-sync-api/internal/cache"
	"catalogo-sync-api/internal/config"
	"catalogo-sync-api/internal/handler"
	"catalogo-sync-api/internal/inventory"
	"catalogo-sync-api/internal/model"
	"catalogo-sync-api/internal/repository"
	"catalogo-sync-api/internal/router"
	"catalogo-sync-api/internal/staging"
)

// newTestAPI wires the staged and inventory endpoints against a real
// staging store and a stub inventory service.
func newTestAPI(t *testing.T, inventoryHandler http.Handler) http.Handler {
	t.Helper()

	repo, err := repository.NewSQLiteStagingRepository(filepath.Join(t.TempDir(), "staging.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	blobs, err := staging.NewBlobStore(t.TempDir())
	require.NoError(t, err)

	store := staging.NewStore(staging.Config{Repository: repo, Blobs: blobs})

	if inventoryHandler == nil {
		inventoryHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{}`)
		})
	}
	inventoryServer := httptest.NewServer(inventoryHandler)
	t.Cleanup(inventoryServer.Close)

	memCache := cache.NewMemoryCache()
	t.Cleanup(memCache.Stop)

	client := inventory.NewClient(config.InventoryConfig{
		BaseURL: inventoryServer.URL,
		Timeout: 5 * time.Second,
	}, memCache, time.Minute)
	reconciler := inventory.NewReconciler(inventory.ReconcilerConfig{
		Client:     client,
		Repository: repo,
	})

	return router.New(router.Config{
		HealthHandler:    handler.NewHealthHandler("test"),
		StagedHandler:    handler.NewStagedHandler(store, reconciler),
		InventoryHandler: handler.NewInventoryHandler(client, reconciler),
	})
}

func doJSON(t *testing.T, api http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req := httptest.NewRequest(method, path, &reqBody)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	return rec
}

func TestStagedEndpoints_StageAndList(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/staged", map[string]interface{}{
		"kind":       "new",
		"entityKind": "product",
		"entry": map[string]interface{}{
			"name":     "Cafetera",
			"category": "cocina",
			"price":    30,
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Success bool `json:"success"`
		Data    struct {
			Change model.StagedChange `json:"change"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Success)
	assert.NotEmpty(t, created.Data.Change.ID)
	assert.NotEmpty(t, created.Data.Change.EntityID)

	rec = doJSON(t, api, http.MethodGet, "/api/v1/staged", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Data []model.StagedChange `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Data, 1)
	assert.Equal(t, "Cafetera", listed.Data[0].Snapshot.Name)
}

func TestStagedEndpoints_ValidationFailure(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/staged", map[string]interface{}{
		"kind":       "new",
		"entityKind": "product",
		"entry":      map[string]interface{}{"name": "", "price": -5},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestStagedEndpoints_MalformedJSON(t *testing.T) {
	api := newTestAPI(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/staged", strings.NewReader("{nope"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStagedEndpoints_MultipartWithImage(t *testing.T) {
	api := newTestAPI(t, nil)

	payload, err := json.Marshal(map[string]interface{}{
		"kind":       "new",
		"entityKind": "product",
		"entry": map[string]interface{}{
			"name":     "Tetera",
			"category": "cocina",
			"price":    18,
		},
	})
	require.NoError(t, err)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("payload", string(payload)))

	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", `form-data; name="image"; filename="tetera.jpg"`)
	partHeader.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(partHeader)
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/staged", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data struct {
			Change model.StagedChange `json:"change"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Data.Change.ImageRef)
	assert.Equal(t, []string{created.Data.Change.ImageRef}, created.Data.Change.Snapshot.Images)
}

func TestStagedEndpoints_StageWithInventoryWarning(t *testing.T) {
	// Inventory service down: the change is staged anyway and the
	// response carries a warning instead of failing.
	api := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := doJSON(t, api, http.MethodPost, "/api/v1/staged", map[string]interface{}{
		"kind":       "new",
		"entityKind": "product",
		"entry": map[string]interface{}{
			"name":     "Olla",
			"category": "cocina",
			"price":    22,
		},
		"inventory": map[string]interface{}{"stock": 6},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data struct {
			Change           model.StagedChange `json:"change"`
			InventoryWarning string             `json:"inventoryWarning"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Data.Change.ID)
	assert.NotEmpty(t, created.Data.InventoryWarning)
}

func TestStagedEndpoints_Discard(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/staged", map[string]interface{}{
		"kind":       "new",
		"entityKind": "pack",
		"entry": map[string]interface{}{
			"name":     "Pack Desayuno",
			"category": "packs",
			"price":    25,
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data struct {
			Change model.StagedChange `json:"change"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, api, http.MethodDelete, "/api/v1/staged/"+created.Data.Change.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, api, http.MethodDelete, "/api/v1/staged/"+created.Data.Change.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStagedEndpoints_DiscardAll(t *testing.T) {
	api := newTestAPI(t, nil)

	for _, name := range []string{"Uno", "Dos"} {
		rec := doJSON(t, api, http.MethodPost, "/api/v1/staged", map[string]interface{}{
			"kind":       "new",
			"entityKind": "product",
			"entry": map[string]interface{}{
				"name":     name,
				"category": "general",
				"price":    1,
			},
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, api, http.MethodDelete, "/api/v1/staged", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, api, http.MethodGet, "/api/v1/staged", nil)
	var listed struct {
		Data []model.StagedChange `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Empty(t, listed.Data)
}

func TestInventoryEndpoints_GetAndSave(t *testing.T) {
	api := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fmt.Fprint(w, `{"stock": 7, "proveedor": "Norte"}`)
		case http.MethodPost:
			fmt.Fprint(w, `{"stock": 12}`)
		}
	}))

	rec := doJSON(t, api, http.MethodGet, "/api/v1/inventory/p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Data model.InventoryRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Data.Stock)
	assert.Equal(t, 7, *got.Data.Stock)
	require.NotNil(t, got.Data.Supplier)
	assert.Equal(t, "Norte", *got.Data.Supplier)

	rec = doJSON(t, api, http.MethodPost, "/api/v1/inventory/p1", map[string]interface{}{"stock": 12})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Data.Stock)
	assert.Equal(t, 12, *got.Data.Stock)
}

func TestHealthEndpoint(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
