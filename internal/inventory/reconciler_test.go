package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogo-sync-api/internal/cache"
	"catalogo-sync-api/internal/config"
	"catalogo-sync-api/internal/model"
	"catalogo-sync-api/internal/repository"
)

func newTestRepo(t *testing.T) repository.StagingRepository {
	t.Helper()
	repo, err := repository.NewSQLiteStagingRepository(filepath.Join(t.TempDir(), "staging.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestReconciler(t *testing.T, handler http.Handler, cfg ReconcilerConfig) (*Reconciler, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	memCache := cache.NewMemoryCache()
	t.Cleanup(memCache.Stop)

	client := NewClient(config.InventoryConfig{
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	}, memCache, time.Minute)

	cfg.Client = client
	if cfg.Repository == nil {
		cfg.Repository = newTestRepo(t)
	}
	return NewReconciler(cfg), client
}

func entriesWithIDs(ids ...string) []*model.CatalogEntry {
	entries := make([]*model.CatalogEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, &model.CatalogEntry{ID: id, Name: "Entry " + id})
	}
	return entries
}

func TestReconciler_Enrich_BulkSuccess(t *testing.T) {
	reconciler, _ := newTestReconciler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/inventory", r.URL.Path)
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"entityId": "p1", "stock": 3},
			{"entityId": "p2", "stock": 8},
		})
	}), ReconcilerConfig{})

	entries := entriesWithIDs("p1", "p2", "p3")
	eventCh := make(chan Event, 10)
	reconciler.Enrich(context.Background(), entries, Options{Events: eventCh})

	for _, entry := range entries {
		require.NotNil(t, entry.Inventory, "entry %s left without a record", entry.ID)
	}
	assert.Equal(t, 3, *entries[0].Inventory.Stock)
	assert.Equal(t, 8, *entries[1].Inventory.Stock)

	// p3 was not in the bulk response: it gets an explicit empty record.
	assert.False(t, entries[2].Inventory.HasData)

	assert.Len(t, eventCh, 3)
}

func TestReconciler_Enrich_BulkFallsBackToIndividual(t *testing.T) {
	var bulkCalls, individualCalls atomic.Int32
	reconciler, _ := newTestReconciler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/inventory" {
			bulkCalls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		individualCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]interface{}{"stock": 5})
	}), ReconcilerConfig{BatchSize: 2, SoftTimeout: 5 * time.Second})

	entries := entriesWithIDs("p1", "p2", "p3")
	progressCh := make(chan model.Progress, 10)
	reconciler.Enrich(context.Background(), entries, Options{Progress: progressCh})

	assert.Equal(t, int32(1), bulkCalls.Load())
	assert.Equal(t, int32(3), individualCalls.Load())

	for _, entry := range entries {
		require.NotNil(t, entry.Inventory)
		require.NotNil(t, entry.Inventory.Stock)
		assert.Equal(t, 5, *entry.Inventory.Stock)
	}

	// One progress report per batch: ceil(3/2) = 2.
	assert.Len(t, progressCh, 2)
}

func TestReconciler_Enrich_CacheHitSkipsNetwork(t *testing.T) {
	var individualCalls atomic.Int32
	reconciler, client := newTestReconciler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/inventory" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		individualCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]interface{}{"stock": 1})
	}), ReconcilerConfig{})

	cached := NormalizeRecord("p1", map[string]interface{}{"stock": float64(77)})
	client.CachePut(context.Background(), cached)

	entries := entriesWithIDs("p1")
	reconciler.Enrich(context.Background(), entries, Options{})

	require.NotNil(t, entries[0].Inventory)
	assert.Equal(t, 77, *entries[0].Inventory.Stock)
	assert.Equal(t, int32(0), individualCalls.Load())
}

func TestReconciler_Enrich_SoftTimeoutPublishesPlaceholderThenResolves(t *testing.T) {
	reconciler, client := newTestReconciler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/inventory" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		time.Sleep(300 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]interface{}{"stock": 11})
	}), ReconcilerConfig{SoftTimeout: 50 * time.Millisecond})

	entries := entriesWithIDs("p1")
	eventCh := make(chan Event, 10)
	reconciler.Enrich(context.Background(), entries, Options{Events: eventCh})

	// The placeholder is published as soon as the soft timeout fires.
	first := <-eventCh
	assert.Equal(t, "p1", first.EntityID)
	assert.True(t, first.Placeholder)
	assert.False(t, first.Record.HasData)

	// The slow response still resolves in the background.
	select {
	case second := <-eventCh:
		assert.Equal(t, "p1", second.EntityID)
		assert.False(t, second.Placeholder)
		require.NotNil(t, second.Record.Stock)
		assert.Equal(t, 11, *second.Record.Stock)
	case <-time.After(2 * time.Second):
		t.Fatal("resolved record never published")
	}

	// The entry itself keeps the placeholder: late resolution reaches
	// consumers through the event and the cache, never by writing to the
	// entry after Enrich has returned.
	require.NotNil(t, entries[0].Inventory)
	assert.False(t, entries[0].Inventory.HasData)

	cached := client.CacheGet(context.Background(), "p1")
	require.NotNil(t, cached)
	require.NotNil(t, cached.Stock)
	assert.Equal(t, 11, *cached.Stock)
}

func TestReconciler_Enrich_RetryExhaustionCachesPlaceholder(t *testing.T) {
	var individualCalls atomic.Int32
	reconciler, client := newTestReconciler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inventory" {
			individualCalls.Add(1)
		}
		w.WriteHeader(http.StatusInternalServerError)
	}), ReconcilerConfig{MaxRetries: 1, BackoffBase: time.Millisecond, SoftTimeout: 5 * time.Second})

	entries := entriesWithIDs("p1")
	reconciler.Enrich(context.Background(), entries, Options{})

	// Initial attempt plus one retry.
	assert.Equal(t, int32(2), individualCalls.Load())

	require.NotNil(t, entries[0].Inventory)
	assert.False(t, entries[0].Inventory.HasData)

	// The placeholder is cached so the failing endpoint is not hammered
	// again before the TTL lapses.
	cached := client.CacheGet(context.Background(), "p1")
	require.NotNil(t, cached)
	assert.False(t, cached.HasData)
}

func TestReconciler_Save_ParksWriteOnFailure(t *testing.T) {
	repo := newTestRepo(t)
	reconciler, _ := newTestReconciler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}), ReconcilerConfig{Repository: repo})

	stock := 4
	_, err := reconciler.Save(context.Background(), "p1", "Cafetera", model.InventoryWrite{Stock: &stock})
	require.Error(t, err)

	pending, err := repo.ListPendingWrites(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "p1", pending[0].EntityID)
	assert.Equal(t, "Cafetera", pending[0].EntityName)
	require.NotNil(t, pending[0].Payload.Stock)
	assert.Equal(t, 4, *pending[0].Payload.Stock)
}

func TestReconciler_FlushPending_ReplaysAndClears(t *testing.T) {
	repo := newTestRepo(t)

	var failing atomic.Bool
	failing.Store(true)
	reconciler, _ := newTestReconciler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"stock": 4})
	}), ReconcilerConfig{Repository: repo})

	stock := 4
	_, err := reconciler.Save(context.Background(), "p1", "Cafetera", model.InventoryWrite{Stock: &stock})
	require.Error(t, err)

	// Service still down: the write stays parked and is reported failed.
	summary := reconciler.FlushPending(context.Background())
	assert.Empty(t, summary.Succeeded)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "p1", summary.Failed[0].EntityID)

	// Service recovers: the replay lands and the parking slot clears.
	failing.Store(false)
	summary = reconciler.FlushPending(context.Background())
	assert.Equal(t, []string{"p1"}, summary.Succeeded)
	assert.Empty(t, summary.Failed)

	pending, err := repo.ListPendingWrites(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReconciler_Enrich_EmptyEntries(t *testing.T) {
	reconciler, _ := newTestReconciler(t, http.NotFoundHandler(), ReconcilerConfig{})

	progressCh := make(chan model.Progress, 1)
	reconciler.Enrich(context.Background(), nil, Options{Progress: progressCh})

	report := <-progressCh
	assert.Equal(t, 100, report.Percent)
}
