package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogo-sync-api/internal/model"
)

func newSQLiteRepo(t *testing.T) (*SQLiteStagingRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "staging.db")
	repo, err := NewSQLiteStagingRepository(path)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func sampleChange(id, entityID, name string) *model.StagedChange {
	return &model.StagedChange{
		ID:           id,
		Kind:         model.ChangeKindNew,
		EntityKind:   model.EntityKindProduct,
		EntityID:     entityID,
		Timestamp:    time.Now().UTC(),
		OriginalName: name,
		Snapshot: model.CatalogEntry{
			ID:       entityID,
			Name:     name,
			Category: "cocina",
			Price:    10,
			Images:   []string{},
		},
	}
}

func TestSQLiteStagingRepository_AppendAndGet(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	change := sampleChange("c1", "p1", "Cafetera")
	change.ImageRef = "cafetera-1.jpg"
	require.NoError(t, repo.AppendChange(ctx, change))

	got, err := repo.GetChange(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, change.ID, got.ID)
	assert.Equal(t, change.Kind, got.Kind)
	assert.Equal(t, change.EntityKind, got.EntityKind)
	assert.Equal(t, change.EntityID, got.EntityID)
	assert.Equal(t, change.OriginalName, got.OriginalName)
	assert.Equal(t, change.ImageRef, got.ImageRef)
	assert.Equal(t, change.Snapshot.Name, got.Snapshot.Name)
	assert.WithinDuration(t, change.Timestamp, got.Timestamp, time.Millisecond)
}

func TestSQLiteStagingRepository_GetUnknown(t *testing.T) {
	repo, _ := newSQLiteRepo(t)

	_, err := repo.GetChange(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrChangeNotFound)
}

func TestSQLiteStagingRepository_ListPreservesInsertionOrder(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	// Insertion order must win even when timestamps disagree.
	first := sampleChange("c1", "p1", "Primero")
	first.Timestamp = time.Now().Add(time.Hour)
	second := sampleChange("c2", "p2", "Segundo")
	second.Timestamp = time.Now().Add(-time.Hour)
	third := sampleChange("c3", "p3", "Tercero")

	require.NoError(t, repo.AppendChange(ctx, first))
	require.NoError(t, repo.AppendChange(ctx, second))
	require.NoError(t, repo.AppendChange(ctx, third))

	listed, err := repo.ListChanges(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, "c1", listed[0].ID)
	assert.Equal(t, "c2", listed[1].ID)
	assert.Equal(t, "c3", listed[2].ID)
}

func TestSQLiteStagingRepository_DuplicateEntityAllowed(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	// Several staged changes may target the same entity; the log keeps
	// them all, in order.
	require.NoError(t, repo.AppendChange(ctx, sampleChange("c1", "p1", "Cafetera")))
	require.NoError(t, repo.AppendChange(ctx, sampleChange("c2", "p1", "Cafetera")))

	listed, err := repo.ListChanges(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestSQLiteStagingRepository_DeleteChange(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.AppendChange(ctx, sampleChange("c1", "p1", "Cafetera")))
	require.NoError(t, repo.DeleteChange(ctx, "c1"))
	assert.ErrorIs(t, repo.DeleteChange(ctx, "c1"), ErrChangeNotFound)
}

func TestSQLiteStagingRepository_DeleteAllChanges(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.AppendChange(ctx, sampleChange("c1", "p1", "Uno")))
	require.NoError(t, repo.AppendChange(ctx, sampleChange("c2", "p2", "Dos")))
	require.NoError(t, repo.DeleteAllChanges(ctx))

	listed, err := repo.ListChanges(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestSQLiteStagingRepository_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staging.db")
	ctx := context.Background()

	repo, err := NewSQLiteStagingRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.AppendChange(ctx, sampleChange("c1", "p1", "Cafetera")))
	require.NoError(t, repo.Close())

	reopened, err := NewSQLiteStagingRepository(path)
	require.NoError(t, err)
	defer reopened.Close()

	listed, err := reopened.ListChanges(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "c1", listed[0].ID)
}

func TestSQLiteStagingRepository_PendingWrites(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	stock := 5
	write := PendingWrite{
		EntityID:   "p1",
		EntityName: "Cafetera",
		Payload:    model.InventoryWrite{Stock: &stock},
		UpdatedAt:  time.Now(),
	}
	require.NoError(t, repo.PutPendingWrite(ctx, write))

	// Upsert: a second write for the same entity replaces the first.
	newStock := 9
	write.Payload.Stock = &newStock
	require.NoError(t, repo.PutPendingWrite(ctx, write))

	pending, err := repo.ListPendingWrites(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "p1", pending[0].EntityID)
	assert.Equal(t, "Cafetera", pending[0].EntityName)
	require.NotNil(t, pending[0].Payload.Stock)
	assert.Equal(t, 9, *pending[0].Payload.Stock)

	require.NoError(t, repo.DeletePendingWrite(ctx, "p1"))
	assert.ErrorIs(t, repo.DeletePendingWrite(ctx, "p1"), ErrPendingWriteNotFound)
}
