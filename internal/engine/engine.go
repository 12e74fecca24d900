// Package engine orchestrates catalog synchronization: staged changes are
// applied to a working copy of the remote document and committed with
// compare-and-swap semantics.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"catalogo-sync-api/internal/events"
	"catalogo-sync-api/internal/inventory"
	"catalogo-sync-api/internal/model"
	"catalogo-sync-api/internal/remote"
	"catalogo-sync-api/internal/staging"
	"catalogo-sync-api/pkg/apierror"
)

// Engine applies staged changes against the remote catalog document.
// Sync is explicitly non-reentrant: a second call while one is in flight
// is rejected so two commits never race on the same document sha.
type Engine struct {
	remote     remote.CatalogStore
	staging    *staging.Store
	reconciler *inventory.Reconciler
	publisher  events.Publisher
	docPath    string
	now        func() time.Time

	mu          sync.Mutex
	syncing     bool
	snapshot    *model.Catalog
	snapshotSHA string
}

// Config holds the dependencies of an Engine.
type Config struct {
	Remote       remote.CatalogStore
	Staging      *staging.Store
	Reconciler   *inventory.Reconciler
	Publisher    events.Publisher
	DocumentPath string
	Clock        func() time.Time
}

// New creates an engine with injected dependencies.
func New(cfg Config) *Engine {
	e := &Engine{
		remote:     cfg.Remote,
		staging:    cfg.Staging,
		reconciler: cfg.Reconciler,
		publisher:  cfg.Publisher,
		docPath:    cfg.DocumentPath,
		now:        cfg.Clock,
	}
	if e.docPath == "" {
		e.docPath = "data/catalog.json"
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.publisher == nil {
		e.publisher = events.NewLogPublisher()
	}
	return e
}

// LoadCatalog fetches and parses the remote document, remembering the
// snapshot and its sha for the next sync. An absent document is treated
// as an empty catalog about to be created.
func (e *Engine) LoadCatalog(ctx context.Context) (*model.Catalog, error) {
	file, err := e.remote.GetFile(ctx, e.docPath)
	if err != nil {
		if apierror.IsCode(err, "NOT_FOUND") {
			e.setSnapshot(model.NewCatalog(), "")
			return e.Snapshot(), nil
		}
		return nil, err
	}

	catalog, err := model.ParseCatalog(file.Content)
	if err != nil {
		return nil, apierror.Network(err.Error())
	}

	e.setSnapshot(catalog, file.SHA)
	return e.Snapshot(), nil
}

// Snapshot returns the last-loaded catalog. Snapshots are immutable
// once published: enrichment works on a copy and swaps it in, so the
// returned value is safe to marshal concurrently.
func (e *Engine) Snapshot() *model.Catalog {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot
}

// CatalogIDs returns the ids of the last-loaded catalog; the staging
// store probes these when generating ids for new entries.
func (e *Engine) CatalogIDs(ctx context.Context) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.snapshot == nil {
		return nil
	}
	ids := make([]string, 0, e.snapshot.Count())
	for _, kind := range []model.EntityKind{model.EntityKindProduct, model.EntityKindPack} {
		for _, entry := range e.snapshot.Entries(kind) {
			ids = append(ids, entry.ID)
		}
	}
	return ids
}

// Enrich runs the reconciler over a copy of the current snapshot and
// swaps the enriched copy in. Readers holding the previous snapshot
// never observe the reconciler's writes.
func (e *Engine) Enrich(ctx context.Context, opts inventory.Options) {
	e.mu.Lock()
	if e.snapshot == nil {
		e.mu.Unlock()
		return
	}
	working := e.snapshot.Clone()
	sha := e.snapshotSHA
	e.mu.Unlock()

	entries := make([]*model.CatalogEntry, 0, working.Count())
	for i := range working.Products {
		entries = append(entries, &working.Products[i])
	}
	for i := range working.Packs {
		entries = append(entries, &working.Packs[i])
	}
	e.reconciler.Enrich(ctx, entries, opts)
	if len(entries) == 0 {
		return
	}

	// Publish the enriched copy unless a reload moved the snapshot while
	// the reconciler was running; stale enrichment is simply dropped.
	e.mu.Lock()
	if e.snapshotSHA == sha {
		e.snapshot = working
	}
	e.mu.Unlock()

	e.publisher.Publish(ctx, events.Event{
		Type:       events.TypeInventoryEnriched,
		Enriched:   len(entries),
		OccurredAt: e.now(),
	})
}

// Sync applies every staged change to a deep copy of the last-loaded
// snapshot, commits the result with compare-and-swap, and reconciles
// afterwards. Nothing is written to the document unless every change
// applies cleanly; image assets uploaded for earlier changes before a
// later change fails are left behind as orphans rather than retracted.
func (e *Engine) Sync(ctx context.Context, progress chan<- model.Progress) (*model.SyncResult, error) {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return nil, apierror.SyncInProgress()
	}
	e.syncing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.syncing = false
		e.mu.Unlock()
	}()

	result, err := e.sync(ctx, progress)
	if err != nil {
		e.publisher.Publish(ctx, events.Event{
			Type:       events.TypeSyncFailed,
			Error:      err.Error(),
			OccurredAt: e.now(),
		})
		return nil, err
	}

	e.publisher.Publish(ctx, events.Event{
		Type:       events.TypeSyncCompleted,
		CommitID:   result.CommitID,
		Applied:    result.Applied(),
		OccurredAt: e.now(),
	})
	return result, nil
}

func (e *Engine) sync(ctx context.Context, progress chan<- model.Progress) (*model.SyncResult, error) {
	result := &model.SyncResult{
		Inventory: model.InventoryWriteSummary{
			Succeeded: []string{},
			Failed:    []model.InventoryWriteFailure{},
		},
	}

	emit := func(percent int, message string) {
		if progress == nil {
			return
		}
		select {
		case progress <- model.Progress{Percent: percent, Message: message}:
		case <-ctx.Done():
		}
	}

	emit(5, "loading remote catalog")

	e.mu.Lock()
	loaded := e.snapshot != nil
	e.mu.Unlock()
	if !loaded {
		if _, err := e.LoadCatalog(ctx); err != nil {
			return nil, err
		}
	}

	e.mu.Lock()
	working := e.snapshot.Clone()
	expectedSHA := e.snapshotSHA
	e.mu.Unlock()

	changes, err := e.staging.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		emit(100, "nothing to sync")
		return result, nil
	}

	// Assets queued for deletion after a successful commit.
	var obsoleteAssets []string

	for i := range changes {
		change := &changes[i]
		emit(10+i*50/len(changes), fmt.Sprintf("applying change %d/%d", i+1, len(changes)))

		if change.ImageRef != "" {
			if err := e.uploadAsset(ctx, change); err != nil {
				return nil, err
			}
		}

		entries := working.Entries(change.EntityKind)

		switch change.Kind {
		case model.ChangeKindNew:
			if idx := findByName(entries, change.Snapshot.Name); idx >= 0 {
				return nil, apierror.Validation(
					fmt.Sprintf("an entry named %q already exists", change.Snapshot.Name))
			}
			entry := *change.Snapshot.Clone()
			now := e.now()
			entry.CreatedAt = &now
			entry.ModifiedAt = &now
			working.SetEntries(change.EntityKind, append(entries, entry))
			result.Created++

		case model.ChangeKindModify:
			idx := findEntry(entries, change.EntityID, change.OriginalName)
			if idx < 0 {
				return nil, apierror.NotFound(
					fmt.Sprintf("entry %q (%s) not found in remote catalog", change.OriginalName, change.EntityID))
			}
			old := entries[idx]
			entry := *change.Snapshot.Clone()
			entry.CreatedAt = old.CreatedAt
			now := e.now()
			entry.ModifiedAt = &now
			if change.ImageRef != "" {
				obsoleteAssets = append(obsoleteAssets,
					replacedAssets(change.EntityKind, old.Images, entry.Images)...)
			}
			entries[idx] = entry
			working.SetEntries(change.EntityKind, entries)
			result.Modified++

		case model.ChangeKindDelete:
			idx := findEntry(entries, change.EntityID, change.OriginalName)
			if idx < 0 {
				return nil, apierror.NotFound(
					fmt.Sprintf("entry %q (%s) not found in remote catalog", change.OriginalName, change.EntityID))
			}
			for _, img := range entries[idx].Images {
				obsoleteAssets = append(obsoleteAssets, change.EntityKind.AssetDir()+"/"+img)
			}
			working.SetEntries(change.EntityKind, append(entries[:idx], entries[idx+1:]...))
			result.Deleted++

		default:
			return nil, apierror.Validation(fmt.Sprintf("unknown change kind %q", change.Kind))
		}
	}

	emit(65, "validating catalog document")

	content, err := model.MarshalCatalog(working)
	if err != nil {
		return nil, apierror.Internal(err.Error())
	}

	// Round-trip guard: anything that does not parse back to the same
	// entry count must never be committed.
	reparsed, err := model.ParseCatalog(content)
	if err != nil {
		return nil, apierror.Internal(fmt.Sprintf("catalog document failed round-trip: %v", err))
	}
	if reparsed.Count() != working.Count() {
		return nil, apierror.Internal(fmt.Sprintf(
			"catalog document round-trip mismatch: %d entries serialized, %d parsed back",
			working.Count(), reparsed.Count()))
	}

	emit(75, "committing catalog document")

	message := fmt.Sprintf("Sync catalog: %d new, %d modified, %d deleted",
		result.Created, result.Modified, result.Deleted)
	commit, err := e.remote.PutFile(ctx, e.docPath, content, expectedSHA, message)
	if err != nil {
		// A conflict means the remote moved under us; the working set is
		// discarded and the caller reloads and retries.
		return nil, err
	}
	result.CommitID = commit.ID

	emit(85, "cleaning up assets")

	for _, path := range obsoleteAssets {
		if err := e.deleteAsset(ctx, path); err != nil {
			log.Printf("[Engine] Failed to delete obsolete asset %s: %v", path, err)
		}
	}

	emit(90, "replaying inventory writes")
	result.Inventory = e.reconciler.FlushPending(ctx)

	if err := e.staging.DiscardAll(ctx); err != nil {
		log.Printf("[Engine] Failed to clear staging after commit %s: %v", commit.ID, err)
	}

	emit(95, "reloading catalog")
	if _, err := e.LoadCatalog(ctx); err != nil {
		log.Printf("[Engine] Failed to reload catalog after commit %s: %v", commit.ID, err)
	} else {
		go func() {
			enrichCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			e.Enrich(enrichCtx, inventory.Options{})
		}()
	}

	emit(100, fmt.Sprintf("sync complete: %d changes applied", result.Applied()))
	return result, nil
}

// uploadAsset pushes a staged image to the remote asset path, overwriting
// any existing asset of the same name.
func (e *Engine) uploadAsset(ctx context.Context, change *model.StagedChange) error {
	data, err := e.staging.ImageData(change.ImageRef)
	if err != nil {
		return apierror.Internal(fmt.Sprintf("staged image %s unreadable: %v", change.ImageRef, err))
	}

	path := change.EntityKind.AssetDir() + "/" + change.ImageRef

	var sha string
	if existing, err := e.remote.GetFile(ctx, path); err == nil {
		sha = existing.SHA
	} else if !apierror.IsCode(err, "NOT_FOUND") {
		return err
	}

	_, err = e.remote.PutFile(ctx, path, data, sha, fmt.Sprintf("Upload image %s", change.ImageRef))
	return err
}

// deleteAsset removes a remote asset, looking up its current sha first.
// An already-absent asset is fine.
func (e *Engine) deleteAsset(ctx context.Context, path string) error {
	existing, err := e.remote.GetFile(ctx, path)
	if err != nil {
		if apierror.IsCode(err, "NOT_FOUND") {
			return nil
		}
		return err
	}
	return e.remote.DeleteFile(ctx, path, existing.SHA, fmt.Sprintf("Delete obsolete image %s", path))
}

func (e *Engine) setSnapshot(catalog *model.Catalog, sha string) {
	e.mu.Lock()
	e.snapshot = catalog
	e.snapshotSHA = sha
	e.mu.Unlock()
}

// findEntry locates an entry by id first, falling back to the original
// name for legacy entries without stable ids. When a name matches more
// than one entry, the first match in document order wins.
func findEntry(entries []model.CatalogEntry, id, originalName string) int {
	if id != "" {
		for i := range entries {
			if entries[i].ID == id {
				return i
			}
		}
	}
	if originalName != "" {
		return findByName(entries, originalName)
	}
	return -1
}

func findByName(entries []model.CatalogEntry, name string) int {
	name = strings.TrimSpace(name)
	for i := range entries {
		if strings.TrimSpace(entries[i].Name) == name {
			return i
		}
	}
	return -1
}

// replacedAssets returns the remote paths of old images absent from the
// replacement list.
func replacedAssets(kind model.EntityKind, oldImages, newImages []string) []string {
	kept := make(map[string]bool, len(newImages))
	for _, img := range newImages {
		kept[img] = true
	}

	var obsolete []string
	for _, img := range oldImages {
		if !kept[img] {
			obsolete = append(obsolete, kind.AssetDir()+"/"+img)
		}
	}
	return obsolete
}
