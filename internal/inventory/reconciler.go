package inventory

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"catalogo-sync-api/internal/model"
	"catalogo-sync-api/internal/repository"
)

// Event reports one enrichment step. Placeholder events carry an empty
// record published before the real response resolved; a second event for
// the same entity follows once it does.
type Event struct {
	EntityID    string
	Record      *model.InventoryRecord
	Placeholder bool
}

// Options controls one Enrich run. Both channels are optional; when set,
// the reconciler publishes into them until ctx is done. Zero values fall
// back to the reconciler defaults.
type Options struct {
	Events   chan<- Event
	Progress chan<- model.Progress
}

// Reconciler enriches catalog entries with secondary attributes: bulk
// fetch first, per-id fallback in bounded batches, soft-timeout
// placeholders, and retry with exponential backoff.
//
// Entries are mutated only while Enrich runs; once it returns the
// slice is never touched again, so callers may publish the enriched
// entries to concurrent readers without extra locking.
type Reconciler struct {
	client *Client
	repo   repository.StagingRepository

	batchSize   int
	softTimeout time.Duration
	maxRetries  int
	backoffBase time.Duration
}

// ReconcilerConfig holds the tunables of a Reconciler.
type ReconcilerConfig struct {
	Client      *Client
	Repository  repository.StagingRepository
	BatchSize   int
	SoftTimeout time.Duration
	MaxRetries  int
	BackoffBase time.Duration
}

// NewReconciler creates a reconciler with injected dependencies.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	r := &Reconciler{
		client:      cfg.Client,
		repo:        cfg.Repository,
		batchSize:   cfg.BatchSize,
		softTimeout: cfg.SoftTimeout,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
	}
	if r.batchSize <= 0 {
		r.batchSize = 10
	}
	if r.softTimeout <= 0 {
		r.softTimeout = 3 * time.Second
	}
	if r.maxRetries < 0 {
		r.maxRetries = 2
	}
	if r.backoffBase <= 0 {
		r.backoffBase = 200 * time.Millisecond
	}
	return r
}

// Enrich attaches an InventoryRecord to every entry, in place. One bulk
// request is attempted first; on failure each id is fetched individually
// in batches. Every entry ends up with a record: resolved data, cached
// data, or an explicit empty placeholder.
func (r *Reconciler) Enrich(ctx context.Context, entries []*model.CatalogEntry, opts Options) {
	if len(entries) == 0 {
		r.progress(ctx, opts, 100, "nothing to enrich")
		return
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}

	records, err := r.client.GetBulk(ctx, ids)
	if err == nil {
		for _, entry := range entries {
			record, ok := records[entry.ID]
			if !ok {
				record = model.EmptyInventoryRecord(entry.ID)
			}
			entry.Inventory = record
			r.client.CachePut(ctx, record)
			r.emit(ctx, opts, Event{EntityID: entry.ID, Record: record})
		}
		r.progress(ctx, opts, 100, fmt.Sprintf("enriched %d entries (bulk)", len(entries)))
		return
	}

	log.Printf("[Reconciler] Bulk fetch failed, falling back to individual fetches: %v", err)

	for start := 0; start < len(entries); start += r.batchSize {
		end := start + r.batchSize
		if end > len(entries) {
			end = len(entries)
		}

		var wg sync.WaitGroup
		for _, entry := range entries[start:end] {
			wg.Add(1)
			go func(entry *model.CatalogEntry) {
				defer wg.Done()
				r.enrichOne(ctx, entry, opts)
			}(entry)
		}
		wg.Wait()

		percent := end * 100 / len(entries)
		r.progress(ctx, opts, percent, fmt.Sprintf("enriched %d/%d entries", end, len(entries)))

		if ctx.Err() != nil {
			return
		}
	}
}

// enrichOne resolves one entry: TTL cache first, then a network fetch
// raced against the soft timeout. On a soft timeout the entry keeps an
// empty placeholder; the real response is awaited in the background and
// delivered through the event stream and the cache, never by writing to
// the entry after Enrich has returned.
func (r *Reconciler) enrichOne(ctx context.Context, entry *model.CatalogEntry, opts Options) {
	if cached := r.client.CacheGet(ctx, entry.ID); cached != nil {
		entry.Inventory = cached
		r.emit(ctx, opts, Event{EntityID: entry.ID, Record: cached})
		return
	}

	resultCh := make(chan *model.InventoryRecord, 1)
	go func() {
		resultCh <- r.fetchWithRetry(ctx, entry.ID)
	}()

	timer := time.NewTimer(r.softTimeout)
	defer timer.Stop()

	select {
	case record := <-resultCh:
		entry.Inventory = record
		r.emit(ctx, opts, Event{EntityID: entry.ID, Record: record})
	case <-timer.C:
		placeholder := model.EmptyInventoryRecord(entry.ID)
		entry.Inventory = placeholder
		r.emit(ctx, opts, Event{EntityID: entry.ID, Record: placeholder, Placeholder: true})

		go func() {
			record := <-resultCh
			r.emit(ctx, opts, Event{EntityID: entry.ID, Record: record})
		}()
	case <-ctx.Done():
	}
}

// fetchWithRetry fetches one record with exponential backoff. When every
// attempt fails, an empty placeholder is cached so a failing endpoint is
// not hammered again before the TTL lapses.
func (r *Reconciler) fetchWithRetry(ctx context.Context, entityID string) *model.InventoryRecord {
	backoff := r.backoffBase
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		record, err := r.client.GetOne(ctx, entityID)
		if err == nil {
			r.client.CachePut(ctx, record)
			return record
		}

		log.Printf("[Reconciler] Fetch %s attempt %d failed: %v", entityID, attempt+1, err)
		if attempt == r.maxRetries {
			break
		}

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return model.EmptyInventoryRecord(entityID)
		}
	}

	placeholder := model.EmptyInventoryRecord(entityID)
	r.client.CachePut(ctx, placeholder)
	return placeholder
}

// Save writes secondary attributes for an entity. A write that cannot
// reach the inventory service is parked durably and replayed by
// FlushPending after the next successful sync, so attribute edits staged
// alongside catalog changes are never silently lost.
func (r *Reconciler) Save(ctx context.Context, entityID, entityName string, payload model.InventoryWrite) (*model.InventoryRecord, error) {
	record, err := r.client.SaveOne(ctx, entityID, payload)
	if err == nil {
		return record, nil
	}

	pending := repository.PendingWrite{
		EntityID:   entityID,
		EntityName: entityName,
		Payload:    payload,
		UpdatedAt:  time.Now(),
	}
	if putErr := r.repo.PutPendingWrite(ctx, pending); putErr != nil {
		log.Printf("[Reconciler] Failed to park pending write for %s: %v", entityID, putErr)
		return nil, err
	}

	log.Printf("[Reconciler] Inventory write for %s parked for retry: %v", entityID, err)
	return nil, err
}

// Delete removes an entity's inventory record. Absent records count as
// deleted.
func (r *Reconciler) Delete(ctx context.Context, entityID string) error {
	return r.client.DeleteOne(ctx, entityID)
}

// FlushPending replays parked inventory writes. Failures stay parked and
// are reported in the summary; they never block the caller.
func (r *Reconciler) FlushPending(ctx context.Context) model.InventoryWriteSummary {
	summary := model.InventoryWriteSummary{
		Succeeded: []string{},
		Failed:    []model.InventoryWriteFailure{},
	}

	pending, err := r.repo.ListPendingWrites(ctx)
	if err != nil {
		log.Printf("[Reconciler] Failed to list pending writes: %v", err)
		return summary
	}

	for _, write := range pending {
		if _, err := r.client.SaveOne(ctx, write.EntityID, write.Payload); err != nil {
			summary.Failed = append(summary.Failed, model.InventoryWriteFailure{
				EntityID: write.EntityID,
				Name:     write.EntityName,
				Error:    err.Error(),
			})
			continue
		}
		if err := r.repo.DeletePendingWrite(ctx, write.EntityID); err != nil && err != repository.ErrPendingWriteNotFound {
			log.Printf("[Reconciler] Failed to clear pending write for %s: %v", write.EntityID, err)
		}
		summary.Succeeded = append(summary.Succeeded, write.EntityID)
	}

	return summary
}

func (r *Reconciler) emit(ctx context.Context, opts Options, ev Event) {
	if opts.Events == nil {
		return
	}
	select {
	case opts.Events <- ev:
	case <-ctx.Done():
	}
}

func (r *Reconciler) progress(ctx context.Context, opts Options, percent int, message string) {
	if opts.Progress == nil {
		return
	}
	select {
	case opts.Progress <- model.Progress{Percent: percent, Message: message}:
	case <-ctx.Done():
	}
}
