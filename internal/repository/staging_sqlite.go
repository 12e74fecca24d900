package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"catalogo-sync-api/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteStagingRepository implements StagingRepository using SQLite.
// The default backend: the staging log is local-first and must survive a
// process restart without external services.
type SQLiteStagingRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStagingRepository creates a new SQLite staging repository.
// dbPath is the path to the SQLite database file (e.g., "./data/staging.db")
func NewSQLiteStagingRepository(dbPath string) (*SQLiteStagingRepository, error) {
	// Open with WAL mode and other optimizations
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createStagingTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteStagingRepository] Initialized with database: %s", dbPath)
	return &SQLiteStagingRepository{db: db}, nil
}

// createStagingTables creates the staged-change log and pending-write tables.
// seq preserves log order independently of client clocks.
func createStagingTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS staged_changes (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		entity_kind TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		original_name TEXT NOT NULL,
		image_ref TEXT NOT NULL DEFAULT '',
		snapshot_json TEXT NOT NULL,
		staged_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_staged_entity ON staged_changes(entity_kind, entity_id);
	CREATE TABLE IF NOT EXISTS pending_inventory_writes (
		entity_id TEXT PRIMARY KEY,
		entity_name TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := db.Exec(query)
	return err
}

// AppendChange appends a staged change to the log.
func (r *SQLiteStagingRepository) AppendChange(ctx context.Context, change *model.StagedChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot, err := json.Marshal(change.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO staged_changes (id, kind, entity_kind, entity_id, original_name, image_ref, snapshot_json, staged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		change.ID, string(change.Kind), string(change.EntityKind), change.EntityID,
		change.OriginalName, change.ImageRef, string(snapshot),
		change.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to append staged change: %w", err)
	}
	return nil
}

// ListChanges returns all staged changes in insertion order.
func (r *SQLiteStagingRepository) ListChanges(ctx context.Context) ([]model.StagedChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT id, kind, entity_kind, entity_id, original_name, image_ref, snapshot_json, staged_at
		FROM staged_changes ORDER BY seq ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list staged changes: %w", err)
	}
	defer rows.Close()

	return scanChanges(rows)
}

// GetChange returns one staged change by id.
func (r *SQLiteStagingRepository) GetChange(ctx context.Context, id string) (*model.StagedChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT id, kind, entity_kind, entity_id, original_name, image_ref, snapshot_json, staged_at
		FROM staged_changes WHERE id = ?`

	change, err := scanChange(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrChangeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get staged change: %w", err)
	}
	return change, nil
}

// DeleteChange removes one staged change by id.
func (r *SQLiteStagingRepository) DeleteChange(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `DELETE FROM staged_changes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete staged change: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChangeNotFound
	}
	return nil
}

// DeleteAllChanges clears the staged-change log.
func (r *SQLiteStagingRepository) DeleteAllChanges(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM staged_changes`); err != nil {
		return fmt.Errorf("failed to clear staged changes: %w", err)
	}
	return nil
}

// PutPendingWrite upserts a pending inventory write for an entity.
func (r *SQLiteStagingRepository) PutPendingWrite(ctx context.Context, write PendingWrite) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	payload, err := json.Marshal(write.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal pending write: %w", err)
	}

	query := `
		INSERT INTO pending_inventory_writes (entity_id, entity_name, payload_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			entity_name = excluded.entity_name,
			payload_json = excluded.payload_json,
			updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		write.EntityID, write.EntityName, string(payload),
		write.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to upsert pending write: %w", err)
	}
	return nil
}

// ListPendingWrites returns all pending inventory writes.
func (r *SQLiteStagingRepository) ListPendingWrites(ctx context.Context) ([]PendingWrite, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `SELECT entity_id, entity_name, payload_json, updated_at FROM pending_inventory_writes ORDER BY updated_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending writes: %w", err)
	}
	defer rows.Close()

	return scanPendingWrites(rows)
}

// DeletePendingWrite removes the pending write for an entity.
func (r *SQLiteStagingRepository) DeletePendingWrite(ctx context.Context, entityID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_inventory_writes WHERE entity_id = ?`, entityID)
	if err != nil {
		return fmt.Errorf("failed to delete pending write: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPendingWriteNotFound
	}
	return nil
}

// Close closes the database connection.
func (r *SQLiteStagingRepository) Close() error {
	return r.db.Close()
}
