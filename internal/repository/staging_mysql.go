package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"catalogo-sync-api/internal/model"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// MySQLStagingRepository implements StagingRepository using MySQL.
type MySQLStagingRepository struct {
	db *sql.DB
}

// NewMySQLStagingRepository creates a new MySQL staging repository.
// dsn format: "user:password@tcp(host:port)/dbname?parseTime=true"
func NewMySQLStagingRepository(dsn string) (*MySQLStagingRepository, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS staged_changes (
			seq BIGINT AUTO_INCREMENT PRIMARY KEY,
			id VARCHAR(64) NOT NULL UNIQUE,
			kind VARCHAR(16) NOT NULL,
			entity_kind VARCHAR(16) NOT NULL,
			entity_id VARCHAR(64) NOT NULL,
			original_name VARCHAR(255) NOT NULL,
			image_ref VARCHAR(255) NOT NULL DEFAULT '',
			snapshot_json JSON NOT NULL,
			staged_at VARCHAR(40) NOT NULL,
			INDEX idx_staged_entity (entity_kind, entity_id)
		)`,
		`CREATE TABLE IF NOT EXISTS pending_inventory_writes (
			entity_id VARCHAR(64) PRIMARY KEY,
			entity_name VARCHAR(255) NOT NULL,
			payload_json JSON NOT NULL,
			updated_at VARCHAR(40) NOT NULL
		)`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}

	log.Printf("[MySQLStagingRepository] Initialized")
	return &MySQLStagingRepository{db: db}, nil
}

// AppendChange appends a staged change to the log.
func (r *MySQLStagingRepository) AppendChange(ctx context.Context, change *model.StagedChange) error {
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
func (r *MySQLStagingRepository) ListChanges(ctx context.Context) ([]model.StagedChange, error) {
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
func (r *MySQLStagingRepository) GetChange(ctx context.Context, id string) (*model.StagedChange, error) {
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
func (r *MySQLStagingRepository) DeleteChange(ctx context.Context, id string) error {
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
func (r *MySQLStagingRepository) DeleteAllChanges(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM staged_changes`); err != nil {
		return fmt.Errorf("failed to clear staged changes: %w", err)
	}
	return nil
}

// PutPendingWrite upserts a pending inventory write for an entity.
func (r *MySQLStagingRepository) PutPendingWrite(ctx context.Context, write PendingWrite) error {
	payload, err := json.Marshal(write.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal pending write: %w", err)
	}

	query := `
		INSERT INTO pending_inventory_writes (entity_id, entity_name, payload_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			entity_name = VALUES(entity_name),
			payload_json = VALUES(payload_json),
			updated_at = VALUES(updated_at)`

	_, err = r.db.ExecContext(ctx, query,
		write.EntityID, write.EntityName, string(payload),
		write.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to upsert pending write: %w", err)
	}
	return nil
}

// ListPendingWrites returns all pending inventory writes.
func (r *MySQLStagingRepository) ListPendingWrites(ctx context.Context) ([]PendingWrite, error) {
	query := `SELECT entity_id, entity_name, payload_json, updated_at FROM pending_inventory_writes ORDER BY updated_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending writes: %w", err)
	}
	defer rows.Close()

	return scanPendingWrites(rows)
}

// DeletePendingWrite removes the pending write for an entity.
func (r *MySQLStagingRepository) DeletePendingWrite(ctx context.Context, entityID string) error {
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
func (r *MySQLStagingRepository) Close() error {
	return r.db.Close()
}
