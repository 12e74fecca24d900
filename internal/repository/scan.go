package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"catalogo-sync-api/internal/model"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanChange reads one staged-change row. Timestamps are stored as
// RFC3339Nano strings so the three SQL backends behave identically.
func scanChange(row rowScanner) (*model.StagedChange, error) {
	var (
		change   model.StagedChange
		kind     string
		entKind  string
		snapshot string
		stagedAt string
	)

	err := row.Scan(&change.ID, &kind, &entKind, &change.EntityID,
		&change.OriginalName, &change.ImageRef, &snapshot, &stagedAt)
	if err != nil {
		return nil, err
	}

	change.Kind = model.ChangeKind(kind)
	change.EntityKind = model.EntityKind(entKind)

	if err := json.Unmarshal([]byte(snapshot), &change.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot for change %s: %w", change.ID, err)
	}
	if change.Timestamp, err = time.Parse(time.RFC3339Nano, stagedAt); err != nil {
		return nil, fmt.Errorf("failed to parse staged_at for change %s: %w", change.ID, err)
	}

	return &change, nil
}

func scanChanges(rows *sql.Rows) ([]model.StagedChange, error) {
	changes := []model.StagedChange{}
	for rows.Next() {
		change, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, *change)
	}
	return changes, rows.Err()
}

func scanPendingWrites(rows *sql.Rows) ([]PendingWrite, error) {
	writes := []PendingWrite{}
	for rows.Next() {
		var (
			write     PendingWrite
			payload   string
			updatedAt string
		)
		if err := rows.Scan(&write.EntityID, &write.EntityName, &payload, &updatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &write.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pending write for %s: %w", write.EntityID, err)
		}
		var err error
		if write.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, fmt.Errorf("failed to parse updated_at for %s: %w", write.EntityID, err)
		}
		writes = append(writes, write)
	}
	return writes, rows.Err()
}
