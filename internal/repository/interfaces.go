package repository

import (
	"context"
	"errors"
	"time"

	"catalogo-sync-api/internal/model"
)

// ErrChangeNotFound is returned when a staged change id is unknown.
var ErrChangeNotFound = errors.New("staged change not found")

// ErrPendingWriteNotFound is returned when no pending write exists for an entity.
var ErrPendingWriteNotFound = errors.New("pending inventory write not found")

// PendingWrite is an inventory write that could not reach the inventory
// service and is held durably until the next successful sync replays it.
type PendingWrite struct {
	EntityID   string
	EntityName string
	Payload    model.InventoryWrite
	UpdatedAt  time.Time
}

// StagingRepository defines durable storage for the staged-change log and
// the pending inventory-write fallback. Implementations must preserve
// insertion order for ListChanges; the sync engine applies changes in
// exactly that order.
type StagingRepository interface {
	// AppendChange appends a staged change to the log.
	AppendChange(ctx context.Context, change *model.StagedChange) error

	// ListChanges returns all staged changes in insertion order.
	ListChanges(ctx context.Context) ([]model.StagedChange, error)

	// GetChange returns one staged change. Returns ErrChangeNotFound if absent.
	GetChange(ctx context.Context, id string) (*model.StagedChange, error)

	// DeleteChange removes one staged change. Returns ErrChangeNotFound if absent.
	DeleteChange(ctx context.Context, id string) error

	// DeleteAllChanges clears the staged-change log.
	DeleteAllChanges(ctx context.Context) error

	// PutPendingWrite upserts a pending inventory write for an entity.
	PutPendingWrite(ctx context.Context, write PendingWrite) error

	// ListPendingWrites returns all pending inventory writes.
	ListPendingWrites(ctx context.Context) ([]PendingWrite, error)

	// DeletePendingWrite removes the pending write for an entity.
	// Returns ErrPendingWriteNotFound if absent.
	DeletePendingWrite(ctx context.Context, entityID string) error

	// Close closes the repository connection.
	Close() error
}
