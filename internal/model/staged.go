package model

import "time"

// ChangeKind identifies the kind of staged mutation.
type ChangeKind string

const (
	ChangeKindNew    ChangeKind = "new"
	ChangeKindModify ChangeKind = "modify"
	ChangeKindDelete ChangeKind = "delete"
)

// Valid reports whether the kind is one of the known change kinds.
func (k ChangeKind) Valid() bool {
	return k == ChangeKindNew || k == ChangeKindModify || k == ChangeKindDelete
}

// StagedChange is a pending catalog mutation captured locally until the
// operator synchronizes. Snapshot is a deep copy taken at staging time.
// OriginalName records the entry name at staging time and serves as a
// fallback match key for legacy entries without stable ids.
type StagedChange struct {
	ID           string       `json:"id"`
	Kind         ChangeKind   `json:"kind"`
	EntityKind   EntityKind   `json:"entityKind"`
	EntityID     string       `json:"entityId"`
	Timestamp    time.Time    `json:"timestamp"`
	Snapshot     CatalogEntry `json:"snapshot"`
	OriginalName string       `json:"originalName"`
	ImageRef     string       `json:"imageRef,omitempty"`
}
