package model

// SyncResult summarizes one catalog sync: how many staged changes were
// applied per kind, the resulting commit, and the outcome of the inventory
// writes forwarded after the commit.
type SyncResult struct {
	Created   int                   `json:"created"`
	Modified  int                   `json:"modified"`
	Deleted   int                   `json:"deleted"`
	CommitID  string                `json:"commitId"`
	Inventory InventoryWriteSummary `json:"inventory"`
}

// Applied returns the total number of staged changes applied.
func (r *SyncResult) Applied() int {
	return r.Created + r.Modified + r.Deleted
}

// InventoryWriteSummary reports the per-entity outcome of inventory writes
// executed after a successful catalog commit. Failures here never roll
// back the already-committed catalog.
type InventoryWriteSummary struct {
	Succeeded []string                `json:"succeeded"`
	Failed    []InventoryWriteFailure `json:"failed"`
}

// InventoryWriteFailure identifies one inventory write that did not land.
type InventoryWriteFailure struct {
	EntityID string `json:"entityId"`
	Name     string `json:"name"`
	Error    string `json:"error"`
}

// Progress is one step of a long-running operation, published on a channel
// so callers can render progress and await completion.
type Progress struct {
	Percent int    `json:"percent"`
	Message string `json:"message"`
}
