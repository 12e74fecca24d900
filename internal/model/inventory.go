package model

import "time"

// InventoryRecord holds the privileged secondary attributes of a catalog
// entry, fetched from the inventory service. It is attached to a
// CatalogEntry in memory and never serialized into the remote document.
type InventoryRecord struct {
	EntityID    string    `json:"entityId"`
	Stock       *int      `json:"stock"`
	Cost        *float64  `json:"cost"`
	Supplier    *string   `json:"supplier"`
	Notes       *string   `json:"notes"`
	LastUpdated time.Time `json:"lastUpdated"`
	HasData     bool      `json:"hasData"`
}

// EmptyInventoryRecord returns an explicit no-data record for an entity.
// Callers use this instead of nil so the UI can distinguish "looked up,
// nothing there" from "not looked up yet".
func EmptyInventoryRecord(entityID string) *InventoryRecord {
	return &InventoryRecord{
		EntityID:    entityID,
		LastUpdated: time.Now(),
		HasData:     false,
	}
}

// Refresh recomputes HasData from the attribute fields.
func (r *InventoryRecord) Refresh() {
	r.HasData = r.Stock != nil || r.Cost != nil || r.Supplier != nil || r.Notes != nil
}

// InventoryWrite is the payload of an inventory save.
type InventoryWrite struct {
	Stock    *int     `json:"stock"`
	Cost     *float64 `json:"cost"`
	Supplier *string  `json:"supplier"`
	Notes    *string  `json:"notes"`
}

// IsEmpty reports whether the write carries no attributes at all.
func (w InventoryWrite) IsEmpty() bool {
	return w.Stock == nil && w.Cost == nil && w.Supplier == nil && w.Notes == nil
}
