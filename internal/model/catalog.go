package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// EntityKind identifies the kind of sellable entry in the catalog.
type EntityKind string

const (
	EntityKindProduct EntityKind = "product"
	EntityKindPack    EntityKind = "pack"
)

// Valid reports whether the kind is one of the known entity kinds.
func (k EntityKind) Valid() bool {
	return k == EntityKindProduct || k == EntityKindPack
}

// DocumentKey returns the top-level key holding entries of this kind
// in the remote catalog document ("products" or "packs").
func (k EntityKind) DocumentKey() string {
	return string(k) + "s"
}

// AssetDir returns the remote directory holding image assets for this kind.
func (k EntityKind) AssetDir() string {
	return "images/" + k.DocumentKey()
}

// CatalogEntry is a sellable entry as held in memory. The canonical copy
// lives in the remote catalog document; Inventory is attached locally by
// the reconciler and is never written to the remote document.
type CatalogEntry struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Category        string     `json:"category"`
	Price           float64    `json:"price"`
	DiscountPercent float64    `json:"discountPercent"`
	IsNew           bool       `json:"isNew"`
	OnSale          bool       `json:"onSale"`
	BestSeller      bool       `json:"bestSeller"`
	Available       bool       `json:"available"`
	Images          []string   `json:"images"`
	Description     string     `json:"description"`
	CreatedAt       *time.Time `json:"createdAt"`
	ModifiedAt      *time.Time `json:"modifiedAt"`

	Inventory *InventoryRecord `json:"inventory,omitempty"`
}

// FinalPrice returns the effective price: discounted when the entry is on
// sale, the list price otherwise. Computed with decimal arithmetic and
// rounded to 2 places to avoid float drift on discount math.
func (e *CatalogEntry) FinalPrice() float64 {
	if !e.OnSale || e.DiscountPercent <= 0 {
		return e.Price
	}

	price := decimal.NewFromFloat(e.Price)
	factor := decimal.NewFromInt(100).
		Sub(decimal.NewFromFloat(e.DiscountPercent)).
		Div(decimal.NewFromInt(100))

	final, _ := price.Mul(factor).Round(2).Float64()
	return final
}

// MarshalJSON emits the entry with its derived finalPrice so API
// consumers never redo the discount math. The remote document schema is
// unaffected: it is produced through the wire whitelist, not through
// this method.
func (e CatalogEntry) MarshalJSON() ([]byte, error) {
	type plain CatalogEntry
	return json.Marshal(struct {
		plain
		FinalPrice float64 `json:"finalPrice"`
	}{plain(e), e.FinalPrice()})
}

// Clone returns a deep copy of the entry. Inventory is not carried over:
// it is derived data owned by the reconciler, not part of the snapshot.
func (e *CatalogEntry) Clone() *CatalogEntry {
	clone := *e
	clone.Inventory = nil

	if e.Images != nil {
		clone.Images = make([]string, len(e.Images))
		copy(clone.Images, e.Images)
	}
	if e.CreatedAt != nil {
		t := *e.CreatedAt
		clone.CreatedAt = &t
	}
	if e.ModifiedAt != nil {
		t := *e.ModifiedAt
		clone.ModifiedAt = &t
	}

	return &clone
}
