package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Catalog is the full content of the remote catalog document: every
// sellable entry, grouped by kind.
type Catalog struct {
	Products []CatalogEntry `json:"products"`
	Packs    []CatalogEntry `json:"packs"`
}

// NewCatalog returns an empty catalog, the shape a fresh repository
// starts with.
func NewCatalog() *Catalog {
	return &Catalog{Products: []CatalogEntry{}, Packs: []CatalogEntry{}}
}

// Entries returns the entries of one kind.
func (c *Catalog) Entries(kind EntityKind) []CatalogEntry {
	if kind == EntityKindPack {
		return c.Packs
	}
	return c.Products
}

// SetEntries replaces the entries of one kind.
func (c *Catalog) SetEntries(kind EntityKind, entries []CatalogEntry) {
	if kind == EntityKindPack {
		c.Packs = entries
		return
	}
	c.Products = entries
}

// Count returns the total number of entries across kinds.
func (c *Catalog) Count() int {
	return len(c.Products) + len(c.Packs)
}

// Clone returns a deep copy of the catalog.
func (c *Catalog) Clone() *Catalog {
	clone := NewCatalog()
	for i := range c.Products {
		clone.Products = append(clone.Products, *c.Products[i].Clone())
	}
	for i := range c.Packs {
		clone.Packs = append(clone.Packs, *c.Packs[i].Clone())
	}
	return clone
}

// catalogEntryWire is the on-the-wire schema of a catalog entry as stored
// in the remote document. It is a strict whitelist: converting through it
// drops any field the remote schema does not know about, including the
// in-memory Inventory attachment.
type catalogEntryWire struct {
	ID             string   `json:"id,omitempty"`
	Nombre         string   `json:"nombre"`
	Categoria      string   `json:"categoria"`
	Precio         float64  `json:"precio"`
	Descuento      float64  `json:"descuento"`
	MasVendido     bool     `json:"mas_vendido"`
	Nuevo          bool     `json:"nuevo"`
	Oferta         bool     `json:"oferta"`
	Imagenes       []string `json:"imagenes"`
	Descripcion    string   `json:"descripcion"`
	Disponibilidad bool     `json:"disponibilidad"`
	CreatedAt      *string  `json:"created_at"`
	ModifiedAt     *string  `json:"modified_at"`
}

type catalogWire struct {
	Products []catalogEntryWire `json:"products"`
	Packs    []catalogEntryWire `json:"packs"`
}

func toWire(e *CatalogEntry) catalogEntryWire {
	w := catalogEntryWire{
		ID:             e.ID,
		Nombre:         e.Name,
		Categoria:      e.Category,
		Precio:         e.Price,
		Descuento:      e.DiscountPercent,
		MasVendido:     e.BestSeller,
		Nuevo:          e.IsNew,
		Oferta:         e.OnSale,
		Imagenes:       e.Images,
		Descripcion:    e.Description,
		Disponibilidad: e.Available,
	}
	if w.Imagenes == nil {
		w.Imagenes = []string{}
	}
	if e.CreatedAt != nil {
		s := e.CreatedAt.UTC().Format(time.RFC3339)
		w.CreatedAt = &s
	}
	if e.ModifiedAt != nil {
		s := e.ModifiedAt.UTC().Format(time.RFC3339)
		w.ModifiedAt = &s
	}
	return w
}

func fromWire(w catalogEntryWire) CatalogEntry {
	e := CatalogEntry{
		ID:              w.ID,
		Name:            w.Nombre,
		Category:        w.Categoria,
		Price:           w.Precio,
		DiscountPercent: w.Descuento,
		BestSeller:      w.MasVendido,
		IsNew:           w.Nuevo,
		OnSale:          w.Oferta,
		Images:          w.Imagenes,
		Description:     w.Descripcion,
		Available:       w.Disponibilidad,
	}
	if e.Images == nil {
		e.Images = []string{}
	}
	if w.CreatedAt != nil {
		if t, err := time.Parse(time.RFC3339, *w.CreatedAt); err == nil {
			e.CreatedAt = &t
		}
	}
	if w.ModifiedAt != nil {
		if t, err := time.Parse(time.RFC3339, *w.ModifiedAt); err == nil {
			e.ModifiedAt = &t
		}
	}
	return e
}

// MarshalCatalog serializes a catalog into the fixed document schema,
// passing every entry through the wire whitelist.
func MarshalCatalog(c *Catalog) ([]byte, error) {
	doc := catalogWire{
		Products: make([]catalogEntryWire, 0, len(c.Products)),
		Packs:    make([]catalogEntryWire, 0, len(c.Packs)),
	}
	for i := range c.Products {
		doc.Products = append(doc.Products, toWire(&c.Products[i]))
	}
	for i := range c.Packs {
		doc.Packs = append(doc.Packs, toWire(&c.Packs[i]))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal catalog document: %w", err)
	}
	return data, nil
}

// ParseCatalog parses a catalog document. Missing top-level keys yield
// empty slices.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc catalogWire
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog document: %w", err)
	}

	catalog := NewCatalog()
	for _, w := range doc.Products {
		catalog.Products = append(catalog.Products, fromWire(w))
	}
	for _, w := range doc.Packs {
		catalog.Packs = append(catalog.Packs, fromWire(w))
	}
	return catalog, nil
}
