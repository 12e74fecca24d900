// Package inventory reads and writes the privileged secondary attributes
// of catalog entries against the inventory service.
package inventory

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"catalogo-sync-api/internal/model"
)

// Accepted field-name aliases per attribute. The backend has grown several
// shapes over time; all are tolerated on read.
var (
	stockAliases    = []string{"stock", "existencias", "quantity", "qty", "cantidad"}
	costAliases     = []string{"cost", "costo", "coste", "unit_cost", "price"}
	supplierAliases = []string{"supplier", "proveedor", "vendor"}
	notesAliases    = []string{"notes", "notas", "note", "comments"}
)

// flattenDepth bounds shape unwrapping so a self-referential payload
// cannot loop forever.
const flattenDepth = 4

// NormalizeRecord maps a raw backend payload onto an InventoryRecord.
// Each attribute is resolved independently through its alias list and
// unwrapped through the closed set of backend shapes: plain scalar,
// {value: ...} wrapper, array (first element), JSON-encoded string.
func NormalizeRecord(entityID string, raw map[string]interface{}) *model.InventoryRecord {
	record := &model.InventoryRecord{
		EntityID:    entityID,
		LastUpdated: time.Now(),
	}
	if raw == nil {
		return record
	}

	if v, ok := resolve(raw, stockAliases); ok {
		record.Stock = toInt(v)
	}
	if v, ok := resolve(raw, costAliases); ok {
		record.Cost = toFloat(v)
	}
	if v, ok := resolve(raw, supplierAliases); ok {
		record.Supplier = toString(v)
	}
	if v, ok := resolve(raw, notesAliases); ok {
		record.Notes = toString(v)
	}

	record.Refresh()
	return record
}

// resolve picks the first alias present in the payload and flattens its
// value to a scalar.
func resolve(raw map[string]interface{}, aliases []string) (interface{}, bool) {
	for _, alias := range aliases {
		if v, ok := raw[alias]; ok {
			return flatten(v, flattenDepth), true
		}
	}
	return nil, false
}

// flatten unwraps the known shape variants until a scalar remains.
func flatten(v interface{}, depth int) interface{} {
	if depth == 0 {
		return v
	}

	switch val := v.(type) {
	case map[string]interface{}:
		if inner, ok := val["value"]; ok {
			return flatten(inner, depth-1)
		}
		return nil
	case []interface{}:
		if len(val) == 0 {
			return nil
		}
		return flatten(val[0], depth-1)
	case string:
		trimmed := strings.TrimSpace(val)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "\"") {
			var parsed interface{}
			if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
				return flatten(parsed, depth-1)
			}
		}
		return val
	default:
		return v
	}
}

func toInt(v interface{}) *int {
	switch val := v.(type) {
	case float64:
		n := int(val)
		return &n
	case int:
		return &val
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return &n
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			n := int(f)
			return &n
		}
	}
	return nil
}

func toFloat(v interface{}) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case int:
		f := float64(val)
		return &f
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return &f
		}
	}
	return nil
}

func toString(v interface{}) *string {
	switch val := v.(type) {
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return nil
		}
		return &trimmed
	case float64:
		s := strconv.FormatFloat(val, 'f', -1, 64)
		return &s
	case bool:
		s := strconv.FormatBool(val)
		return &s
	case nil:
		return nil
	default:
		s := fmt.Sprintf("%v", val)
		return &s
	}
}
