// Package uid generates the opaque identifiers used across the service:
// request ids, staged change ids, and fallback entity ids when slug
// generation cannot produce a unique one.
package uid

import "github.com/google/uuid"

// New returns a fresh identifier.
func New() string {
	return uuid.New().String()
}

// IsValid reports whether id has the shape New produces.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
