// Package staging holds catalog mutations locally until the operator syncs.
package staging

import (
	"fmt"
	"os"
	"path/filepath"
)

// BlobStore keeps staged image payloads on disk, keyed by filename.
// Blobs live outside the staging database: they are large, immutable, and
// deleted together with their staged change.
type BlobStore struct {
	baseDir string
}

// NewBlobStore creates a blob store rooted at baseDir.
func NewBlobStore(baseDir string) (*BlobStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob dir: %w", err)
	}
	return &BlobStore{baseDir: baseDir}, nil
}

// Put stores a blob under the given filename.
func (s *BlobStore) Put(name string, data []byte) error {
	if err := os.WriteFile(s.path(name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", name, err)
	}
	return nil
}

// Get reads a blob by filename.
func (s *BlobStore) Get(name string) ([]byte, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", name, err)
	}
	return data, nil
}

// Delete removes a blob. Deleting an absent blob is not an error.
func (s *BlobStore) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %s: %w", name, err)
	}
	return nil
}

// Clear removes every blob in the store.
func (s *BlobStore) Clear() error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to list blob dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.baseDir, entry.Name())); err != nil {
			return fmt.Errorf("failed to delete blob %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// path keeps blob access confined to the base dir: the filename component
// is flattened so a crafted name cannot escape it.
func (s *BlobStore) path(name string) string {
	return filepath.Join(s.baseDir, filepath.Base(name))
}
