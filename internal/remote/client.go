// Package remote talks to the version-controlled store holding the
// canonical catalog document and its image assets.
package remote

import "context"

// File is a remote file's content plus the content hash guarding it.
type File struct {
	Content []byte
	SHA     string
}

// Commit identifies a successful write.
type Commit struct {
	ID     string
	NewSHA string
}

// CatalogStore reads and writes files in the remote store with
// compare-and-swap semantics keyed by content hash. PutFile with a stale
// expectedSHA must fail with a CONFLICT error and leave the remote file
// untouched; that is the single concurrency guard over the catalog.
type CatalogStore interface {
	// GetFile fetches a file. Returns a NOT_FOUND error if absent.
	GetFile(ctx context.Context, path string) (*File, error)

	// PutFile creates or replaces a file. expectedSHA is empty for a
	// create and must match the current remote hash for a replace.
	PutFile(ctx context.Context, path string, content []byte, expectedSHA, message string) (*Commit, error)

	// DeleteFile removes a file guarded by its current hash.
	DeleteFile(ctx context.Context, path, sha, message string) error
}
