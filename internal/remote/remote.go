// Package remote defines the file-level store contract a board runs
// against and the built-in backends: a plain directory tree ("folder")
// and an OCI registry ("oci").
//
// Paths are slash-separated and relative to the backend root; boards
// compose them as <subdir>/<pin>/<version>/<file>.
package remote

import (
	"context"
	"errors"
)

// DefaultConcurrency bounds parallel per-file transfers.
const DefaultConcurrency = 4

// ErrNotFound is returned by GetFile and DeleteFile for absent paths.
var ErrNotFound = errors.New("remote: not found")

// Entry is one name in a directory listing.
type Entry struct {
	Name   string
	IsFile bool
}

// Store is the minimal contract the board depends on. Implementations
// must tolerate concurrent readers; ordering between concurrent writers
// to the same path is backend-defined (last write wins).
type Store interface {
	// PathExists reports whether path is present (file or directory).
	PathExists(ctx context.Context, path string) (bool, error)

	// ListDir returns the immediate children of a directory.
	ListDir(ctx context.Context, path string) ([]Entry, error)

	// GetFile reads one file. Returns ErrNotFound if absent.
	GetFile(ctx context.Context, path string) ([]byte, error)

	// PutFile writes one file, creating parents as needed.
	PutFile(ctx context.Context, path string, data []byte) error

	// DeleteFile removes one file. Returns ErrNotFound if absent.
	DeleteFile(ctx context.Context, path string) error

	// MkDir creates a directory; idempotent.
	MkDir(ctx context.Context, path string) error
}
