package vfs

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a backend's OnRead when the path has no
// persisted content, and by VFS.Read/Delete for unknown paths.
var ErrNotFound = errors.New("vfs: not found")

// ErrDuplicateBaseDirectory is returned by RegisterPersistence when a
// base directory already has a backend registered.
var ErrDuplicateBaseDirectory = errors.New("vfs: duplicate base directory")

// PersistenceBackend is the external, pluggable contract a base directory's
// content is persisted through. The default (nil) backend is in-memory-only.
type PersistenceBackend interface {
	OnWrite(ctx context.Context, path string, content []byte) error
	// OnRead returns ErrNotFound when the backend has no content for path.
	OnRead(ctx context.Context, path string) ([]byte, error)
	OnDelete(ctx context.Context, path string) error
	// OnList is optional; backends that cannot enumerate return ErrNotFound.
	OnList(ctx context.Context) ([]string, error)
}

// PersistenceConfig registers a backend for one base directory.
type PersistenceConfig struct {
	BaseDirectory string
	Backend       PersistenceBackend
	// DebounceMillis is the coalescing window for writes under this base
	// directory; zero means writes persist immediately (no debounce).
	DebounceMillis int
}
