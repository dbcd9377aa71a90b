// Package vfs implements the per-agent virtual filesystem process: an
// in-memory file store with lazy loading from pluggable persistence backends
// and per-file debounced write-through persistence. All mutations are
// serialized through a single goroutine's mailbox, mirroring the
// engine/inmem goroutine-plus-channel idiom this runtime uses throughout for
// "process" semantics rather than a shared mutex.
package vfs

import "time"

// FileEntry is the full in-memory record for one path, including content.
// Only the VFS goroutine ever reads or writes a FileEntry's fields.
type FileEntry struct {
	Path          string
	Content       []byte
	Loaded        bool
	Persistent    bool
	BaseDirectory string
	MimeType      string
	CreatedAt     time.Time
	ModifiedAt    time.Time
	Dirty         bool

	// pendingTimer, when non-nil, is the in-flight debounce timer for this
	// path. It is cancelled and replaced on every write.
	pendingTimer *time.Timer
}

// Stats summarizes the VFS's current contents.
type Stats struct {
	TotalFiles  int
	LoadedFiles int
	DirtyFiles  int
	BaseDirs    []string
}

// WriteOptions configures a single write.
type WriteOptions struct {
	MimeType string
}
