package vfs

import (
	"context"
	"fmt"
	"time"

	"goa.design/agentcore/state"
	"goa.design/agentcore/telemetry"
)

// VFS is a per-agent, process-owned file store. It survives AgentServer
// crashes (callers keep a reference that outlives any particular
// AgentServer) and serializes all mutation through a single goroutine's
// mailbox, grounded on the goroutine-plus-channel "process" idiom used
// throughout this runtime instead of a raw mutex.
type VFS struct {
	mailbox chan func()
	done    chan struct{}
	log     telemetry.Logger

	entries  map[string]*FileEntry
	backends map[string]PersistenceConfig // keyed by base directory
}

// Option configures a VFS at construction time.
type Option func(*VFS)

// WithLogger injects a telemetry.Logger. Defaults to telemetry.NoopLogger.
func WithLogger(l telemetry.Logger) Option {
	return func(v *VFS) { v.log = l }
}

// New starts a VFS process and returns a handle to it. Callers must call
// Close when the owning agent subtree is torn down.
func New(opts ...Option) *VFS {
	v := &VFS{
		mailbox:  make(chan func(), 64),
		done:     make(chan struct{}),
		log:      telemetry.NoopLogger{},
		entries:  make(map[string]*FileEntry),
		backends: make(map[string]PersistenceConfig),
	}
	for _, opt := range opts {
		opt(v)
	}
	go v.run()
	return v
}

func (v *VFS) run() {
	for {
		select {
		case fn := <-v.mailbox:
			fn()
		case <-v.done:
			return
		}
	}
}

// call serializes fn through the VFS goroutine and waits for it to run.
func (v *VFS) call(ctx context.Context, fn func()) error {
	reply := make(chan struct{})
	wrapped := func() {
		fn()
		close(reply)
	}
	select {
	case <-v.done:
		return fmt.Errorf("vfs: process terminated")
	default:
	}
	select {
	case v.mailbox <- wrapped:
	case <-v.done:
		return fmt.Errorf("vfs: process terminated")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Write upserts path with content. If path falls under a registered base
// directory, a debounce timer is (re)scheduled per §4.2's algorithm.
func (v *VFS) Write(ctx context.Context, path string, content []byte, opts WriteOptions) error {
	return v.call(ctx, func() { v.writeLocked(path, content, opts) })
}

func (v *VFS) writeLocked(path string, content []byte, opts WriteOptions) {
	now := time.Now()
	entry, existed := v.entries[path]
	if !existed {
		entry = &FileEntry{Path: path, CreatedAt: now}
		v.entries[path] = entry
	}
	entry.Content = content
	entry.Loaded = true
	entry.ModifiedAt = now
	if opts.MimeType != "" {
		entry.MimeType = opts.MimeType
	}

	cfg, base, ok := v.matchBaseDir(path)
	if !ok {
		return
	}
	entry.Persistent = true
	entry.BaseDirectory = base
	entry.Dirty = true

	if entry.pendingTimer != nil {
		entry.pendingTimer.Stop()
	}
	if cfg.DebounceMillis <= 0 {
		v.flushEntry(path)
		return
	}
	entry.pendingTimer = time.AfterFunc(time.Duration(cfg.DebounceMillis)*time.Millisecond, func() {
		_ = v.call(context.Background(), func() { v.flushEntry(path) })
	})
}

func (v *VFS) matchBaseDir(path string) (PersistenceConfig, string, bool) {
	var best string
	var bestCfg PersistenceConfig
	found := false
	for base, cfg := range v.backends {
		if hasBasePrefix(path, base) && len(base) > len(best) {
			best, bestCfg, found = base, cfg, true
		}
	}
	return bestCfg, best, found
}

func hasBasePrefix(path, base string) bool {
	if base == "" {
		return false
	}
	if path == base {
		return true
	}
	return len(path) > len(base) && path[:len(base)] == base
}

// flushEntry calls the backend's OnWrite for a dirty entry and clears Dirty
// on success. On error it logs and leaves the entry dirty for the next
// successful write or flush_all to retry (§4.2 failure semantics).
func (v *VFS) flushEntry(path string) {
	entry, ok := v.entries[path]
	if !ok || !entry.Dirty {
		return
	}
	cfg, ok := v.backends[entry.BaseDirectory]
	if !ok || cfg.Backend == nil {
		entry.Dirty = false
		return
	}
	ctx := context.Background()
	if err := cfg.Backend.OnWrite(ctx, path, entry.Content); err != nil {
		v.log.Error(ctx, err, "vfs: persist write failed", "path", path)
		return
	}
	entry.Dirty = false
}

// Read returns path's content, lazily loading from the backend if the entry
// is persistent but unloaded.
func (v *VFS) Read(ctx context.Context, path string) ([]byte, error) {
	var content []byte
	var readErr error
	err := v.call(ctx, func() { content, readErr = v.readLocked(ctx, path) })
	if err != nil {
		return nil, err
	}
	return content, readErr
}

func (v *VFS) readLocked(ctx context.Context, path string) ([]byte, error) {
	entry, ok := v.entries[path]
	if !ok {
		return nil, ErrNotFound
	}
	if entry.Loaded {
		return entry.Content, nil
	}
	cfg, ok := v.backends[entry.BaseDirectory]
	if !ok || cfg.Backend == nil {
		return nil, ErrNotFound
	}
	content, err := cfg.Backend.OnRead(ctx, path)
	if err != nil {
		return nil, err
	}
	entry.Content = content
	entry.Loaded = true
	return content, nil
}

// Delete removes path. If persistent, OnDelete runs immediately (no
// debounce), after flushing any pending timer without writing its content.
func (v *VFS) Delete(ctx context.Context, path string) error {
	var opErr error
	err := v.call(ctx, func() { opErr = v.deleteLocked(ctx, path) })
	if err != nil {
		return err
	}
	return opErr
}

func (v *VFS) deleteLocked(ctx context.Context, path string) error {
	entry, ok := v.entries[path]
	if !ok {
		return ErrNotFound
	}
	if entry.pendingTimer != nil {
		entry.pendingTimer.Stop()
		entry.pendingTimer = nil
	}
	delete(v.entries, path)
	if !entry.Persistent {
		return nil
	}
	cfg, ok := v.backends[entry.BaseDirectory]
	if !ok || cfg.Backend == nil {
		return nil
	}
	return cfg.Backend.OnDelete(ctx, path)
}

// List returns the paths of all known entries, loaded or not.
func (v *VFS) List(ctx context.Context) ([]string, error) {
	var paths []string
	err := v.call(ctx, func() {
		paths = make([]string, 0, len(v.entries))
		for p := range v.entries {
			paths = append(paths, p)
		}
	})
	return paths, err
}

// Exists reports whether path is known (loaded or not).
func (v *VFS) Exists(ctx context.Context, path string) (bool, error) {
	var exists bool
	err := v.call(ctx, func() { _, exists = v.entries[path] })
	return exists, err
}

// GetStats summarizes the VFS's current contents.
func (v *VFS) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	err := v.call(ctx, func() {
		dirSet := map[string]struct{}{}
		for _, e := range v.entries {
			s.TotalFiles++
			if e.Loaded {
				s.LoadedFiles++
			}
			if e.Dirty {
				s.DirtyFiles++
			}
			if e.BaseDirectory != "" {
				dirSet[e.BaseDirectory] = struct{}{}
			}
		}
		for d := range dirSet {
			s.BaseDirs = append(s.BaseDirs, d)
		}
	})
	return s, err
}

// FlushAll synchronously flushes every dirty entry, retrying any entry whose
// last persistence attempt failed.
func (v *VFS) FlushAll(ctx context.Context) error {
	return v.call(ctx, func() {
		for path, e := range v.entries {
			if e.Dirty {
				v.flushEntry(path)
			}
		}
	})
}

// Reset drops memory-only files and discards in-memory modifications to
// persisted files (the persisted backend content is the fallback truth). It
// does NOT delete backend content.
func (v *VFS) Reset(ctx context.Context) error {
	return v.call(ctx, func() {
		for path, e := range v.entries {
			if e.pendingTimer != nil {
				e.pendingTimer.Stop()
			}
			if !e.Persistent {
				delete(v.entries, path)
				continue
			}
			e.Loaded = false
			e.Content = nil
			e.Dirty = false
		}
	})
}

// RegisterPersistence adds a backend for a new base directory.
func (v *VFS) RegisterPersistence(ctx context.Context, cfg PersistenceConfig) error {
	var opErr error
	err := v.call(ctx, func() {
		if _, dup := v.backends[cfg.BaseDirectory]; dup {
			opErr = ErrDuplicateBaseDirectory
			return
		}
		v.backends[cfg.BaseDirectory] = cfg
	})
	if err != nil {
		return err
	}
	return opErr
}

// RegisteredFile pre-populates metadata for register_files (e.g. restore).
type RegisteredFile struct {
	Path          string
	Persistent    bool
	BaseDirectory string
	MimeType      string
	CreatedAt     time.Time
	ModifiedAt    time.Time
}

// RegisterFiles pre-populates metadata without content; content loads lazily
// on first Read.
func (v *VFS) RegisterFiles(ctx context.Context, files []RegisteredFile) error {
	return v.call(ctx, func() {
		for _, f := range files {
			v.entries[f.Path] = &FileEntry{
				Path:          f.Path,
				Persistent:    f.Persistent,
				BaseDirectory: f.BaseDirectory,
				MimeType:      f.MimeType,
				CreatedAt:     f.CreatedAt,
				ModifiedAt:    f.ModifiedAt,
				Loaded:        false,
			}
		}
	})
}

// Close flushes all dirty entries synchronously and stops the process,
// matching the §4.2 "On VFS shutdown (terminate)" requirement.
func (v *VFS) Close(ctx context.Context) error {
	if err := v.FlushAll(ctx); err != nil {
		return err
	}
	close(v.done)
	return nil
}

// FilesIndex produces the State.FilesIndex snapshot for the current entries:
// metadata only, without content.
func (v *VFS) FilesIndex(ctx context.Context) (map[string]state.FileMeta, error) {
	out := make(map[string]state.FileMeta)
	err := v.call(ctx, func() {
		for p, e := range v.entries {
			out[p] = state.FileMeta{
				Path:          e.Path,
				Loaded:        e.Loaded,
				Persistent:    e.Persistent,
				BaseDirectory: e.BaseDirectory,
				MimeType:      e.MimeType,
				CreatedAt:     e.CreatedAt,
				ModifiedAt:    e.ModifiedAt,
				Dirty:         e.Dirty,
			}
		}
	})
	return out, err
}
