package state

import "time"

// FileMeta is the files_index entry: file metadata without content.
// Authoritative content lives in the VFS process; State only tracks enough
// metadata to answer "does this path exist / is it loaded / is it dirty"
// without a round-trip to the VFS.
type FileMeta struct {
	Path           string     `json:"path"`
	Loaded         bool       `json:"loaded"`
	Persistent     bool       `json:"persistent"`
	BaseDirectory  string     `json:"base_directory,omitempty"`
	MimeType       string     `json:"mime_type,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ModifiedAt     time.Time  `json:"modified_at"`
	Dirty          bool       `json:"dirty"`
	PendingTimerAt *time.Time `json:"pending_timer_at,omitempty"`
}
