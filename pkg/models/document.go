package models

import "time"

// Document is a user-visible artifact produced by a session. Path is an
// absolute POSIX-style path inside the session's virtual filesystem.
type Document struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// VirtualFile is one entry in the virtual filesystem.
type VirtualFile struct {
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	SizeBytes  int       `json:"size_bytes"`
}
