// Package storage defines the contract for persisting documents and
// serialized session state, with in-memory and S3-compatible backends.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

// Sentinel errors.
var (
	// ErrNotFound indicates the requested document or session does not
	// exist in the backend.
	ErrNotFound = errors.New("not found in storage")

	// ErrURLsNotSupported indicates the backend cannot mint access URLs.
	ErrURLsNotSupported = errors.New("storage backend does not support URLs")
)

// Metadata describes a stored document.
type Metadata struct {
	SessionID string    `json:"session_id"`
	AgentID   string    `json:"agent_id"`
	Command   string    `json:"command"`
	Timestamp time.Time `json:"timestamp"`
	Size      int       `json:"size"`
	MimeType  string    `json:"mime_type"`
	Tags      []string  `json:"tags,omitempty"`
}

// SaveResult reports a completed save.
type SaveResult struct {
	Path    string    `json:"path"`
	URL     string    `json:"url,omitempty"`
	Size    int       `json:"size"`
	SavedAt time.Time `json:"saved_at"`
}

// QueryOptions filters document listings. Zero values match everything.
type QueryOptions struct {
	SessionID string
	AgentID   string
	Since     time.Time
	Until     time.Time
	Tags      []string
	Limit     int
	Offset    int
}

// Item is one document entry in a listing.
type Item struct {
	Path     string   `json:"path"`
	Metadata Metadata `json:"metadata"`
}

// ListResult is a page of document entries.
type ListResult struct {
	Items   []Item `json:"items"`
	Total   int    `json:"total"`
	HasMore bool   `json:"has_more"`
}

// SessionQueryOptions filters session listings.
type SessionQueryOptions struct {
	AgentID string
	Status  models.SessionStatus
	Limit   int
	Offset  int
}

// SessionListResult is a page of serialized session states.
type SessionListResult struct {
	Sessions []*models.SessionState `json:"sessions"`
	Total    int                    `json:"total"`
	HasMore  bool                   `json:"has_more"`
}

// Backend persists documents and session state. Implementations must be
// safe for concurrent calls from different sessions.
type Backend interface {
	// Initialize prepares the backend for use.
	Initialize(ctx context.Context) error

	// Close releases backend resources.
	Close(ctx context.Context) error

	// Save stores one document with its metadata.
	Save(ctx context.Context, doc models.Document, meta Metadata) (*SaveResult, error)

	// SaveBatch stores several documents; results are positional.
	SaveBatch(ctx context.Context, docs []models.Document, meta Metadata) ([]*SaveResult, error)

	// Load returns the document at path, or ErrNotFound.
	Load(ctx context.Context, path string) (*models.Document, error)

	// Exists reports whether a document is stored at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes the document at path; false when absent.
	Delete(ctx context.Context, path string) (bool, error)

	// List returns the documents matching the query, sorted by path.
	List(ctx context.Context, opts QueryOptions) (*ListResult, error)

	// GetMetadata returns the metadata stored with a document.
	GetMetadata(ctx context.Context, path string) (*Metadata, error)

	// GetURL mints an access URL for a document, valid for expires.
	// Backends without URL support return ErrURLsNotSupported.
	GetURL(ctx context.Context, path string, expires time.Duration) (string, error)

	// SaveSessionState persists a serialized session.
	SaveSessionState(ctx context.Context, state *models.SessionState) error

	// LoadSessionState returns a serialized session, or ErrNotFound.
	LoadSessionState(ctx context.Context, id string) (*models.SessionState, error)

	// ListSessions returns the sessions matching the query.
	ListSessions(ctx context.Context, opts SessionQueryOptions) (*SessionListResult, error)

	// DeleteSession removes a serialized session; false when absent.
	DeleteSession(ctx context.Context, id string) (bool, error)
}

var mimeTypes = map[string]string{
	".md":   "text/markdown",
	".json": "application/json",
	".yaml": "text/yaml",
	".yml":  "text/yaml",
	".txt":  "text/plain",
	".html": "text/html",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// MimeTypeFor infers a document's MIME type from its path extension.
func MimeTypeFor(p string) string {
	if mt, ok := mimeTypes[strings.ToLower(path.Ext(p))]; ok {
		return mt
	}
	return "application/octet-stream"
}

// DocumentKey namespaces a document path under its session id, per the
// persisted-path convention. The backend may add its own base prefix.
func DocumentKey(sessionID, docPath string) string {
	return sessionID + "/" + strings.TrimPrefix(docPath, "/")
}

// matchesQuery applies the listing filters to one entry.
func matchesQuery(meta Metadata, opts QueryOptions) bool {
	if opts.SessionID != "" && meta.SessionID != opts.SessionID {
		return false
	}
	if opts.AgentID != "" && meta.AgentID != opts.AgentID {
		return false
	}
	if !opts.Since.IsZero() && meta.Timestamp.Before(opts.Since) {
		return false
	}
	if !opts.Until.IsZero() && meta.Timestamp.After(opts.Until) {
		return false
	}
	for _, want := range opts.Tags {
		found := false
		for _, tag := range meta.Tags {
			if tag == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// paginate applies offset and limit to a total count, returning the slice
// bounds and whether more entries follow.
func paginate(total, offset, limit int) (start, end int, hasMore bool) {
	if offset > total {
		offset = total
	}
	end = total
	if limit > 0 && offset+limit < total {
		end = offset + limit
		hasMore = true
	}
	return offset, end, hasMore
}
