package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

// MemoryBackend keeps documents and session state in process memory behind
// a single lock. It is the default backend and the reference for the
// contract's semantics.
type MemoryBackend struct {
	mu       sync.RWMutex
	docs     map[string]memoryEntry
	sessions map[string][]byte
}

type memoryEntry struct {
	content string
	meta    Metadata
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		docs:     make(map[string]memoryEntry),
		sessions: make(map[string][]byte),
	}
}

func (m *MemoryBackend) Initialize(ctx context.Context) error { return nil }
func (m *MemoryBackend) Close(ctx context.Context) error      { return nil }

func (m *MemoryBackend) Save(ctx context.Context, doc models.Document, meta Metadata) (*SaveResult, error) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	meta.Size = len(doc.Content)
	if meta.MimeType == "" {
		meta.MimeType = MimeTypeFor(doc.Path)
	}

	key := DocumentKey(meta.SessionID, doc.Path)
	m.mu.Lock()
	m.docs[key] = memoryEntry{content: doc.Content, meta: meta}
	m.mu.Unlock()

	return &SaveResult{Path: key, Size: meta.Size, SavedAt: meta.Timestamp}, nil
}

func (m *MemoryBackend) SaveBatch(ctx context.Context, docs []models.Document, meta Metadata) ([]*SaveResult, error) {
	results := make([]*SaveResult, 0, len(docs))
	for _, doc := range docs {
		result, err := m.Save(ctx, doc, meta)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (m *MemoryBackend) Load(ctx context.Context, path string) (*models.Document, error) {
	m.mu.RLock()
	entry, ok := m.docs[path]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("load %s: %w", path, ErrNotFound)
	}
	return &models.Document{Path: path, Content: entry.content}, nil
}

func (m *MemoryBackend) Exists(ctx context.Context, path string) (bool, error) {
	m.mu.RLock()
	_, ok := m.docs[path]
	m.mu.RUnlock()
	return ok, nil
}

func (m *MemoryBackend) Delete(ctx context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[path]; !ok {
		return false, nil
	}
	delete(m.docs, path)
	return true, nil
}

func (m *MemoryBackend) List(ctx context.Context, opts QueryOptions) (*ListResult, error) {
	m.mu.RLock()
	var items []Item
	for path, entry := range m.docs {
		if matchesQuery(entry.meta, opts) {
			items = append(items, Item{Path: path, Metadata: entry.meta})
		}
	}
	m.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })

	start, end, hasMore := paginate(len(items), opts.Offset, opts.Limit)
	return &ListResult{
		Items:   items[start:end],
		Total:   len(items),
		HasMore: hasMore,
	}, nil
}

func (m *MemoryBackend) GetMetadata(ctx context.Context, path string) (*Metadata, error) {
	m.mu.RLock()
	entry, ok := m.docs[path]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("metadata %s: %w", path, ErrNotFound)
	}
	meta := entry.meta
	return &meta, nil
}

func (m *MemoryBackend) GetURL(ctx context.Context, path string, expires time.Duration) (string, error) {
	return "", ErrURLsNotSupported
}

func (m *MemoryBackend) SaveSessionState(ctx context.Context, state *models.SessionState) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	m.mu.Lock()
	m.sessions[state.ID] = encoded
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) LoadSessionState(ctx context.Context, id string) (*models.SessionState, error) {
	m.mu.RLock()
	encoded, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	var state models.SessionState
	if err := json.Unmarshal(encoded, &state); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	return &state, nil
}

func (m *MemoryBackend) ListSessions(ctx context.Context, opts SessionQueryOptions) (*SessionListResult, error) {
	m.mu.RLock()
	var states []*models.SessionState
	for _, encoded := range m.sessions {
		var state models.SessionState
		if err := json.Unmarshal(encoded, &state); err != nil {
			continue
		}
		if opts.AgentID != "" && state.AgentID != opts.AgentID {
			continue
		}
		if opts.Status != "" && state.Status != opts.Status {
			continue
		}
		states = append(states, &state)
	}
	m.mu.RUnlock()

	sort.Slice(states, func(i, j int) bool {
		if states[i].CreatedAt.Equal(states[j].CreatedAt) {
			return states[i].ID < states[j].ID
		}
		return states[i].CreatedAt.After(states[j].CreatedAt)
	})

	start, end, hasMore := paginate(len(states), opts.Offset, opts.Limit)
	return &SessionListResult{
		Sessions: states[start:end],
		Total:    len(states),
		HasMore:  hasMore,
	}, nil
}

func (m *MemoryBackend) DeleteSession(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false, nil
	}
	delete(m.sessions, id)
	return true, nil
}
