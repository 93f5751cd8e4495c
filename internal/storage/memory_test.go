package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

func TestMimeTypeFor(t *testing.T) {
	tests := []struct{ path, want string }{
		{"/docs/prd.md", "text/markdown"},
		{"/data/out.json", "application/json"},
		{"/cfg/app.yaml", "text/yaml"},
		{"/cfg/app.yml", "text/yaml"},
		{"/notes.txt", "text/plain"},
		{"/page.html", "text/html"},
		{"/out.pdf", "application/pdf"},
		{"/img.png", "image/png"},
		{"/img.jpg", "image/jpeg"},
		{"/img.JPEG", "image/jpeg"},
		{"/bin/blob", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := MimeTypeFor(tt.path); got != tt.want {
			t.Errorf("MimeTypeFor(%s) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestMemorySaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	if err := backend.Initialize(ctx); err != nil {
		t.Fatal(err)
	}

	doc := models.Document{Path: "/docs/prd.md", Content: "# PRD"}
	result, err := backend.Save(ctx, doc, Metadata{SessionID: "sess_1", AgentID: "pm", Command: "create-prd"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if result.Path != "sess_1/docs/prd.md" {
		t.Errorf("stored path = %s, want session-namespaced key", result.Path)
	}
	if result.Size != 5 {
		t.Errorf("size = %d, want 5", result.Size)
	}

	loaded, err := backend.Load(ctx, result.Path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Content != "# PRD" {
		t.Errorf("content = %q", loaded.Content)
	}

	exists, err := backend.Exists(ctx, result.Path)
	if err != nil || !exists {
		t.Errorf("Exists = (%v, %v), want (true, nil)", exists, err)
	}

	meta, err := backend.GetMetadata(ctx, result.Path)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if meta.MimeType != "text/markdown" || meta.SessionID != "sess_1" || meta.AgentID != "pm" {
		t.Errorf("metadata = %+v", meta)
	}

	deleted, err := backend.Delete(ctx, result.Path)
	if err != nil || !deleted {
		t.Errorf("Delete = (%v, %v)", deleted, err)
	}
	deleted, err = backend.Delete(ctx, result.Path)
	if err != nil || deleted {
		t.Errorf("second Delete = (%v, %v), want (false, nil)", deleted, err)
	}

	if _, err := backend.Load(ctx, result.Path); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after delete = %v, want ErrNotFound", err)
	}
}

func TestMemoryListFilters(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()

	saveDoc := func(sessionID, agentID, path string, tags []string) {
		t.Helper()
		_, err := backend.Save(ctx, models.Document{Path: path, Content: "x"},
			Metadata{SessionID: sessionID, AgentID: agentID, Tags: tags})
		if err != nil {
			t.Fatal(err)
		}
	}
	saveDoc("sess_1", "pm", "/a.md", []string{"draft"})
	saveDoc("sess_1", "pm", "/b.md", nil)
	saveDoc("sess_2", "dev", "/a.md", []string{"draft", "final"})

	// Listing by session returns exactly that session's documents.
	result, err := backend.List(ctx, QueryOptions{SessionID: "sess_1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("Total = %d, want 2", result.Total)
	}
	if result.Items[0].Path != "sess_1/a.md" || result.Items[1].Path != "sess_1/b.md" {
		t.Errorf("items out of order: %+v", result.Items)
	}

	result, err = backend.List(ctx, QueryOptions{AgentID: "dev"})
	if err != nil || result.Total != 1 {
		t.Errorf("agent filter: %+v, %v", result, err)
	}

	result, err = backend.List(ctx, QueryOptions{Tags: []string{"draft", "final"}})
	if err != nil || result.Total != 1 {
		t.Errorf("tag filter: %+v, %v", result, err)
	}

	result, err = backend.List(ctx, QueryOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Items) != 2 || !result.HasMore || result.Total != 3 {
		t.Errorf("pagination: items=%d hasMore=%v total=%d", len(result.Items), result.HasMore, result.Total)
	}

	result, err = backend.List(ctx, QueryOptions{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Items) != 1 || result.HasMore {
		t.Errorf("last page: items=%d hasMore=%v", len(result.Items), result.HasMore)
	}
}

func TestMemoryURLsNotSupported(t *testing.T) {
	backend := NewMemoryBackend()
	_, err := backend.GetURL(context.Background(), "sess_1/a.md", time.Minute)
	if !errors.Is(err, ErrURLsNotSupported) {
		t.Errorf("GetURL = %v, want ErrURLsNotSupported", err)
	}
}

func TestMemorySessionStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()

	now := time.Now().Truncate(time.Millisecond)
	state := &models.SessionState{
		ID:        "sess_abc",
		AgentID:   "pm",
		Command:   "create-prd",
		Status:    models.StatusPaused,
		CreatedAt: now,
		Messages: []models.Message{
			models.TextMessage(models.RoleSystem, "system prompt"),
			models.TextMessage(models.RoleUser, "Execute command: create-prd"),
		},
		VFSFiles:        map[string]string{"/docs/prd.md": "# PRD"},
		TotalCost:       0.105,
		APICallCount:    1,
		PendingQuestion: &models.PendingQuestion{Question: "Which DB?"},
		Options:         models.SessionOptions{CostLimit: 1.0},
		ProviderType:    "anthropic",
	}

	if err := backend.SaveSessionState(ctx, state); err != nil {
		t.Fatalf("SaveSessionState: %v", err)
	}

	loaded, err := backend.LoadSessionState(ctx, "sess_abc")
	if err != nil {
		t.Fatalf("LoadSessionState: %v", err)
	}

	before, err := models.EncodeSessionState(state)
	if err != nil {
		t.Fatal(err)
	}
	after, err := models.EncodeSessionState(loaded)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Errorf("round trip not byte-identical:\n%s\n%s", before, after)
	}
}

func TestMemoryListSessions(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()

	base := time.Now()
	for i, tc := range []struct {
		id     string
		agent  string
		status models.SessionStatus
	}{
		{"sess_1", "pm", models.StatusCompleted},
		{"sess_2", "pm", models.StatusFailed},
		{"sess_3", "dev", models.StatusCompleted},
	} {
		err := backend.SaveSessionState(ctx, &models.SessionState{
			ID:        tc.id,
			AgentID:   tc.agent,
			Status:    tc.status,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	result, err := backend.ListSessions(ctx, SessionQueryOptions{AgentID: "pm"})
	if err != nil || result.Total != 2 {
		t.Fatalf("agent filter: %+v, %v", result, err)
	}
	// Newest first.
	if result.Sessions[0].ID != "sess_2" {
		t.Errorf("order: %s first, want sess_2", result.Sessions[0].ID)
	}

	result, err = backend.ListSessions(ctx, SessionQueryOptions{Status: models.StatusCompleted})
	if err != nil || result.Total != 2 {
		t.Errorf("status filter: %+v, %v", result, err)
	}

	deleted, err := backend.DeleteSession(ctx, "sess_1")
	if err != nil || !deleted {
		t.Errorf("DeleteSession = (%v, %v)", deleted, err)
	}
	if _, err := backend.LoadSessionState(ctx, "sess_1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("load after delete = %v", err)
	}
}
