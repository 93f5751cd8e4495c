package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/draftsmith-ai/draftsmith/internal/tools"
	"github.com/draftsmith-ai/draftsmith/internal/vfs"
	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

func newTestConversation(t *testing.T, p *scriptedProvider) *Conversational {
	t.Helper()
	executor, err := tools.New(tools.Options{FS: vfs.New()})
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewConversational(Config{
		AgentID:  "pm",
		Command:  "chat",
		Provider: p,
		Loader:   testLoader(t),
		Tools:    executor,
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestConversationTurns(t *testing.T) {
	writeInput := json.RawMessage(`{"file_path": "/docs/outline.md", "content": "# Outline"}`)
	p := &scriptedProvider{responses: []*models.ProviderResponse{
		textTurn("Hello! I am the PM.", 100, 50),
		toolTurn(120, 40, models.ToolUseBlock("toolu_1", "write_file", writeInput)),
		textTurn("Outline written.", 150, 20),
	}}
	c := newTestConversation(t, p)
	ctx := context.Background()

	if c.Status() != models.ConvIdle {
		t.Fatalf("initial status = %s", c.Status())
	}
	if !strings.HasPrefix(c.ID(), "conv_") {
		t.Errorf("id = %q, want conv_ prefix", c.ID())
	}

	turn, err := c.Send(ctx, "Introduce yourself.")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if turn.UserMessage != "Introduce yourself." || turn.AgentResponse != "Hello! I am the PM." {
		t.Errorf("turn = %+v", turn)
	}
	if turn.TokensUsed != 150 {
		t.Errorf("tokensUsed = %d, want 150", turn.TokensUsed)
	}
	if c.Status() != models.ConvIdle {
		t.Errorf("status after turn = %s", c.Status())
	}

	// System prompt is seeded exactly once, on the first send.
	if len(p.requests) == 0 || p.requests[0][0].Role != models.RoleSystem {
		t.Fatal("first request missing system prompt")
	}

	turn, err = c.Send(ctx, "Write the outline.")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(turn.ToolCalls) != 1 || !strings.HasPrefix(turn.ToolCalls[0], "write_file(") {
		t.Errorf("toolCalls = %v", turn.ToolCalls)
	}

	result, err := c.End()
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if len(result.Turns) != 2 {
		t.Errorf("turns = %d, want 2", len(result.Turns))
	}
	if len(result.Documents) != 1 || result.Documents[0].Path != "/docs/outline.md" {
		t.Errorf("documents = %+v", result.Documents)
	}
	if result.Costs.APICalls != 3 {
		t.Errorf("apiCalls = %d, want 3", result.Costs.APICalls)
	}
	if c.Status() != models.ConvEnded {
		t.Errorf("status = %s, want ended", c.Status())
	}
}

func TestConversationQuestionHeuristic(t *testing.T) {
	p := &scriptedProvider{responses: []*models.ProviderResponse{
		textTurn("Which database should the design target?", 100, 50),
	}}
	c := newTestConversation(t, p)

	var questions []string
	c.Events().Subscribe(func(event Event) {
		if event.Type == EventQuestion {
			if q, ok := event.Payload["question"].(string); ok {
				questions = append(questions, q)
			}
		}
	})

	if _, err := c.Send(context.Background(), "Start the design."); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(questions) != 1 || !strings.HasSuffix(questions[0], "?") {
		t.Errorf("question events = %v", questions)
	}
}

func TestConversationAskUserPause(t *testing.T) {
	askInput := json.RawMessage(`{"question": "Which DB?"}`)
	p := &scriptedProvider{responses: []*models.ProviderResponse{
		toolTurn(100, 50, models.ToolUseBlock("toolu_1", "ask_user", askInput)),
		textTurn("Using Postgres.", 100, 50),
	}}
	c := newTestConversation(t, p)

	c.Events().Subscribe(func(event Event) {
		if event.Type == EventQuestion && event.Payload["question"] == "Which DB?" {
			if c.Status() != models.ConvWaitingForAnswer {
				t.Errorf("status during question = %s", c.Status())
			}
			if err := c.Answer("Postgres"); err != nil {
				t.Errorf("Answer: %v", err)
			}
		}
	})

	turn, err := c.Send(context.Background(), "Design the storage layer.")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(turn.AgentResponse, "Postgres") {
		t.Errorf("response = %q", turn.AgentResponse)
	}
	if c.Status() != models.ConvIdle {
		t.Errorf("status after turn = %s", c.Status())
	}
}

func TestConversationStateErrors(t *testing.T) {
	p := &scriptedProvider{responses: []*models.ProviderResponse{textTurn("ok", 1, 1)}}
	c := newTestConversation(t, p)

	if err := c.Answer("nobody asked"); !errors.Is(err, ErrNotWaiting) {
		t.Errorf("Answer while idle = %v, want ErrNotWaiting", err)
	}

	if _, err := c.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if _, err := c.Send(context.Background(), "hello?"); !errors.Is(err, ErrConversationEnded) {
		t.Errorf("Send after end = %v, want ErrConversationEnded", err)
	}
	if _, err := c.End(); !errors.Is(err, ErrConversationEnded) {
		t.Errorf("second End = %v, want ErrConversationEnded", err)
	}
}
