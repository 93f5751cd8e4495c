package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/draftsmith-ai/draftsmith/internal/prompt"
	"github.com/draftsmith-ai/draftsmith/internal/tools"
	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

// State errors for the conversational driver. Session state is unchanged
// when these are returned.
var (
	ErrConversationBusy  = errors.New("conversation is processing; wait for the current turn")
	ErrConversationEnded = errors.New("conversation has ended")
	ErrNotWaiting        = errors.New("conversation is not waiting for an answer")
)

// Conversational is a multi-turn driver over the same engine: the system
// prompt is seeded once on the first send, and each send runs one tool-call
// loop while the accumulated messages, VFS, and costs carry across turns.
type Conversational struct {
	id   string
	sess *Session

	mu          sync.Mutex
	status      models.ConversationalStatus
	initialized bool
	turns       []models.TurnRecord
	startedAt   time.Time
}

// NewConversational creates an idle conversational session.
func NewConversational(cfg Config) (*Conversational, error) {
	sess, err := New(cfg)
	if err != nil {
		return nil, err
	}

	id := "conv_" + uuid.NewString()
	sess.id = id
	sess.events = NewEmitter(id)
	sess.logger = sess.logger.With("session_id", id)

	c := &Conversational{
		id:        id,
		sess:      sess,
		status:    models.ConvIdle,
		startedAt: time.Now(),
	}

	// Mirror the engine's pause/resume into conversational states.
	sess.events.Subscribe(func(event Event) {
		switch event.Type {
		case EventQuestion:
			c.setStatus(models.ConvWaitingForAnswer)
		case EventResumed:
			c.setStatus(models.ConvProcessing)
		}
	})
	return c, nil
}

// ID returns the conversation id.
func (c *Conversational) ID() string { return c.id }

// Status returns the conversational lifecycle state.
func (c *Conversational) Status() models.ConversationalStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Events returns the emitter shared with the underlying engine.
func (c *Conversational) Events() *Emitter { return c.sess.events }

func (c *Conversational) setStatus(status models.ConversationalStatus) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}

// Send runs one conversational turn. Valid only when idle.
func (c *Conversational) Send(ctx context.Context, message string) (*models.TurnRecord, error) {
	c.mu.Lock()
	switch c.status {
	case models.ConvProcessing, models.ConvWaitingForAnswer:
		c.mu.Unlock()
		return nil, ErrConversationBusy
	case models.ConvEnded:
		c.mu.Unlock()
		return nil, ErrConversationEnded
	}
	c.status = models.ConvProcessing
	c.mu.Unlock()

	if err := c.ensureInitialized(); err != nil {
		c.setStatus(models.ConvError)
		return nil, err
	}

	turnStart := time.Now()
	costBefore := c.sess.tracker.TotalCost()
	inBefore, outBefore, _ := c.sess.tracker.Totals()
	messageIndex := len(c.sess.messages)

	c.sess.messages = append(c.sess.messages, models.TextMessage(models.RoleUser, message))

	if err := c.sess.runLoop(ctx); err != nil {
		c.setStatus(models.ConvError)
		return nil, err
	}

	response := c.sess.interactionText(messageIndex)
	inAfter, outAfter, _ := c.sess.tracker.Totals()

	turn := models.TurnRecord{
		ID:            "turn_" + uuid.NewString(),
		UserMessage:   message,
		AgentResponse: response,
		ToolCalls:     c.toolCallNames(messageIndex),
		TokensUsed:    (inAfter - inBefore) + (outAfter - outBefore),
		Cost:          c.sess.tracker.TotalCost() - costBefore,
		Timestamp:     turnStart,
	}

	if response != "" {
		c.sess.events.Emit(EventMessage, map[string]any{"text": response})
	}
	// Proactive elicitation: a trailing question mark on the final text is
	// treated as a question for the host even without an ask_user call. The
	// host answers it with a regular Send, so the turn still ends idle.
	if isQuestion(response) {
		c.sess.events.Emit(EventQuestion, map[string]any{"question": response, "heuristic": true})
	}

	c.mu.Lock()
	c.turns = append(c.turns, turn)
	c.status = models.ConvIdle
	c.mu.Unlock()

	return &turn, nil
}

// Answer fulfils a pending ask_user question. Valid only while waiting.
func (c *Conversational) Answer(text string) error {
	c.mu.Lock()
	waiting := c.status == models.ConvWaitingForAnswer
	c.mu.Unlock()
	if !waiting {
		return ErrNotWaiting
	}
	return c.sess.Answer(text)
}

// End closes the conversation and returns its summary. Invalid while a
// turn is processing.
func (c *Conversational) End() (*models.ConversationResult, error) {
	c.mu.Lock()
	switch c.status {
	case models.ConvProcessing, models.ConvWaitingForAnswer:
		c.mu.Unlock()
		return nil, ErrConversationBusy
	case models.ConvEnded:
		c.mu.Unlock()
		return nil, ErrConversationEnded
	}
	c.status = models.ConvEnded
	turns := append([]models.TurnRecord(nil), c.turns...)
	c.mu.Unlock()

	return &models.ConversationResult{
		SessionID: c.id,
		Turns:     turns,
		Documents: c.sess.Documents(),
		Costs:     c.sess.tracker.Report(),
		Duration:  time.Since(c.startedAt),
	}, nil
}

// ensureInitialized seeds the system prompt on the first send.
func (c *Conversational) ensureInitialized() error {
	c.mu.Lock()
	done := c.initialized
	c.mu.Unlock()
	if done {
		return nil
	}

	def, err := c.sess.loader.Load(c.sess.agentID)
	if err != nil {
		return err
	}
	for _, file := range c.sess.loader.DiscoverFiles() {
		if err := c.sess.fs.Write(file.VFSPath, file.Content); err != nil {
			return err
		}
	}
	system := prompt.Compose(def, tools.Docs())
	c.sess.messages = []models.Message{models.TextMessage(models.RoleSystem, system)}

	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()
	return nil
}

// toolCallNames collects the tool names invoked after the given message
// index, as "name(id)" entries in execution order.
func (c *Conversational) toolCallNames(fromIndex int) []string {
	var names []string
	for _, msg := range c.sess.messages[fromIndex:] {
		if msg.Role != models.RoleAssistant {
			continue
		}
		for _, use := range msg.ToolUses() {
			names = append(names, fmt.Sprintf("%s(%s)", use.Name, use.ID))
		}
	}
	return names
}

// isQuestion is the trailing question-mark heuristic for proactive
// elicitation. ask_user remains the reliable channel; this only catches
// plain-text questions the LLM asks without the tool.
func isQuestion(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasSuffix(trimmed, "?") || strings.HasSuffix(trimmed, "？")
}
