// Package session implements the engine that drives an LLM through a
// tool-using dialogue to a terminal state: the one-shot session that
// executes a single command to completion, and the conversational session
// that preserves state across user turns.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/draftsmith-ai/draftsmith/internal/agentdef"
	"github.com/draftsmith-ai/draftsmith/internal/costs"
	"github.com/draftsmith-ai/draftsmith/internal/observability"
	"github.com/draftsmith-ai/draftsmith/internal/prompt"
	"github.com/draftsmith-ai/draftsmith/internal/provider"
	"github.com/draftsmith-ai/draftsmith/internal/storage"
	"github.com/draftsmith-ai/draftsmith/internal/tools"
	"github.com/draftsmith-ai/draftsmith/internal/vfs"
	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

// maxLoopIterations bounds the tool-call loop. A session whose LLM keeps
// requesting tools fails with a *LoopBoundError once the bound is exhausted.
const maxLoopIterations = 50

// LoopBoundError reports a tool-call loop that never reached a terminal
// stop reason.
type LoopBoundError struct {
	Iterations int
}

func (e *LoopBoundError) Error() string {
	return fmt.Sprintf("tool-call loop exceeded %d iterations without completing", e.Iterations)
}

// ErrNoPendingQuestion is returned by Answer when the session is not
// waiting on an ask_user call.
var ErrNoPendingQuestion = errors.New("no pending question to answer")

// agentDefinitionPath matches VFS entries that hold agent definitions.
// These are seeded for LLM self-discovery and are excluded from the
// session's document output.
var agentDefinitionPath = regexp.MustCompile(`^/\.bmad-[^/]+/agents/`)

// ChildFactory creates child sessions for invoke_agent. The client registry
// implements it.
type ChildFactory interface {
	NewChildSession(agentID, command string, opts models.SessionOptions) (*Session, error)
}

// Config wires a session's collaborators.
type Config struct {
	AgentID string
	Command string

	Provider provider.LLMProvider
	Loader   *agentdef.Loader

	// Storage enables auto-save and document persistence. Optional.
	Storage storage.Backend

	// Tools is the executor the session dispatches through. Required; the
	// session installs itself as the executor's host.
	Tools *tools.Executor

	// Children creates sub-agent sessions. Nil disables invoke_agent.
	Children ChildFactory

	// Metrics records provider usage and document persistence. Optional.
	Metrics *observability.Metrics

	Options models.SessionOptions
	Logger  *slog.Logger
}

// Session is a one-shot agent session: it executes a single command through
// the tool-call loop until the LLM stops, a limit trips, or an error ends
// it. All engine work happens on one flow; the mutex guards the fields the
// host may touch concurrently (status, pending question, answer channel).
type Session struct {
	id      string
	agentID string
	command string

	provider provider.LLMProvider
	loader   *agentdef.Loader
	store    storage.Backend
	tools    *tools.Executor
	fs       *vfs.FS
	tracker  *costs.Tracker
	children ChildFactory
	metrics  *observability.Metrics
	events   *Emitter
	logger   *slog.Logger
	opts     models.SessionOptions

	mu              sync.Mutex
	status          models.SessionStatus
	pendingQuestion *models.PendingQuestion
	answerCh        chan string

	createdAt   time.Time
	startedAt   *time.Time
	pausedAt    *time.Time
	completedAt *time.Time

	messages     []models.Message
	catalog      []models.Tool
	documentURLs []string
}

// New creates a pending session.
func New(cfg Config) (*Session, error) {
	if cfg.Provider == nil {
		return nil, errors.New("session: provider is required")
	}
	if cfg.Tools == nil {
		return nil, errors.New("session: tool executor is required")
	}
	if cfg.Loader == nil {
		return nil, errors.New("session: agent loader is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := "sess_" + uuid.NewString()
	s := &Session{
		id:        id,
		agentID:   cfg.AgentID,
		command:   cfg.Command,
		provider:  cfg.Provider,
		loader:    cfg.Loader,
		store:     cfg.Storage,
		tools:     cfg.Tools,
		fs:        cfg.Tools.FS(),
		tracker:   costs.New(cfg.Provider),
		children:  cfg.Children,
		metrics:   cfg.Metrics,
		events:    NewEmitter(id),
		logger:    logger.With("session_id", id, "agent_id", cfg.AgentID),
		opts:      cfg.Options,
		status:    models.StatusPending,
		createdAt: time.Now(),
		catalog:   tools.Catalog(),
	}
	s.tools.SetHost(s)
	s.tracker.OnWarning(func(threshold, total, limit float64) {
		s.logger.Warn("cost warning threshold crossed",
			"threshold", threshold, "total_cost", total, "cost_limit", limit)
		s.events.Emit(EventCostWarning, map[string]any{
			"threshold": threshold,
			"total":     total,
			"limit":     limit,
		})
	})
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// AgentID returns the agent the session runs as.
func (s *Session) AgentID() string { return s.agentID }

// Status returns the current lifecycle state.
func (s *Session) Status() models.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// PendingQuestion returns the question a paused session waits on, or nil.
func (s *Session) PendingQuestion() *models.PendingQuestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingQuestion
}

// Events returns the session's event emitter for host subscription.
func (s *Session) Events() *Emitter { return s.events }

// Costs returns a snapshot cost report.
func (s *Session) Costs() models.CostReport { return s.tracker.Report() }

// RemainingBudget returns what is left of the session's cost limit.
func (s *Session) RemainingBudget() float64 {
	return s.tracker.RemainingBudget(s.opts.CostLimit)
}

// Documents returns the session's current artifacts: every VFS entry except
// seeded agent definitions.
func (s *Session) Documents() []models.Document {
	return s.fs.Documents(func(path string) bool {
		return agentDefinitionPath.MatchString(path)
	})
}

// Execute runs the session to a terminal state. A SessionResult is always
// returned; engine-level failures are reported inside it, not as an error.
// Only a pending session executes: re-running would re-seed the messages
// and replay the loop, so a second call reports the current state instead.
// Follow-ups on a completed session go through ContinueWith.
func (s *Session) Execute(ctx context.Context) *models.SessionResult {
	start := time.Now()
	s.mu.Lock()
	if s.status != models.StatusPending {
		status := s.status
		s.mu.Unlock()
		return &models.SessionResult{
			SessionID:     s.id,
			Status:        status,
			FinalResponse: s.finalResponse(),
			Documents:     s.Documents(),
			Costs:         s.tracker.Report(),
			Error:         fmt.Sprintf("execute requires a pending session, status is %s", status),
		}
	}
	s.status = models.StatusRunning
	s.mu.Unlock()

	now := time.Now()
	s.startedAt = &now
	s.events.Emit(EventStarted, map[string]any{"command": s.command})
	s.logger.Info("session started", "command", s.command)

	if err := s.initialize(); err != nil {
		return s.fail(ctx, start, err)
	}
	if err := s.runLoop(ctx); err != nil {
		return s.fail(ctx, start, err)
	}
	return s.complete(ctx, start)
}

// ContinueWith resumes a completed session with a follow-up user message
// and re-runs the tool-call loop. Only valid on completed sessions.
func (s *Session) ContinueWith(ctx context.Context, message string) (*models.SessionResult, error) {
	s.mu.Lock()
	if s.status != models.StatusCompleted {
		status := s.status
		s.mu.Unlock()
		return nil, fmt.Errorf("continue requires a completed session, status is %s", status)
	}
	s.status = models.StatusRunning
	s.completedAt = nil
	s.mu.Unlock()

	start := time.Now()
	s.messages = append(s.messages, models.TextMessage(models.RoleUser, message))

	if err := s.runLoop(ctx); err != nil {
		return s.fail(ctx, start, err), nil
	}
	return s.complete(ctx, start), nil
}

// initialize resolves the agent, seeds the VFS with discovered agent files,
// and builds the opening messages.
func (s *Session) initialize() error {
	def, err := s.loader.Load(s.agentID)
	if err != nil {
		return err
	}

	// Seed agent markdown for self-discovery; later entries overwrite
	// earlier ones at identical paths, local definitions last.
	for _, file := range s.loader.DiscoverFiles() {
		if err := s.fs.Write(file.VFSPath, file.Content); err != nil {
			return err
		}
	}

	system := prompt.Compose(def, tools.Docs())
	s.messages = []models.Message{
		models.TextMessage(models.RoleSystem, system),
		models.TextMessage(models.RoleUser, fmt.Sprintf("Execute command: %s", s.command)),
	}
	return nil
}

// runLoop drives provider turns until a terminal stop reason, a tripped
// limit, or the iteration bound.
func (s *Session) runLoop(ctx context.Context) error {
	sendOpts := &provider.SendOptions{MaxOutputTokens: s.opts.MaxOutputTokens}
	modelName := s.provider.ModelInfo().Name

	for i := 0; i < maxLoopIterations; i++ {
		response, err := s.provider.SendMessage(ctx, s.messages, s.catalog, sendOpts)
		if err != nil {
			return err
		}

		s.tracker.RecordUsage(response.Usage, modelName)
		s.metrics.RecordLLMRequest(s.provider.Name(), modelName,
			response.Usage.InputTokens, response.Usage.OutputTokens,
			s.provider.CalculateCost(response.Usage))
		s.autoSave(ctx)
		s.messages = append(s.messages, response.Message)

		switch response.StopReason {
		case models.StopEndTurn, models.StopStopSequence:
			return nil
		case models.StopMaxTokens:
			s.logger.Warn("provider stopped at max output tokens", "iteration", i)
			return nil
		case models.StopToolUse:
			if err := s.serviceToolCalls(ctx, response.Message); err != nil {
				return err
			}
		default:
			s.logger.Warn("unexpected stop reason", "stop_reason", response.StopReason)
			return nil
		}
	}
	return &LoopBoundError{Iterations: maxLoopIterations}
}

// serviceToolCalls executes every tool_use block of one assistant message
// in declared order and appends the results as a single user message, then
// enforces the cost limit.
func (s *Session) serviceToolCalls(ctx context.Context, assistant models.Message) error {
	uses := assistant.ToolUses()
	results := make([]models.ContentBlock, 0, len(uses))
	for _, use := range uses {
		result := s.tools.Execute(ctx, models.ToolCall{
			ID:    use.ID,
			Name:  use.Name,
			Input: use.Input,
		})
		if !result.Success {
			s.logger.Debug("tool call failed", "tool", use.Name, "error", result.Error)
		}
		results = append(results, models.ToolResultBlock(use.ID, result.Output(), !result.Success))
	}
	s.messages = append(s.messages, models.BlockMessage(models.RoleUser, results...))

	return s.tracker.Enforce(s.opts.CostLimit)
}

// RequestUserAnswer implements the ask_user capability: it pauses the
// session and blocks on a single-shot channel until the host answers.
func (s *Session) RequestUserAnswer(ctx context.Context, question, questionContext string) (string, error) {
	ch := make(chan string, 1)
	now := time.Now()

	s.mu.Lock()
	s.pendingQuestion = &models.PendingQuestion{Question: question, Context: questionContext}
	s.answerCh = ch
	s.status = models.StatusPaused
	s.pausedAt = &now
	s.mu.Unlock()

	s.events.Emit(EventQuestion, map[string]any{
		"question": question,
		"context":  questionContext,
	})
	s.logger.Info("session paused on question", "question", question)

	select {
	case answer := <-ch:
		s.mu.Lock()
		s.pendingQuestion = nil
		s.answerCh = nil
		s.status = models.StatusRunning
		s.mu.Unlock()

		s.events.Emit(EventResumed, nil)
		s.logger.Info("session resumed")
		return answer, nil
	case <-ctx.Done():
		// The question is unanswerable once the context is gone; clear the
		// pause so serialized state never carries a dangling question.
		s.mu.Lock()
		s.pendingQuestion = nil
		s.answerCh = nil
		s.status = models.StatusRunning
		s.mu.Unlock()
		s.logger.Warn("question cancelled", "question", question, "error", ctx.Err())
		return "", ctx.Err()
	}
}

// Answer fulfils the pending ask_user question. Fails with
// ErrNoPendingQuestion when the session is not paused on one.
func (s *Session) Answer(text string) error {
	s.mu.Lock()
	ch := s.answerCh
	pending := s.pendingQuestion
	s.mu.Unlock()

	if pending == nil || ch == nil {
		return ErrNoPendingQuestion
	}
	ch <- text
	return nil
}

// InvokeAgent implements the invoke_agent capability: it runs a child
// session to completion, credits its costs, and merges its documents into
// this session's VFS before returning the summary.
func (s *Session) InvokeAgent(ctx context.Context, agentID, command string, extra map[string]any) (json.RawMessage, error) {
	if s.children == nil {
		return nil, errors.New("sub-agent invocation is not available")
	}

	childContext := make(map[string]any, len(s.opts.Context)+len(extra)+2)
	for k, v := range s.opts.Context {
		childContext[k] = v
	}
	for k, v := range extra {
		childContext[k] = v
	}
	childContext["parent_session_id"] = s.id
	childContext["is_sub_agent"] = true

	childOpts := models.SessionOptions{
		Context:         childContext,
		AutoSave:        s.opts.AutoSave,
		MaxOutputTokens: s.opts.MaxOutputTokens,
	}
	if s.opts.CostLimit > 0 {
		childOpts.CostLimit = s.RemainingBudget()
	}

	child, err := s.children.NewChildSession(agentID, command, childOpts)
	if err != nil {
		return nil, err
	}
	s.logger.Info("invoking sub-agent", "child_session_id", child.ID(), "child_agent_id", agentID, "command", command)

	result := child.Execute(ctx)
	if result.Status != models.StatusCompleted {
		return nil, fmt.Errorf("sub-agent %s failed: %s", agentID, result.Error)
	}

	s.tracker.AddChildCost(models.ChildSessionCost{
		SessionID:    child.ID(),
		Agent:        agentID,
		Command:      command,
		TotalCost:    result.Costs.TotalCost,
		InputTokens:  result.Costs.InputTokens,
		OutputTokens: result.Costs.OutputTokens,
		APICalls:     result.Costs.APICalls,
	})

	// The merge completes before the tool result returns to the loop.
	docSummaries := make([]map[string]any, 0, len(result.Documents))
	for _, doc := range result.Documents {
		if err := s.fs.Write(doc.Path, doc.Content); err != nil {
			return nil, fmt.Errorf("merge sub-agent document %s: %w", doc.Path, err)
		}
		docSummaries = append(docSummaries, map[string]any{
			"path": doc.Path,
			"size": len(doc.Content),
		})
	}

	summary := map[string]any{
		"status":    string(result.Status),
		"agent":     agentID,
		"command":   command,
		"documents": docSummaries,
		"costs": map[string]any{
			"totalCost":    result.Costs.TotalCost,
			"inputTokens":  result.Costs.InputTokens,
			"outputTokens": result.Costs.OutputTokens,
			"apiCalls":     result.Costs.APICalls,
		},
		"duration": result.Duration.String(),
	}
	encoded, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("encode sub-agent summary: %w", err)
	}
	return encoded, nil
}

func (s *Session) setStatus(status models.SessionStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// finalResponse is the last assistant message's concatenated text blocks.
func (s *Session) finalResponse() string {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == models.RoleAssistant {
			return s.messages[i].Text()
		}
	}
	return ""
}

func (s *Session) complete(ctx context.Context, start time.Time) *models.SessionResult {
	now := time.Now()
	s.mu.Lock()
	s.status = models.StatusCompleted
	s.completedAt = &now
	s.mu.Unlock()

	documents := s.Documents()
	s.persistDocuments(ctx, documents)
	s.autoSave(ctx)

	report := s.tracker.Report()
	s.events.Emit(EventCompleted, map[string]any{
		"documents":  len(documents),
		"total_cost": report.TotalCost,
	})
	s.logger.Info("session completed",
		"documents", len(documents),
		"total_cost", report.TotalCost,
		"api_calls", report.APICalls)

	return &models.SessionResult{
		SessionID:     s.id,
		Status:        models.StatusCompleted,
		FinalResponse: s.finalResponse(),
		Documents:     documents,
		Costs:         report,
		Duration:      time.Since(start),
		DocumentURLs:  s.documentURLs,
	}
}

func (s *Session) fail(ctx context.Context, start time.Time, cause error) *models.SessionResult {
	now := time.Now()
	s.mu.Lock()
	s.status = models.StatusFailed
	s.completedAt = &now
	s.mu.Unlock()

	s.autoSave(ctx)

	var limitErr *costs.CostLimitError
	if errors.As(cause, &limitErr) {
		s.events.Emit(EventCostLimitExceeded, map[string]any{
			"limit": limitErr.Limit,
			"total": limitErr.Total,
		})
	}
	s.events.Emit(EventFailed, map[string]any{"error": cause.Error()})
	s.logger.Error("session failed", "error", cause)

	return &models.SessionResult{
		SessionID:     s.id,
		Status:        models.StatusFailed,
		FinalResponse: s.finalResponse(),
		Documents:     s.Documents(),
		Costs:         s.tracker.Report(),
		Duration:      time.Since(start),
		Error:         cause.Error(),
	}
}

// persistDocuments saves the session's artifacts through storage and
// collects access URLs where the backend supports them.
func (s *Session) persistDocuments(ctx context.Context, documents []models.Document) {
	if s.store == nil || len(documents) == 0 {
		return
	}

	meta := storage.Metadata{
		SessionID: s.id,
		AgentID:   s.agentID,
		Command:   s.command,
		Timestamp: time.Now(),
	}
	results, err := s.store.SaveBatch(ctx, documents, meta)
	if err != nil {
		s.logger.Error("persist documents failed", "error", err)
		return
	}
	s.metrics.DocumentsPersisted(len(results))
	for _, result := range results {
		url, err := s.store.GetURL(ctx, result.Path, 0)
		if err != nil {
			if !errors.Is(err, storage.ErrURLsNotSupported) {
				s.logger.Warn("document URL unavailable", "path", result.Path, "error", err)
			}
			continue
		}
		s.documentURLs = append(s.documentURLs, url)
	}
}

// autoSave snapshots session state to storage. Failures are logged, never
// fatal.
func (s *Session) autoSave(ctx context.Context) {
	if !s.opts.AutoSave || s.store == nil {
		return
	}
	if err := s.store.SaveSessionState(ctx, s.Serialize()); err != nil {
		s.logger.Error("auto-save failed", "error", err)
	}
}

// interactionText joins the text of assistant messages appended after the
// given message index. Used by the conversational driver.
func (s *Session) interactionText(fromIndex int) string {
	var parts []string
	for _, msg := range s.messages[fromIndex:] {
		if msg.Role == models.RoleAssistant {
			if text := msg.Text(); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "\n")
}
