package session

import (
	"github.com/draftsmith-ai/draftsmith/internal/costs"
	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

// Serialize snapshots the session as its wire state. Serializing an
// unchanged session twice yields byte-identical JSON encodings.
func (s *Session) Serialize() *models.SessionState {
	s.mu.Lock()
	status := s.status
	pending := s.pendingQuestion
	s.mu.Unlock()

	inputTokens, outputTokens, apiCalls := s.tracker.Totals()

	return &models.SessionState{
		ID:                s.id,
		AgentID:           s.agentID,
		Command:           s.command,
		Status:            status,
		CreatedAt:         s.createdAt,
		StartedAt:         s.startedAt,
		PausedAt:          s.pausedAt,
		CompletedAt:       s.completedAt,
		Messages:          append([]models.Message(nil), s.messages...),
		VFSFiles:          s.fs.Snapshot(),
		TotalInputTokens:  inputTokens,
		TotalOutputTokens: outputTokens,
		TotalCost:         s.tracker.TotalCost(),
		APICallCount:      apiCalls,
		ChildSessionCosts: s.tracker.Children(),
		PendingQuestion:   pending,
		Options:           s.opts,
		ProviderType:      s.provider.Name(),
		ModelName:         s.provider.ModelInfo().Name,
	}
}

// Deserialize reconstructs a session from its wire state using the given
// collaborators. The VFS is reinstalled from the snapshot and the cost
// tracker reloaded from the stored totals. A restored paused session is
// resumable once the host calls Answer; the pending tool call re-executes
// only through a fresh provider turn, so the engine re-enters the loop via
// ContinueWith or host-driven resumption.
func Deserialize(cfg Config, state *models.SessionState) (*Session, error) {
	s, err := New(cfg)
	if err != nil {
		return nil, err
	}

	s.id = state.ID
	s.agentID = state.AgentID
	s.command = state.Command
	s.status = state.Status
	s.createdAt = state.CreatedAt
	s.startedAt = state.StartedAt
	s.pausedAt = state.PausedAt
	s.completedAt = state.CompletedAt
	s.messages = append([]models.Message(nil), state.Messages...)
	s.pendingQuestion = state.PendingQuestion
	s.opts = state.Options
	s.events = NewEmitter(state.ID)
	s.logger = s.logger.With("restored", true)

	s.fs.Restore(state.VFSFiles)

	// Stored totals include child contributions; the tracker keeps its own
	// usage separate from the child list.
	ownInput := state.TotalInputTokens
	ownOutput := state.TotalOutputTokens
	ownCalls := state.APICallCount
	for _, child := range state.ChildSessionCosts {
		ownInput -= child.InputTokens
		ownOutput -= child.OutputTokens
		ownCalls -= child.APICalls
	}
	modelName := state.ModelName
	if modelName == "" {
		modelName = cfg.Provider.ModelInfo().Name
	}
	s.tracker = costs.New(cfg.Provider)
	s.tracker.RestoreTotals(modelName, ownInput, ownOutput, ownCalls, state.ChildSessionCosts)
	s.tracker.OnWarning(func(threshold, total, limit float64) {
		s.events.Emit(EventCostWarning, map[string]any{
			"threshold": threshold,
			"total":     total,
			"limit":     limit,
		})
	})

	return s, nil
}
