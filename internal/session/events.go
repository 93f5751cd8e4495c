package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType identifies a session lifecycle event.
type EventType string

const (
	EventStarted           EventType = "started"
	EventQuestion          EventType = "question"
	EventResumed           EventType = "resumed"
	EventCompleted         EventType = "completed"
	EventFailed            EventType = "failed"
	EventMessage           EventType = "message"
	EventCostWarning       EventType = "cost-warning"
	EventCostLimitExceeded EventType = "cost-limit-exceeded"
)

// Event is a host-observable session notification. Events supplement the
// returned SessionResult; they never replace it.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id"`
	Time      time.Time      `json:"time"`
	Sequence  uint64         `json:"sequence"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// EventHandler observes session events. Handlers run synchronously on the
// session's flow and should return quickly.
type EventHandler func(Event)

// Emitter dispatches session events to subscribed handlers with monotonic
// sequencing.
type Emitter struct {
	sessionID string
	sequence  uint64

	mu       sync.RWMutex
	handlers []EventHandler
}

// NewEmitter creates an emitter for one session.
func NewEmitter(sessionID string) *Emitter {
	return &Emitter{sessionID: sessionID}
}

// Subscribe registers a handler for all subsequent events.
func (e *Emitter) Subscribe(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
}

// Emit dispatches one event to every handler.
func (e *Emitter) Emit(eventType EventType, payload map[string]any) {
	event := Event{
		Type:      eventType,
		SessionID: e.sessionID,
		Time:      time.Now(),
		Sequence:  atomic.AddUint64(&e.sequence, 1),
		Payload:   payload,
	}

	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}
