// Package client is the host-facing entry point of the runtime. A Client
// owns the long-lived collaborators (provider, storage, agent loader,
// command runner) and builds sessions on demand, each with its own virtual
// filesystem and tool executor. It also serves as the child-session factory
// for sub-agent invocation.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/draftsmith-ai/draftsmith/internal/agentdef"
	"github.com/draftsmith-ai/draftsmith/internal/exec"
	"github.com/draftsmith-ai/draftsmith/internal/observability"
	"github.com/draftsmith-ai/draftsmith/internal/provider"
	"github.com/draftsmith-ai/draftsmith/internal/session"
	"github.com/draftsmith-ai/draftsmith/internal/storage"
	"github.com/draftsmith-ai/draftsmith/internal/tools"
	"github.com/draftsmith-ai/draftsmith/internal/vfs"
	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

// Options configures a Client.
type Options struct {
	// Provider is the LLM backend. Required.
	Provider provider.LLMProvider

	// Storage persists documents and session state. Optional; without it
	// sessions run fully in memory.
	Storage storage.Backend

	// Loader resolves agent definitions. Required.
	Loader *agentdef.Loader

	// Runner enables the execute_command tool. Nil leaves it disabled.
	Runner *exec.Executor

	// Metrics records runtime metrics. Optional.
	Metrics *observability.Metrics

	Logger *slog.Logger
}

// Client builds and tracks sessions. Safe for concurrent use.
type Client struct {
	provider provider.LLMProvider
	store    storage.Backend
	loader   *agentdef.Loader
	runner   *exec.Executor
	metrics  *observability.Metrics
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session.Session
	closed   bool
}

// New validates the options and returns a ready client.
func New(opts Options) (*Client, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("client: provider is required")
	}
	if opts.Loader == nil {
		return nil, fmt.Errorf("client: agent loader is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		provider: opts.Provider,
		store:    opts.Storage,
		loader:   opts.Loader,
		runner:   opts.Runner,
		metrics:  opts.Metrics,
		logger:   logger,
		sessions: make(map[string]*session.Session),
	}, nil
}

// NewSession creates a one-shot session for the given agent and command.
// Each session gets a private VFS and tool executor.
func (c *Client) NewSession(agentID, command string, opts models.SessionOptions) (*session.Session, error) {
	sess, err := c.buildSession(agentID, command, opts)
	if err != nil {
		return nil, err
	}
	c.track(sess)
	c.instrument(sess, agentID, command)
	return sess, nil
}

// NewConversation creates a multi-turn conversational session.
func (c *Client) NewConversation(agentID string, opts models.SessionOptions) (*session.Conversational, error) {
	cfg, err := c.sessionConfig(agentID, "chat", opts)
	if err != nil {
		return nil, err
	}
	return session.NewConversational(cfg)
}

// NewChildSession implements session.ChildFactory. Child sessions share the
// client's provider, loader, and storage but get their own VFS, so parent
// documents merge back only on success.
func (c *Client) NewChildSession(agentID, command string, opts models.SessionOptions) (*session.Session, error) {
	sess, err := c.buildSession(agentID, command, opts)
	if err != nil {
		return nil, err
	}
	c.track(sess)
	c.instrument(sess, agentID, command)
	return sess, nil
}

// ResumeSession reconstructs a session from persisted state. Requires a
// storage backend.
func (c *Client) ResumeSession(ctx context.Context, sessionID string) (*session.Session, error) {
	if c.store == nil {
		return nil, fmt.Errorf("resume %s: no storage backend configured", sessionID)
	}
	state, err := c.store.LoadSessionState(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("resume %s: %w", sessionID, err)
	}

	cfg, err := c.sessionConfig(state.AgentID, state.Command, state.Options)
	if err != nil {
		return nil, err
	}
	sess, err := session.Deserialize(cfg, state)
	if err != nil {
		return nil, fmt.Errorf("resume %s: %w", sessionID, err)
	}
	c.track(sess)
	c.logger.Info("session resumed from storage", "session_id", sessionID, "status", sess.Status())
	return sess, nil
}

// GetSession returns a tracked session by id.
func (c *Client) GetSession(id string) (*session.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[id]
	return sess, ok
}

// ListSessions queries persisted session state from storage.
func (c *Client) ListSessions(ctx context.Context, opts storage.SessionQueryOptions) (*storage.SessionListResult, error) {
	if c.store == nil {
		return &storage.SessionListResult{}, nil
	}
	return c.store.ListSessions(ctx, opts)
}

// LoadSessionState returns the persisted state of a session.
func (c *Client) LoadSessionState(ctx context.Context, id string) (*models.SessionState, error) {
	if c.store == nil {
		return nil, fmt.Errorf("load %s: no storage backend configured", id)
	}
	return c.store.LoadSessionState(ctx, id)
}

// DeleteSessionState removes persisted session state; false when absent.
func (c *Client) DeleteSessionState(ctx context.Context, id string) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	return c.store.DeleteSession(ctx, id)
}

// Close releases the storage backend. Sessions already running keep their
// references; new sessions are refused.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.store != nil {
		return c.store.Close(context.Background())
	}
	return nil
}

func (c *Client) buildSession(agentID, command string, opts models.SessionOptions) (*session.Session, error) {
	cfg, err := c.sessionConfig(agentID, command, opts)
	if err != nil {
		return nil, err
	}
	return session.New(cfg)
}

func (c *Client) sessionConfig(agentID, command string, opts models.SessionOptions) (session.Config, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return session.Config{}, fmt.Errorf("client is closed")
	}

	executor, err := tools.New(tools.Options{
		FS:      vfs.New(),
		Runner:  c.runner,
		Metrics: c.metrics,
		Logger:  c.logger,
	})
	if err != nil {
		return session.Config{}, err
	}

	return session.Config{
		AgentID:  agentID,
		Command:  command,
		Provider: c.provider,
		Loader:   c.loader,
		Storage:  c.store,
		Tools:    executor,
		Children: c,
		Metrics:  c.metrics,
		Options:  opts,
		Logger:   c.logger,
	}, nil
}

func (c *Client) track(sess *session.Session) {
	c.mu.Lock()
	c.sessions[sess.ID()] = sess
	c.mu.Unlock()
}

// instrument mirrors session events into Prometheus metrics.
func (c *Client) instrument(sess *session.Session, agentID, command string) {
	if c.metrics == nil {
		return
	}
	var start time.Time
	sess.Events().Subscribe(func(event session.Event) {
		switch event.Type {
		case session.EventStarted:
			start = event.Time
			c.metrics.SessionStarted(agentID, command)
		case session.EventCompleted:
			c.metrics.SessionEnded(agentID, "completed", event.Time.Sub(start))
		case session.EventFailed:
			c.metrics.SessionEnded(agentID, "failed", event.Time.Sub(start))
		}
	})
}
