// Package tools exposes the fixed tool catalog to the LLM and dispatches
// tool calls against the session's virtual filesystem, the external command
// executor, and the session host.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/draftsmith-ai/draftsmith/internal/exec"
	"github.com/draftsmith-ai/draftsmith/internal/observability"
	"github.com/draftsmith-ai/draftsmith/internal/vfs"
	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

// Host is the capability the executor needs from its enclosing session:
// pausing for a user answer and delegating to a sub-agent. It is injected
// after construction to keep the dependency acyclic at the type level.
type Host interface {
	// RequestUserAnswer suspends until the host supplies an answer.
	RequestUserAnswer(ctx context.Context, question, questionContext string) (string, error)

	// InvokeAgent runs a child session to completion and returns the
	// structured JSON summary for the tool result.
	InvokeAgent(ctx context.Context, agentID, command string, extra map[string]any) (json.RawMessage, error)
}

// Options configures an Executor.
type Options struct {
	FS *vfs.FS

	// Runner backs execute_command. Nil disables the tool.
	Runner *exec.Executor

	// Metrics records per-tool execution counts and latency. Optional.
	Metrics *observability.Metrics

	Logger *slog.Logger
}

// Executor dispatches tool calls by name and returns uniform results. Tools
// run sequentially within a provider turn; there is no intra-turn
// parallelism.
type Executor struct {
	fs      *vfs.FS
	runner  *exec.Executor
	host    Host
	metrics *observability.Metrics
	logger  *slog.Logger
	schemas map[string]*jsonschema.Schema
}

// New creates an executor over the given filesystem.
func New(opts Options) (*Executor, error) {
	if opts.FS == nil {
		return nil, fmt.Errorf("tools: filesystem is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	schemas := make(map[string]*jsonschema.Schema, len(catalog))
	for _, entry := range catalog {
		compiler := jsonschema.NewCompiler()
		url := entry.name + ".schema.json"
		if err := compiler.AddResource(url, strings.NewReader(entry.schema)); err != nil {
			return nil, fmt.Errorf("tools: schema for %s: %w", entry.name, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("tools: schema for %s: %w", entry.name, err)
		}
		schemas[entry.name] = schema
	}

	return &Executor{
		fs:      opts.FS,
		runner:  opts.Runner,
		metrics: opts.Metrics,
		logger:  logger,
		schemas: schemas,
	}, nil
}

// SetHost injects the session back-reference. Must be called before the
// first ask_user or invoke_agent dispatch.
func (e *Executor) SetHost(h Host) { e.host = h }

// FS returns the executor's filesystem.
func (e *Executor) FS() *vfs.FS { return e.fs }

// Execute dispatches one tool call. It never returns an error: failures are
// converted into Success=false results with a textual error string.
func (e *Executor) Execute(ctx context.Context, call models.ToolCall) models.ToolResult {
	start := time.Now()
	result := e.dispatch(ctx, call)
	e.metrics.RecordToolExecution(call.Name, result.Success, time.Since(start))
	return result
}

func (e *Executor) dispatch(ctx context.Context, call models.ToolCall) models.ToolResult {
	schema, ok := e.schemas[call.Name]
	if !ok {
		return fail("Unknown tool: %s", call.Name)
	}

	var decoded any
	input := call.Input
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(input, &decoded); err != nil {
		return fail("invalid tool input: %v", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fail("invalid input for %s: %v", call.Name, err)
	}

	e.logger.Debug("dispatching tool", "tool", call.Name, "call_id", call.ID)

	switch call.Name {
	case ToolReadFile:
		return e.readFile(input)
	case ToolWriteFile:
		return e.writeFile(input)
	case ToolEditFile:
		return e.editFile(input)
	case ToolListFiles:
		return e.listFiles(input)
	case ToolGlobPattern:
		return e.globPattern(input)
	case ToolBashCommand:
		return e.bashCommand(input)
	case ToolExecuteCommand:
		return e.executeCommand(ctx, input)
	case ToolAskUser:
		return e.askUser(ctx, input)
	case ToolInvokeAgent:
		return e.invokeAgent(ctx, input)
	}
	return fail("Unknown tool: %s", call.Name)
}

func fail(format string, args ...any) models.ToolResult {
	return models.ToolResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

func succeed(content string) models.ToolResult {
	return models.ToolResult{Success: true, Content: content}
}

func (e *Executor) readFile(input json.RawMessage) models.ToolResult {
	var in struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return fail("invalid input: %v", err)
	}
	content, err := e.fs.Read(in.FilePath)
	if err != nil {
		return fail("%v", err)
	}
	return succeed(content)
}

func (e *Executor) writeFile(input json.RawMessage) models.ToolResult {
	var in struct {
		FilePath string `json:"file_path"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return fail("invalid input: %v", err)
	}
	if err := e.fs.Write(in.FilePath, in.Content); err != nil {
		return fail("%v", err)
	}
	return models.ToolResult{
		Success:  true,
		Content:  fmt.Sprintf("Wrote %d bytes to %s", len(in.Content), in.FilePath),
		Metadata: map[string]any{"path": in.FilePath, "size": len(in.Content)},
	}
}

func (e *Executor) editFile(input json.RawMessage) models.ToolResult {
	var in struct {
		FilePath  string `json:"file_path"`
		OldString string `json:"old_string"`
		NewString string `json:"new_string"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return fail("invalid input: %v", err)
	}
	if err := e.fs.Edit(in.FilePath, in.OldString, in.NewString); err != nil {
		return fail("%v", err)
	}
	return succeed(fmt.Sprintf("Edited %s", in.FilePath))
}

func (e *Executor) listFiles(input json.RawMessage) models.ToolResult {
	var in struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return fail("invalid input: %v", err)
	}
	entries, err := e.fs.List(in.Path)
	if err != nil {
		return fail("%v", err)
	}
	if len(entries) == 0 {
		return succeed("(empty)")
	}
	var b strings.Builder
	for i, entry := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		if entry.IsDir {
			fmt.Fprintf(&b, "%s/", entry.Name)
		} else {
			fmt.Fprintf(&b, "%s (%d bytes)", entry.Name, entry.Size)
		}
	}
	return succeed(b.String())
}

func (e *Executor) globPattern(input json.RawMessage) models.ToolResult {
	var in struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return fail("invalid input: %v", err)
	}
	matches, err := e.fs.Glob(in.Pattern, in.Path)
	if err != nil {
		return fail("%v", err)
	}
	if len(matches) == 0 {
		return succeed("No files matched.")
	}
	return succeed(strings.Join(matches, "\n"))
}

func (e *Executor) executeCommand(ctx context.Context, input json.RawMessage) models.ToolResult {
	if e.runner == nil {
		return fail("execute_command is not available: no command executor is configured")
	}
	var in struct {
		Command          string   `json:"command"`
		Args             []string `json:"args"`
		WorkingDirectory string   `json:"working_directory"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return fail("invalid input: %v", err)
	}

	result, err := e.runner.Execute(ctx, in.Command, in.Args, in.WorkingDirectory)
	if err != nil {
		return fail("%v", err)
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return fail("encode result: %v", err)
	}
	return models.ToolResult{
		Success: result.Success,
		Content: string(encoded),
		Error:   result.Error,
	}
}

func (e *Executor) askUser(ctx context.Context, input json.RawMessage) models.ToolResult {
	if e.host == nil {
		return fail("ask_user is not available: no session host is attached")
	}
	var in struct {
		Question string `json:"question"`
		Context  string `json:"context"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return fail("invalid input: %v", err)
	}
	answer, err := e.host.RequestUserAnswer(ctx, in.Question, in.Context)
	if err != nil {
		return fail("%v", err)
	}
	return succeed(answer)
}

func (e *Executor) invokeAgent(ctx context.Context, input json.RawMessage) models.ToolResult {
	if e.host == nil {
		return fail("invoke_agent is not available: no session host is attached")
	}
	var in struct {
		AgentID string         `json:"agent_id"`
		Command string         `json:"command"`
		Context map[string]any `json:"context"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return fail("invalid input: %v", err)
	}
	summary, err := e.host.InvokeAgent(ctx, in.AgentID, in.Command, in.Context)
	if err != nil {
		return fail("%v", err)
	}
	return succeed(string(summary))
}
