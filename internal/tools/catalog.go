package tools

import (
	"encoding/json"

	"github.com/draftsmith-ai/draftsmith/internal/prompt"
	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

// Tool names. The LLM relies on these exact strings.
const (
	ToolReadFile       = "read_file"
	ToolWriteFile      = "write_file"
	ToolEditFile       = "edit_file"
	ToolListFiles      = "list_files"
	ToolGlobPattern    = "glob_pattern"
	ToolBashCommand    = "bash_command"
	ToolExecuteCommand = "execute_command"
	ToolAskUser        = "ask_user"
	ToolInvokeAgent    = "invoke_agent"
)

// catalogEntry pairs a tool declaration with its prompt documentation and
// input schema source.
type catalogEntry struct {
	name        string
	description string
	schema      string
	parameters  string
	example     string
}

var catalog = []catalogEntry{
	{
		name:        ToolReadFile,
		description: "Read the content of a file in the workspace.",
		schema: `{
			"type": "object",
			"properties": {
				"file_path": {"type": "string", "description": "Absolute path of the file to read"}
			},
			"required": ["file_path"]
		}`,
		parameters: `{"file_path": "absolute path"}`,
		example:    `read_file({"file_path": "/docs/prd.md"})`,
	},
	{
		name:        ToolWriteFile,
		description: "Write content to a file, creating it or overwriting any existing content.",
		schema: `{
			"type": "object",
			"properties": {
				"file_path": {"type": "string", "description": "Absolute path of the file to write"},
				"content": {"type": "string", "description": "Full file content"}
			},
			"required": ["file_path", "content"]
		}`,
		parameters: `{"file_path": "absolute path", "content": "file content"}`,
		example:    `write_file({"file_path": "/docs/prd.md", "content": "# PRD\n..."})`,
	},
	{
		name:        ToolEditFile,
		description: "Replace a unique string in an existing file. The old string must occur exactly once; read the file first to find it.",
		schema: `{
			"type": "object",
			"properties": {
				"file_path": {"type": "string", "description": "Absolute path of the file to edit"},
				"old_string": {"type": "string", "description": "Exact text to replace; must be unique in the file"},
				"new_string": {"type": "string", "description": "Replacement text"}
			},
			"required": ["file_path", "old_string", "new_string"]
		}`,
		parameters: `{"file_path": "absolute path", "old_string": "unique text", "new_string": "replacement"}`,
		example:    `edit_file({"file_path": "/docs/prd.md", "old_string": "Draft", "new_string": "Final"})`,
	},
	{
		name:        ToolListFiles,
		description: "List the direct children of a directory.",
		schema: `{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Absolute directory path"}
			},
			"required": ["path"]
		}`,
		parameters: `{"path": "absolute directory path"}`,
		example:    `list_files({"path": "/docs"})`,
	},
	{
		name:        ToolGlobPattern,
		description: "Find files matching a glob pattern (*, **, ?, [...]). Results are sorted.",
		schema: `{
			"type": "object",
			"properties": {
				"pattern": {"type": "string", "description": "Glob pattern, absolute or relative to path"},
				"path": {"type": "string", "description": "Base path for relative patterns (default /)"}
			},
			"required": ["pattern"]
		}`,
		parameters: `{"pattern": "glob pattern", "path": "optional base path"}`,
		example:    `glob_pattern({"pattern": "/.bmad-core/agents/*.md"})`,
	},
	{
		name:        ToolBashCommand,
		description: "Run a restricted shell command against the workspace. Supports only: mkdir [-p] PATH, ls [PATH], pwd, echo ARGS...",
		schema: `{
			"type": "object",
			"properties": {
				"command": {"type": "string", "description": "The command line to run"},
				"description": {"type": "string", "description": "What the command is for"}
			},
			"required": ["command"]
		}`,
		parameters: `{"command": "command line", "description": "optional purpose"}`,
		example:    `bash_command({"command": "mkdir -p /docs/research"})`,
	},
	{
		name:        ToolExecuteCommand,
		description: "Run a whitelisted external command on the host (document converters, typesetters). Arguments are passed as a vector; no shell.",
		schema: `{
			"type": "object",
			"properties": {
				"command": {"type": "string", "description": "Whitelisted command name"},
				"args": {"type": "array", "items": {"type": "string"}, "description": "Argument vector"},
				"working_directory": {"type": "string", "description": "Directory to run in; created if missing"}
			},
			"required": ["command"]
		}`,
		parameters: `{"command": "name", "args": ["..."], "working_directory": "optional path"}`,
		example:    `execute_command({"command": "pandoc", "args": ["prd.md", "-o", "prd.pdf"], "working_directory": "/tmp/out"})`,
	},
	{
		name:        ToolAskUser,
		description: "Ask the user a question and wait for the answer. Use when requirements are unclear.",
		schema: `{
			"type": "object",
			"properties": {
				"question": {"type": "string", "description": "The question to ask"},
				"context": {"type": "string", "description": "Why the answer is needed"}
			},
			"required": ["question"]
		}`,
		parameters: `{"question": "text", "context": "optional background"}`,
		example:    `ask_user({"question": "Which database should the design target?"})`,
	},
	{
		name:        ToolInvokeAgent,
		description: "Delegate a command to another agent. The sub-agent runs to completion and its documents merge into this workspace.",
		schema: `{
			"type": "object",
			"properties": {
				"agent_id": {"type": "string", "description": "Id of the agent to invoke"},
				"command": {"type": "string", "description": "Command for the sub-agent"},
				"context": {"type": "object", "description": "Extra context passed to the sub-agent"}
			},
			"required": ["agent_id", "command"]
		}`,
		parameters: `{"agent_id": "id", "command": "command", "context": "optional object"}`,
		example:    `invoke_agent({"agent_id": "pm", "command": "create-prd"})`,
	},
}

// Catalog returns the tool declarations sent to the provider.
func Catalog() []models.Tool {
	out := make([]models.Tool, len(catalog))
	for i, entry := range catalog {
		out[i] = models.Tool{
			Name:        entry.name,
			Description: entry.description,
			InputSchema: json.RawMessage(entry.schema),
		}
	}
	return out
}

// Docs returns the prompt documentation for the Available Tools section.
func Docs() []prompt.ToolDoc {
	out := make([]prompt.ToolDoc, len(catalog))
	for i, entry := range catalog {
		out[i] = prompt.ToolDoc{
			Name:        entry.name,
			Description: entry.description,
			Parameters:  entry.parameters,
			Example:     entry.example,
		}
	}
	return out
}
