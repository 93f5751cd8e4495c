package tools

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/draftsmith-ai/draftsmith/internal/exec"
	"github.com/draftsmith-ai/draftsmith/internal/observability"
	"github.com/draftsmith-ai/draftsmith/internal/vfs"
	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

func newExecutor(t *testing.T, opts Options) *Executor {
	t.Helper()
	if opts.FS == nil {
		opts.FS = vfs.New()
	}
	e, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func call(name, input string) models.ToolCall {
	return models.ToolCall{ID: "toolu_test", Name: name, Input: json.RawMessage(input)}
}

func TestUnknownTool(t *testing.T) {
	e := newExecutor(t, Options{})
	result := e.Execute(context.Background(), call("launch_rocket", `{}`))
	if result.Success {
		t.Fatal("unknown tool must fail")
	}
	if !strings.Contains(result.Error, "Unknown tool") {
		t.Errorf("error = %q, want mention of Unknown tool", result.Error)
	}
}

func TestSchemaValidation(t *testing.T) {
	e := newExecutor(t, Options{})
	result := e.Execute(context.Background(), call(ToolReadFile, `{}`))
	if result.Success {
		t.Fatal("missing required field must fail validation")
	}
	if !strings.Contains(result.Error, "file_path") {
		t.Errorf("error = %q, want mention of file_path", result.Error)
	}
}

func TestWriteThenRead(t *testing.T) {
	e := newExecutor(t, Options{})
	ctx := context.Background()

	result := e.Execute(ctx, call(ToolWriteFile, `{"file_path": "/docs/prd.md", "content": "# PRD"}`))
	if !result.Success {
		t.Fatalf("write_file: %s", result.Error)
	}
	if result.Metadata["size"] != 5 {
		t.Errorf("metadata size = %v, want 5", result.Metadata["size"])
	}

	result = e.Execute(ctx, call(ToolReadFile, `{"file_path": "/docs/prd.md"}`))
	if !result.Success || result.Content != "# PRD" {
		t.Errorf("read_file = %+v, want content %q", result, "# PRD")
	}
}

func TestReadMissingFile(t *testing.T) {
	e := newExecutor(t, Options{})
	result := e.Execute(context.Background(), call(ToolReadFile, `{"file_path": "/missing.md"}`))
	if result.Success {
		t.Fatal("reading a missing file must fail")
	}
	if !strings.Contains(result.Error, "not found") {
		t.Errorf("error = %q, want mention of not found", result.Error)
	}
}

func TestRelativePathRejected(t *testing.T) {
	e := newExecutor(t, Options{})
	ctx := context.Background()

	for _, tc := range []struct{ tool, input string }{
		{ToolReadFile, `{"file_path": "docs/prd.md"}`},
		{ToolWriteFile, `{"file_path": "prd.md", "content": "x"}`},
		{ToolEditFile, `{"file_path": "prd.md", "old_string": "a", "new_string": "b"}`},
		{ToolListFiles, `{"path": "docs"}`},
	} {
		result := e.Execute(ctx, call(tc.tool, tc.input))
		if result.Success {
			t.Errorf("%s accepted a relative path", tc.tool)
			continue
		}
		if !strings.Contains(result.Error, "absolute") {
			t.Errorf("%s error = %q, want mention of absolute", tc.tool, result.Error)
		}
	}
}

func TestEditAmbiguity(t *testing.T) {
	fs := vfs.New()
	if err := fs.Write("/t.md", "test test test"); err != nil {
		t.Fatal(err)
	}
	e := newExecutor(t, Options{FS: fs})

	result := e.Execute(context.Background(),
		call(ToolEditFile, `{"file_path": "/t.md", "old_string": "test", "new_string": "x"}`))
	if result.Success {
		t.Fatal("ambiguous edit must fail")
	}
	if !strings.Contains(result.Error, "3") {
		t.Errorf("error = %q, want occurrence count 3", result.Error)
	}

	content, err := fs.Read("/t.md")
	if err != nil || content != "test test test" {
		t.Errorf("file changed by failed edit: %q", content)
	}
}

func TestGlobOrdering(t *testing.T) {
	fs := vfs.New()
	for _, path := range []string{"/a/b.md", "/a/aa.md", "/a/c.md"} {
		if err := fs.Write(path, "x"); err != nil {
			t.Fatal(err)
		}
	}
	e := newExecutor(t, Options{FS: fs})

	result := e.Execute(context.Background(), call(ToolGlobPattern, `{"pattern": "/a/*.md"}`))
	if !result.Success {
		t.Fatalf("glob_pattern: %s", result.Error)
	}
	want := "/a/aa.md\n/a/b.md\n/a/c.md"
	if result.Content != want {
		t.Errorf("glob = %q, want %q", result.Content, want)
	}
}

func TestListFilesFormat(t *testing.T) {
	fs := vfs.New()
	if err := fs.Write("/docs/prd.md", "# PRD"); err != nil {
		t.Fatal(err)
	}
	if err := fs.Write("/docs/research/notes.md", "n"); err != nil {
		t.Fatal(err)
	}
	e := newExecutor(t, Options{FS: fs})

	result := e.Execute(context.Background(), call(ToolListFiles, `{"path": "/docs"}`))
	if !result.Success {
		t.Fatalf("list_files: %s", result.Error)
	}
	lines := strings.Split(result.Content, "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	if lines[0] != "research/" {
		t.Errorf("directories first, got %q", lines[0])
	}
	if lines[1] != "prd.md (5 bytes)" {
		t.Errorf("file line = %q", lines[1])
	}
}

func TestBashCommands(t *testing.T) {
	e := newExecutor(t, Options{})
	ctx := context.Background()

	result := e.Execute(ctx, call(ToolBashCommand, `{"command": "mkdir -p /docs/research"}`))
	if !result.Success {
		t.Fatalf("mkdir: %s", result.Error)
	}

	result = e.Execute(ctx, call(ToolBashCommand, `{"command": "ls /docs"}`))
	if !result.Success || result.Content != "research/" {
		t.Errorf("ls = %+v, want research/", result)
	}

	result = e.Execute(ctx, call(ToolBashCommand, `{"command": "pwd"}`))
	if !result.Success || result.Content != "/" {
		t.Errorf("pwd = %+v, want /", result)
	}

	result = e.Execute(ctx, call(ToolBashCommand, `{"command": "echo hello   world"}`))
	if !result.Success || result.Content != "hello world" {
		t.Errorf("echo = %+v", result)
	}
}

func TestBashRejectsUnsupportedCommand(t *testing.T) {
	e := newExecutor(t, Options{})
	result := e.Execute(context.Background(), call(ToolBashCommand, `{"command": "rm -rf /"}`))
	if result.Success {
		t.Fatal("rm must be rejected")
	}
	if !strings.Contains(result.Error, "not allowed") {
		t.Errorf("error = %q, want mention of not allowed", result.Error)
	}
}

func TestExecuteCommandWithoutRunner(t *testing.T) {
	e := newExecutor(t, Options{})
	result := e.Execute(context.Background(), call(ToolExecuteCommand, `{"command": "echo"}`))
	if result.Success {
		t.Fatal("execute_command without a runner must fail")
	}
}

func TestExecuteCommandWithRunner(t *testing.T) {
	e := newExecutor(t, Options{Runner: exec.New(exec.Options{})})
	result := e.Execute(context.Background(),
		call(ToolExecuteCommand, `{"command": "echo", "args": ["hi"]}`))
	if !result.Success {
		t.Fatalf("execute_command: %s", result.Error)
	}
	var decoded exec.Result
	if err := json.Unmarshal([]byte(result.Content), &decoded); err != nil {
		t.Fatalf("content is not a JSON result: %v", err)
	}
	if strings.TrimSpace(decoded.Stdout) != "hi" {
		t.Errorf("stdout = %q", decoded.Stdout)
	}
}

func TestExecuteCommandNotWhitelisted(t *testing.T) {
	e := newExecutor(t, Options{Runner: exec.New(exec.Options{})})
	result := e.Execute(context.Background(), call(ToolExecuteCommand, `{"command": "rm"}`))
	if result.Success {
		t.Fatal("non-whitelisted command must fail")
	}
	if !strings.Contains(result.Error, "not allowed") {
		t.Errorf("error = %q, want mention of not allowed", result.Error)
	}
}

type stubHost struct {
	answer    string
	questions []string
	invoked   []string
	summary   json.RawMessage
}

func (h *stubHost) RequestUserAnswer(_ context.Context, question, _ string) (string, error) {
	h.questions = append(h.questions, question)
	return h.answer, nil
}

func (h *stubHost) InvokeAgent(_ context.Context, agentID, command string, _ map[string]any) (json.RawMessage, error) {
	h.invoked = append(h.invoked, agentID+":"+command)
	return h.summary, nil
}

func TestAskUser(t *testing.T) {
	e := newExecutor(t, Options{})
	host := &stubHost{answer: "Postgres"}
	e.SetHost(host)

	result := e.Execute(context.Background(), call(ToolAskUser, `{"question": "Which DB?"}`))
	if !result.Success || result.Content != "Postgres" {
		t.Errorf("ask_user = %+v", result)
	}
	if len(host.questions) != 1 || host.questions[0] != "Which DB?" {
		t.Errorf("questions = %v", host.questions)
	}
}

func TestAskUserWithoutHost(t *testing.T) {
	e := newExecutor(t, Options{})
	result := e.Execute(context.Background(), call(ToolAskUser, `{"question": "Q?"}`))
	if result.Success {
		t.Fatal("ask_user without host must fail")
	}
}

func TestInvokeAgent(t *testing.T) {
	e := newExecutor(t, Options{})
	host := &stubHost{summary: json.RawMessage(`{"status":"completed","agent":"pm"}`)}
	e.SetHost(host)

	result := e.Execute(context.Background(),
		call(ToolInvokeAgent, `{"agent_id": "pm", "command": "create-prd"}`))
	if !result.Success {
		t.Fatalf("invoke_agent: %s", result.Error)
	}
	if !strings.Contains(result.Content, `"status":"completed"`) {
		t.Errorf("content = %q", result.Content)
	}
	if len(host.invoked) != 1 || host.invoked[0] != "pm:create-prd" {
		t.Errorf("invoked = %v", host.invoked)
	}
}

func TestCatalogDeclarations(t *testing.T) {
	decls := Catalog()
	if len(decls) != 9 {
		t.Fatalf("catalog size = %d, want 9", len(decls))
	}
	seen := make(map[string]bool)
	for _, tool := range decls {
		if tool.Name == "" || tool.Description == "" {
			t.Errorf("incomplete declaration: %+v", tool)
		}
		var schema map[string]any
		if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
			t.Errorf("%s schema is not valid JSON: %v", tool.Name, err)
		}
		if schema["type"] != "object" {
			t.Errorf("%s schema type = %v", tool.Name, schema["type"])
		}
		seen[tool.Name] = true
	}
	for _, name := range []string{
		ToolReadFile, ToolWriteFile, ToolEditFile, ToolListFiles,
		ToolGlobPattern, ToolBashCommand, ToolExecuteCommand,
		ToolAskUser, ToolInvokeAgent,
	} {
		if !seen[name] {
			t.Errorf("catalog missing %s", name)
		}
	}
}

func TestExecuteRecordsToolMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	e := newExecutor(t, Options{Metrics: metrics})

	if result := e.Execute(context.Background(), call(ToolWriteFile, `{"file_path": "/a.md", "content": "x"}`)); !result.Success {
		t.Fatalf("write failed: %s", result.Error)
	}
	if result := e.Execute(context.Background(), call(ToolReadFile, `{"file_path": "/missing.md"}`)); result.Success {
		t.Fatal("read of missing file must fail")
	}

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`draftsmith_tool_executions_total{outcome="success",tool="write_file"} 1`,
		`draftsmith_tool_executions_total{outcome="error",tool="read_file"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
