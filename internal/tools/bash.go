package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

// bashCommand implements the restricted mini-shell. It splits on whitespace
// only (no quoting, no substitution) and recognizes exactly four verbs,
// all acting on the VFS, never the host. The narrowness is the point.
func (e *Executor) bashCommand(input json.RawMessage) models.ToolResult {
	var in struct {
		Command     string `json:"command"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return fail("invalid input: %v", err)
	}

	fields := strings.Fields(in.Command)
	if len(fields) == 0 {
		return fail("empty command")
	}

	switch fields[0] {
	case "mkdir":
		return e.bashMkdir(fields[1:])
	case "ls":
		return e.bashLs(fields[1:])
	case "pwd":
		return succeed("/")
	case "echo":
		return succeed(strings.Join(fields[1:], " "))
	default:
		return fail("command %q is not allowed; supported: mkdir, ls, pwd, echo", fields[0])
	}
}

func (e *Executor) bashMkdir(args []string) models.ToolResult {
	paths := args
	if len(paths) > 0 && paths[0] == "-p" {
		paths = paths[1:]
	}
	if len(paths) == 0 {
		return fail("mkdir: missing operand")
	}
	for _, path := range paths {
		if err := e.fs.Mkdir(path); err != nil {
			return fail("mkdir: %v", err)
		}
	}
	return succeed(fmt.Sprintf("Created %s", strings.Join(paths, " ")))
}

func (e *Executor) bashLs(args []string) models.ToolResult {
	path := "/"
	if len(args) > 0 {
		path = args[0]
	}
	entries, err := e.fs.List(path)
	if err != nil {
		return fail("ls: %v", err)
	}
	if len(entries) == 0 {
		return succeed("")
	}
	names := make([]string, len(entries))
	for i, entry := range entries {
		if entry.IsDir {
			names[i] = entry.Name + "/"
		} else {
			names[i] = entry.Name
		}
	}
	return succeed(strings.Join(names, "\n"))
}
