// Package exec runs whitelisted external commands for content-generation
// pipelines. Commands are spawned directly from an argv vector; there is no
// shell, so metacharacters carry no shell semantics.
package exec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	osexec "os/exec"
	"sort"
	"sync"
	"syscall"
	"time"
)

// Defaults.
const (
	DefaultTimeout        = 5 * time.Minute
	DefaultMaxOutputBytes = 10 * 1024 * 1024

	// terminateGrace is how long a timed-out process gets between
	// SIGTERM and SIGKILL.
	terminateGrace = 5 * time.Second
)

// DefaultWhitelist is the read-only, harmless baseline.
var DefaultWhitelist = []string{
	"echo", "cat", "ls", "pwd", "which", "whoami", "date", "uname",
}

// ContentCreationWhitelist extends the baseline with tools used by
// document pipelines (converters, typesetters, image tooling).
var ContentCreationWhitelist = append(append([]string{}, DefaultWhitelist...),
	"mkdir", "touch", "cp", "mv",
	"pandoc", "pdflatex", "xelatex", "convert", "gs",
)

// CommandNotAllowedError is returned before any process is spawned when the
// command is not in the whitelist.
type CommandNotAllowedError struct {
	Command string
}

func (e *CommandNotAllowedError) Error() string {
	return fmt.Sprintf("command %q is not allowed by the whitelist", e.Command)
}

// Result describes one completed (or timed-out) command run.
type Result struct {
	Success    bool     `json:"success"`
	Stdout     string   `json:"stdout"`
	Stderr     string   `json:"stderr"`
	ExitCode   int      `json:"exit_code"`
	Signal     string   `json:"signal,omitempty"`
	Command    string   `json:"command"`
	Args       []string `json:"args,omitempty"`
	DurationMs int64    `json:"duration_ms"`
	TimedOut   bool     `json:"timed_out"`
	Error      string   `json:"error,omitempty"`
}

// Options configures an Executor.
type Options struct {
	// Whitelist of permitted command names. Defaults to DefaultWhitelist.
	Whitelist []string

	// Timeout per run. Defaults to 5 minutes.
	Timeout time.Duration

	// MaxOutputBytes caps each of stdout and stderr. Defaults to 10 MiB.
	MaxOutputBytes int

	// Env is overlaid on the inherited parent environment.
	Env map[string]string

	Logger *slog.Logger
}

// Executor is a guarded subprocess runner. Safe for concurrent use.
type Executor struct {
	allowed        map[string]bool
	timeout        time.Duration
	maxOutputBytes int
	env            map[string]string
	logger         *slog.Logger
}

// New creates an executor from options.
func New(opts Options) *Executor {
	whitelist := opts.Whitelist
	if len(whitelist) == 0 {
		whitelist = DefaultWhitelist
	}
	allowed := make(map[string]bool, len(whitelist))
	for _, name := range whitelist {
		allowed[name] = true
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxOutput := opts.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutputBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		allowed:        allowed,
		timeout:        timeout,
		maxOutputBytes: maxOutput,
		env:            opts.Env,
		logger:         logger,
	}
}

// Whitelist returns the permitted command names, sorted.
func (e *Executor) Whitelist() []string {
	out := make([]string, 0, len(e.allowed))
	for name := range e.allowed {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Allowed reports whether command passes the whitelist.
func (e *Executor) Allowed(command string) bool {
	return e.allowed[command]
}

// Execute runs command with args in workDir. A whitelist miss or unusable
// working directory fails before any process is spawned. Runtime outcomes
// (non-zero exit, timeout) are reported in the Result, not the error.
func (e *Executor) Execute(ctx context.Context, command string, args []string, workDir string) (*Result, error) {
	if command == "" {
		return nil, errors.New("command is required")
	}
	if !e.allowed[command] {
		return nil, &CommandNotAllowedError{Command: command}
	}

	if workDir != "" {
		if err := ensureWorkDir(workDir); err != nil {
			return nil, err
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := osexec.CommandContext(runCtx, command, args...)
	cmd.Dir = workDir
	cmd.Env = e.environ()

	// On timeout: terminate, then force-kill after the grace period.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = terminateGrace

	stdout := newLimitedBuffer(e.maxOutputBytes)
	stderr := newLimitedBuffer(e.maxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	e.logger.Debug("executing command", "command", command, "args", args, "work_dir", workDir)

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	timedOut := runCtx.Err() == context.DeadlineExceeded
	result := &Result{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		ExitCode:   exitCode(runErr),
		Signal:     exitSignal(runErr),
		Command:    command,
		Args:       args,
		DurationMs: duration.Milliseconds(),
		TimedOut:   timedOut,
	}
	result.Success = result.ExitCode == 0 && !timedOut
	if runErr != nil {
		result.Error = runErr.Error()
	}
	if timedOut {
		result.Error = fmt.Sprintf("command timed out after %s", e.timeout)
	}

	e.logger.Debug("command finished",
		"command", command, "exit_code", result.ExitCode,
		"timed_out", timedOut, "duration_ms", result.DurationMs)

	return result, nil
}

func (e *Executor) environ() []string {
	base := os.Environ()
	for k, v := range e.env {
		base = append(base, k+"="+v)
	}
	return base
}

// ensureWorkDir creates dir if missing and verifies it is usable.
func ensureWorkDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create working directory: %w", err)
		}
	case err != nil:
		return fmt.Errorf("stat working directory: %w", err)
	case !info.IsDir():
		return fmt.Errorf("working directory %s is not a directory", dir)
	}

	// RWX check: listing needs R+X, spawned tools need W.
	if _, err := os.ReadDir(dir); err != nil {
		return fmt.Errorf("working directory not readable: %w", err)
	}
	probe, err := os.CreateTemp(dir, ".exec-probe-*")
	if err != nil {
		return fmt.Errorf("working directory not writable: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *osexec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func exitSignal(err error) string {
	var exitErr *osexec.ExitError
	if !errors.As(err, &exitErr) {
		return ""
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return ""
	}
	return status.Signal().String()
}

// limitedBuffer caps captured output at a hard ceiling; excess bytes are
// dropped silently.
type limitedBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newLimitedBuffer(max int) *limitedBuffer {
	return &limitedBuffer{max: max}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) >= b.max {
		return len(p), nil
	}
	remaining := b.max - len(b.buf)
	if len(p) > remaining {
		b.buf = append(b.buf, p[:remaining]...)
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
