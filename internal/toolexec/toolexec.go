// Package toolexec implements a concrete cognitive.ToolExecutor (§4.11):
// the small set of host-environment tools a CognitiveAdapter's tool calls
// resolve against, grounded on the reference service's CLI/file tool shape
// (ExecRequest/ExecResult) generalized to this module's ToolCall/ToolResult
// types.
package toolexec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"llmos/internal/cognitive"
)

const defaultShellTimeout = 30 * time.Second

// Executor runs run_shell, read_file, and write_file tool calls rooted at
// workdir. Any other tool name is reported as an unknown-tool error.
type Executor struct {
	workdir string
}

// New roots an Executor at workdir (typically the active project's
// components directory).
func New(workdir string) *Executor {
	return &Executor{workdir: workdir}
}

func (e *Executor) Execute(ctx context.Context, call cognitive.ToolCall) cognitive.ToolResult {
	switch call.Name {
	case "run_shell":
		return e.runShell(ctx, call)
	case "read_file":
		return e.readFile(call)
	case "write_file":
		return e.writeFile(call)
	default:
		return cognitive.ToolResult{ToolCallID: call.ID, Err: fmt.Errorf("unknown tool %q", call.Name)}
	}
}

func (e *Executor) runShell(ctx context.Context, call cognitive.ToolCall) cognitive.ToolResult {
	command, _ := call.Args["command"].(string)
	if command == "" {
		return cognitive.ToolResult{ToolCallID: call.ID, Err: fmt.Errorf("run_shell: command is required")}
	}

	runCtx, cancel := context.WithTimeout(ctx, defaultShellTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = e.workdir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return cognitive.ToolResult{ToolCallID: call.ID, Output: stdout.String(), Err: fmt.Errorf("run_shell: %w: %s", err, stderr.String())}
	}
	return cognitive.ToolResult{ToolCallID: call.ID, Output: stdout.String()}
}

func (e *Executor) readFile(call cognitive.ToolCall) cognitive.ToolResult {
	path, _ := call.Args["path"].(string)
	if path == "" {
		return cognitive.ToolResult{ToolCallID: call.ID, Err: fmt.Errorf("read_file: path is required")}
	}
	b, err := os.ReadFile(e.resolve(path))
	if err != nil {
		return cognitive.ToolResult{ToolCallID: call.ID, Err: fmt.Errorf("read_file: %w", err)}
	}
	return cognitive.ToolResult{ToolCallID: call.ID, Output: string(b)}
}

func (e *Executor) writeFile(call cognitive.ToolCall) cognitive.ToolResult {
	path, _ := call.Args["path"].(string)
	content, _ := call.Args["content"].(string)
	if path == "" {
		return cognitive.ToolResult{ToolCallID: call.ID, Err: fmt.Errorf("write_file: path is required")}
	}
	full := e.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return cognitive.ToolResult{ToolCallID: call.ID, Err: fmt.Errorf("write_file: %w", err)}
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return cognitive.ToolResult{ToolCallID: call.ID, Err: fmt.Errorf("write_file: %w", err)}
	}
	return cognitive.ToolResult{ToolCallID: call.ID, Output: fmt.Sprintf("wrote %d bytes to %s", len(content), path)}
}

func (e *Executor) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.workdir, path)
}
