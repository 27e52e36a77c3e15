package toolexec

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmos/internal/cognitive"
)

func TestExecute_WriteThenReadFileRoundTrips(t *testing.T) {
	t.Parallel()
	e := New(t.TempDir())

	writeResult := e.Execute(context.Background(), cognitive.ToolCall{Name: "write_file", Args: map[string]any{"path": "notes.txt", "content": "hello"}})
	require.NoError(t, writeResult.Err)

	readResult := e.Execute(context.Background(), cognitive.ToolCall{Name: "read_file", Args: map[string]any{"path": "notes.txt"}})
	require.NoError(t, readResult.Err)
	assert.Equal(t, "hello", readResult.Output)
}

func TestExecute_RunShellCapturesStdout(t *testing.T) {
	t.Parallel()
	e := New(t.TempDir())
	result := e.Execute(context.Background(), cognitive.ToolCall{Name: "run_shell", Args: map[string]any{"command": "echo hi"}})
	require.NoError(t, result.Err)
	assert.Equal(t, "hi\n", result.Output)
}

func TestExecute_UnknownToolReturnsError(t *testing.T) {
	t.Parallel()
	e := New(t.TempDir())
	result := e.Execute(context.Background(), cognitive.ToolCall{Name: "teleport"})
	assert.Error(t, result.Err)
}

func TestResolve_JoinsRelativePathOntoWorkdir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	e := New(dir)
	assert.Equal(t, filepath.Join(dir, "a.txt"), e.resolve("a.txt"))
}
