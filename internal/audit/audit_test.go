package audit_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jojoalpha/agent-harness/internal/audit"
	"github.com/jojoalpha/agent-harness/internal/pipeline"
)

func TestLogsToolCallStartAndComplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	g, err := audit.New(path)
	require.NoError(t, err)
	defer g.Close()

	call := pipeline.ToolCallContext{
		ToolName:     "defi/odos_swap",
		FunctionName: "trading_loop",
		Args:         json.RawMessage(`{"action":"quote","input_token":"0x...","amount":"1000000"}`),
		ContextID:    "ctx-123",
	}

	decision, err := g.OnRequest(context.Background(), call)
	require.NoError(t, err)
	require.False(t, decision.Blocked())

	g.OnComplete(context.Background(), call, json.RawMessage(`{"output_amount":"999000"}`), nil, 0)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, "tool_call_start")
	require.Contains(t, content, "tool_call_complete")
	require.Contains(t, content, "defi/odos_swap")

	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var entry audit.Entry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		require.Equal(t, "ctx-123", entry.ContextID)
	}
}

func TestLogsErrorStatusOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	g, err := audit.New(path)
	require.NoError(t, err)
	defer g.Close()

	call := pipeline.ToolCallContext{ToolName: "defi/odos_swap", Args: json.RawMessage(`{}`)}
	g.OnComplete(context.Background(), call, nil, errBoom{}, 0)

	scanner := bufio.NewScanner(mustOpen(t, path))
	var found bool
	for scanner.Scan() {
		var entry audit.Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		if entry.Status == "error" {
			found = true
			require.Equal(t, "boom", entry.Error)
		}
	}
	require.True(t, found)
}

func mustOpen(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
