package provenance_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jojoalpha/agent-harness/internal/provenance"
)

func toolCallEvent(contextID string) provenance.Event {
	data, _ := json.Marshal(map[string]any{
		"tool_name": "defi/odos_swap",
		"args":      map[string]any{"action": "quote"},
	})
	return provenance.NewEvent(contextID, provenance.ToolCallStarted, data)
}

func TestSanitizeRedactsArgs(t *testing.T) {
	evt := toolCallEvent("ctx-1")
	sanitized, err := provenance.Sanitize(evt)
	require.NoError(t, err)

	var data map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(sanitized.Data, &data))

	var redacted provenance.Redacted
	require.NoError(t, json.Unmarshal(data["args"], &redacted))
	require.True(t, redacted.RedactedFlag)
	require.NotEmpty(t, redacted.Hash)
}

func TestSanitizePromotesRecognizedErrorClass(t *testing.T) {
	data, _ := json.Marshal(map[string]any{
		"args": map[string]any{"error_class": "transient"},
	})
	evt := provenance.NewEvent("ctx-1", provenance.ToolCallCompleted, data)

	sanitized, err := provenance.Sanitize(evt)
	require.NoError(t, err)

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(sanitized.Data, &out))
	var meta map[string]string
	require.NoError(t, json.Unmarshal(out["metadata"], &meta))
	require.Equal(t, "transient", meta["error_class"])
}

func TestMemoryStoreAssignsSequentialIDsAndQueriesByContext(t *testing.T) {
	store := provenance.NewMemoryStore()
	require.NoError(t, store.AddEvent(context.Background(), toolCallEvent("ctx-a")))
	require.NoError(t, store.AddEvent(context.Background(), toolCallEvent("ctx-b")))
	require.NoError(t, store.AddEvent(context.Background(), toolCallEvent("ctx-a")))

	all := store.Events()
	require.Len(t, all, 3)
	require.Equal(t, "1", all[0].EventID)
	require.Equal(t, "3", all[2].EventID)

	forA := store.EventsForContext("ctx-a")
	require.Len(t, forA, 2)
}

func TestJSONLWriterAppendsOneLinePerEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "provenance.jsonl")
	w, err := provenance.NewJSONLWriter(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddEvent(context.Background(), toolCallEvent("ctx-1")))
	require.NoError(t, w.AddEvent(context.Background(), toolCallEvent("ctx-1")))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines int
	for scanner.Scan() {
		var evt provenance.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &evt))
		lines++
	}
	require.Equal(t, 2, lines)
}

type recordingWriter struct {
	received []provenance.Event
	failAt   int
}

func (r *recordingWriter) AddEvent(ctx context.Context, evt provenance.Event) error {
	if r.failAt == len(r.received) {
		return assertErrBoom{}
	}
	r.received = append(r.received, evt)
	return nil
}

type assertErrBoom struct{}

func (assertErrBoom) Error() string { return "boom" }

func TestFanoutWriterStopsOnFirstFailure(t *testing.T) {
	first := &recordingWriter{failAt: -1}
	second := &recordingWriter{failAt: 0}
	third := &recordingWriter{failAt: -1}

	fanout := provenance.NewFanoutWriter(first, second, third)
	err := fanout.AddEvent(context.Background(), toolCallEvent("ctx-1"))
	require.Error(t, err)
	require.Len(t, first.received, 1)
	require.Len(t, third.received, 0, "writer after the failing child must not be invoked")
}
