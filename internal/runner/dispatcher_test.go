package runner_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jojoalpha/agent-harness/internal/pipeline"
	"github.com/jojoalpha/agent-harness/internal/provenance"
	"github.com/jojoalpha/agent-harness/internal/runner"
	"github.com/jojoalpha/agent-harness/internal/toolname"
	"github.com/jojoalpha/agent-harness/internal/toolspec"
)

// schemaTool is a minimal toolspec.Tool with a required-field schema, used
// to exercise Dispatcher's C3 validation without pulling in a real tool's
// external dependencies.
type schemaTool struct {
	calls int
}

func (t *schemaTool) Spec() toolspec.Spec {
	return toolspec.Spec{
		Name: toolname.MustParse("defi/echo"),
		Payload: toolspec.TypeSpec{Name: "EchoArgs", Schema: []byte(`{
			"type":"object",
			"properties":{"message":{"type":"string"}},
			"required":["message"],
			"additionalProperties":false
		}`)},
	}
}

func (t *schemaTool) Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	t.calls++
	return json.RawMessage(`{"ok":true}`), nil
}

func TestDispatchRejectsArgsFailingDeclaredSchema(t *testing.T) {
	tool := &schemaTool{}
	d := runner.NewDispatcher(pipeline.New())
	d.Register(tool)

	_, err := d.Dispatch(context.Background(), "defi/echo", "", []byte(`{}`), "ctx-1")
	require.Error(t, err)
	require.Equal(t, 0, tool.calls, "the tool body must not run when args fail schema validation")
}

func TestDispatchAllowsArgsSatisfyingDeclaredSchema(t *testing.T) {
	tool := &schemaTool{}
	d := runner.NewDispatcher(pipeline.New())
	d.Register(tool)

	out, err := d.Dispatch(context.Background(), "defi/echo", "", []byte(`{"message":"hi"}`), "ctx-1")
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(out))
	require.Equal(t, 1, tool.calls)
}

func TestDispatchRecordsProvenanceOnceWithUnredactedHash(t *testing.T) {
	tool := &schemaTool{}
	store := provenance.NewMemoryStore()
	d := runner.NewDispatcher(pipeline.New(provenance.NewGuard(store)))
	d.Register(tool)

	args := json.RawMessage(`{"message":"hi"}`)
	_, err := d.Dispatch(context.Background(), "defi/echo", "", args, "ctx-1")
	require.NoError(t, err)

	events := store.EventsForContext("ctx-1")
	require.Len(t, events, 2, "exactly one ToolCallStarted and one ToolCallCompleted, no double recording")

	var started map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(events[0].Data, &started))
	var redacted provenance.Redacted
	require.NoError(t, json.Unmarshal(started["args"], &redacted))
	require.True(t, redacted.RedactedFlag)
	require.NotEmpty(t, redacted.Hash)
}
