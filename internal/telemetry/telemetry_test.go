package telemetry_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jojoalpha/agent-harness/internal/policy"
	"github.com/jojoalpha/agent-harness/internal/provenance"
	"github.com/jojoalpha/agent-harness/internal/telemetry"
)

func completedEvent(t *testing.T, tool string, success bool, durationMs int64, metadata map[string]any) provenance.Event {
	t.Helper()
	payload := map[string]any{
		"tool_name":   tool,
		"success":     success,
		"duration_ms": durationMs,
	}
	if metadata != nil {
		payload["metadata"] = metadata
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return provenance.NewEvent("ctx-1", provenance.ToolCallCompleted, raw)
}

func TestBuildAggregatesPerToolAndTotals(t *testing.T) {
	events := []provenance.Event{
		completedEvent(t, "defi/odos_swap", true, 100, nil),
		completedEvent(t, "defi/odos_swap", false, 200, map[string]any{"error": "rate limited upstream"}),
		completedEvent(t, "defi/wallet_balance", true, 50, nil),
	}

	snap, err := telemetry.Build(events, policy.AllowAllConfig(), telemetry.CostTable{"defi/odos_swap": 0.01})
	require.NoError(t, err)

	require.Equal(t, telemetry.SchemaVersion, snap.Version)
	require.Equal(t, telemetry.SchemaHash, snap.SchemaHash)
	require.Equal(t, 3, snap.Totals.ToolCalls)
	require.Equal(t, 2, snap.Totals.ToolSuccesses)
	require.Equal(t, 1, snap.Totals.ToolFailures)
	require.Len(t, snap.Tools, 2)

	var odos telemetry.ToolStats
	for _, ts := range snap.Tools {
		if ts.Tool == "defi/odos_swap" {
			odos = ts
		}
	}
	require.Equal(t, 2, odos.Calls)
	require.Equal(t, 0.5, odos.SuccessRate)
	require.Equal(t, 1, odos.ErrorClasses["transient"])
	require.InDelta(t, 0.02, odos.CostHint, 1e-9)
}

func TestBuildErrorsOnEmptyWindow(t *testing.T) {
	_, err := telemetry.Build(nil, policy.AllowAllConfig(), nil)
	require.ErrorIs(t, err, telemetry.ErrNoToolCallTelemetry)
}

func TestBuildReportsPolicyViolations(t *testing.T) {
	cfg := policy.Config{Mode: policy.DefaultDeny, Rules: map[string]policy.Rule{}}
	events := []provenance.Event{completedEvent(t, "defi/odos_swap", true, 10, nil)}

	snap, err := telemetry.Build(events, cfg, nil)
	require.NoError(t, err)
	require.Len(t, snap.Policy.Violations, 1)
	require.Equal(t, "default-deny", snap.Policy.Mode)
}

func TestClassifiesErrorMessageKeywords(t *testing.T) {
	events := []provenance.Event{
		completedEvent(t, "defi/odos_swap", false, 10, map[string]any{"error": "request timeout"}),
		completedEvent(t, "defi/odos_swap", false, 10, map[string]any{"error": "invalid signature"}),
		completedEvent(t, "defi/odos_swap", false, 10, map[string]any{"error": "something odd"}),
	}
	snap, err := telemetry.Build(events, policy.AllowAllConfig(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, snap.Tools[0].ErrorClasses["transient"])
	require.Equal(t, 1, snap.Tools[0].ErrorClasses["permanent"])
	require.Equal(t, 1, snap.Tools[0].ErrorClasses["unknown"])
}
