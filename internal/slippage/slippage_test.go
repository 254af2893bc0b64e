package slippage_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jojoalpha/agent-harness/internal/pipeline"
	"github.com/jojoalpha/agent-harness/internal/slippage"
)

func TestAllowsLowSlippage(t *testing.T) {
	g := slippage.New(1.0)
	decision, err := g.OnRequest(context.Background(), pipeline.ToolCallContext{
		ToolName: "defi/odos_swap",
		Args:     json.RawMessage(`{"action":"prepare_swap","slippage_percent":0.5}`),
	})
	require.NoError(t, err)
	require.False(t, decision.Blocked())
}

func TestBlocksHighSlippage(t *testing.T) {
	g := slippage.New(1.0)
	decision, err := g.OnRequest(context.Background(), pipeline.ToolCallContext{
		ToolName: "defi/odos_swap",
		Args:     json.RawMessage(`{"action":"prepare_swap","slippage_percent":5.0}`),
	})
	require.NoError(t, err)
	require.True(t, decision.Blocked())
	require.Contains(t, decision.Reason(), "5.00%")
}

func TestMissingSlippageUsesDefault(t *testing.T) {
	g := slippage.New(1.0)
	decision, err := g.OnRequest(context.Background(), pipeline.ToolCallContext{
		ToolName: "defi/odos_swap",
		Args:     json.RawMessage(`{"action":"prepare_swap"}`),
	})
	require.NoError(t, err)
	require.False(t, decision.Blocked(), "default 0.5%% slippage is within a 1%% ceiling")
}

func TestIgnoresOtherTools(t *testing.T) {
	g := slippage.New(0.1)
	decision, err := g.OnRequest(context.Background(), pipeline.ToolCallContext{
		ToolName: "defi/wallet_balance",
		Args:     json.RawMessage(`{"slippage_percent":99}`),
	})
	require.NoError(t, err)
	require.False(t, decision.Blocked())
}
