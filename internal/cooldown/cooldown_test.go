package cooldown_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jojoalpha/agent-harness/internal/cooldown"
	"github.com/jojoalpha/agent-harness/internal/pipeline"
)

func prepareSwapCall() pipeline.ToolCallContext {
	return pipeline.ToolCallContext{ToolName: "defi/odos_swap", Args: json.RawMessage(`{"action":"prepare_swap"}`)}
}

func TestAllowsFirstTrade(t *testing.T) {
	g := cooldown.New(60)
	decision, err := g.OnRequest(context.Background(), prepareSwapCall())
	require.NoError(t, err)
	require.False(t, decision.Blocked())
}

func TestBlocksRapidSecondTrade(t *testing.T) {
	g := cooldown.New(60)
	call := prepareSwapCall()

	decision, err := g.OnRequest(context.Background(), call)
	require.NoError(t, err)
	require.False(t, decision.Blocked())

	g.OnComplete(context.Background(), call, json.RawMessage(`{}`), nil, 0)

	decision, err = g.OnRequest(context.Background(), call)
	require.NoError(t, err)
	require.True(t, decision.Blocked())
}

func TestAllowsQuotesDuringCooldown(t *testing.T) {
	g := cooldown.New(60)
	trade := prepareSwapCall()
	g.OnComplete(context.Background(), trade, json.RawMessage(`{}`), nil, 0)

	quote := pipeline.ToolCallContext{ToolName: "defi/odos_swap", Args: json.RawMessage(`{"action":"quote"}`)}
	decision, err := g.OnRequest(context.Background(), quote)
	require.NoError(t, err)
	require.False(t, decision.Blocked())
}

func TestFailedTradeDoesNotStartCooldown(t *testing.T) {
	g := cooldown.New(60)
	call := prepareSwapCall()
	g.OnComplete(context.Background(), call, nil, assertErr{}, 0)

	decision, err := g.OnRequest(context.Background(), call)
	require.NoError(t, err)
	require.False(t, decision.Blocked())
}

type assertErr struct{}

func (assertErr) Error() string { return "simulated failure" }
