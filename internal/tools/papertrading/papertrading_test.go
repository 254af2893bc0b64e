package papertrading_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	internalpapertrading "github.com/jojoalpha/agent-harness/internal/papertrading"
	"github.com/jojoalpha/agent-harness/internal/tokens"
	"github.com/jojoalpha/agent-harness/internal/tools/papertrading"
)

func TestGetMetricsReturnsSeedBalance(t *testing.T) {
	portfolio := internalpapertrading.New(5000.0)
	tool := papertrading.New(portfolio)

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"action":"get_metrics"}`))
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(out, &parsed))
	require.Equal(t, "get_metrics", parsed["action"])
	require.InDelta(t, 5000.0, parsed["initial_balance_usd"], 0.0001)
}

func TestGetBalancesIncludesSeededUSDC(t *testing.T) {
	portfolio := internalpapertrading.New(10000.0)
	tool := papertrading.New(portfolio)

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"action":"get_balances","chain_id":1}`))
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(out, &parsed))
	require.Equal(t, "get_balances", parsed["action"])
	balances, ok := parsed["balances"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, balances)
}

func TestExecuteSwapRejectsMissingFields(t *testing.T) {
	portfolio := internalpapertrading.New(1000.0)
	tool := papertrading.New(portfolio)

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"action":"execute_swap"}`))
	require.Error(t, err)
}

func TestExecuteSwapRejectsInsufficientBalance(t *testing.T) {
	portfolio := internalpapertrading.New(1000.0)
	tool := papertrading.New(portfolio)

	out, err := tool.Execute(context.Background(), json.RawMessage(`{
		"action":"execute_swap",
		"input_token":"`+tokens.WETHEth.Hex()+`",
		"output_token":"`+tokens.USDCEth.Hex()+`",
		"input_amount":"1000000000000000000",
		"expected_output":"1000000",
		"input_price_usd":3000.0,
		"output_price_usd":1.0
	}`))
	require.Error(t, err)
	require.Nil(t, out)
}

func TestExecuteSwapSucceedsAndRecordsTrade(t *testing.T) {
	portfolio := internalpapertrading.New(1000.0)
	tool := papertrading.New(portfolio)

	out, err := tool.Execute(context.Background(), json.RawMessage(`{
		"action":"execute_swap",
		"input_token":"`+tokens.USDCEth.Hex()+`",
		"output_token":"`+tokens.WETHEth.Hex()+`",
		"input_amount":"500000000",
		"expected_output":"166666666666666666",
		"input_price_usd":1.0,
		"output_price_usd":3000.0
	}`))
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(out, &parsed))
	require.Equal(t, "executed_on_paper", parsed["status"])

	tradesOut, err := tool.Execute(context.Background(), json.RawMessage(`{"action":"get_trades"}`))
	require.NoError(t, err)
	var trades map[string]any
	require.NoError(t, json.Unmarshal(tradesOut, &trades))
	require.EqualValues(t, 1, trades["total_count"])
}

func TestGetTradesRespectsLimit(t *testing.T) {
	portfolio := internalpapertrading.New(10000.0)
	tool := papertrading.New(portfolio)

	for i := 0; i < 3; i++ {
		_, err := tool.Execute(context.Background(), json.RawMessage(`{
			"action":"execute_swap",
			"input_token":"`+tokens.USDCEth.Hex()+`",
			"output_token":"`+tokens.WETHEth.Hex()+`",
			"input_amount":"1000000",
			"expected_output":"333333333333333",
			"input_price_usd":1.0,
			"output_price_usd":3000.0
		}`))
		require.NoError(t, err)
	}

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"action":"get_trades","limit":2}`))
	require.NoError(t, err)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(out, &parsed))
	require.EqualValues(t, 2, parsed["total_count"])
}

func TestRejectsUnsupportedAction(t *testing.T) {
	portfolio := internalpapertrading.New(1000.0)
	tool := papertrading.New(portfolio)

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"action":"withdraw_everything"}`))
	require.Error(t, err)
}
