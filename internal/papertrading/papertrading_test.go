package papertrading_test

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jojoalpha/agent-harness/internal/papertrading"
	"github.com/jojoalpha/agent-harness/internal/tokens"
)

func TestNewPortfolioSeedsUSDCBalance(t *testing.T) {
	p := papertrading.New(10000.0)
	require.InDelta(t, 10000.0, p.TotalValueUSD(), 1.0)
}

func TestExecuteSwapUpdatesBalancesAndMetrics(t *testing.T) {
	p := papertrading.New(10000.0)

	inputAmount := big.NewInt(1_000_000_000)             // 1000 USDC
	expectedOutput := big.NewInt(330_000_000_000_000_000) // ~0.33 WETH

	trade, err := p.ExecuteSwap(tokens.USDCEth, tokens.WETHEth, inputAmount, expectedOutput, 1.0, 3000.0, 1)
	require.NoError(t, err)
	require.Equal(t, inputAmount.String(), trade.InputAmount)

	require.Len(t, p.Trades(), 1)
	require.EqualValues(t, 1, p.Metrics().TotalTrades)
	require.InDelta(t, 1000.0, p.Metrics().TotalVolumeUSD, 0.01)
}

func TestExecuteSwapRejectsInsufficientBalance(t *testing.T) {
	p := papertrading.New(100.0)

	inputAmount := big.NewInt(1_000_000_000) // 1000 USDC, more than the $100 seed
	_, err := p.ExecuteSwap(tokens.USDCEth, tokens.WETHEth, inputAmount, big.NewInt(1), 1.0, 3000.0, 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "insufficient balance")
}

func TestMarshalUnmarshalRoundTrips(t *testing.T) {
	p := papertrading.New(5000.0)
	_, err := p.ExecuteSwap(tokens.USDCEth, tokens.WETHEth, big.NewInt(500_000_000), big.NewInt(150_000_000_000_000_000), 1.0, 3000.0, 1)
	require.NoError(t, err)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	restored := &papertrading.Portfolio{}
	require.NoError(t, json.Unmarshal(data, restored))

	require.Equal(t, p.Trades(), restored.Trades())
	require.InDelta(t, p.TotalValueUSD(), restored.TotalValueUSD(), 0.01)
}
