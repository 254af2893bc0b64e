// Package papertrading implements the paper_trading tool (T4): simulated
// swaps, balance queries, and P&L tracking against an in-memory portfolio.
// Adapted from original_source/src/tools/paper_trading.rs. This tool never
// submits real transactions; every operation mutates only the in-process
// internal/papertrading.Portfolio.
package papertrading

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jojoalpha/agent-harness/internal/harnesserr"
	"github.com/jojoalpha/agent-harness/internal/papertrading"
	"github.com/jojoalpha/agent-harness/internal/tokens"
	"github.com/jojoalpha/agent-harness/internal/toolname"
	"github.com/jojoalpha/agent-harness/internal/toolspec"
)

type args struct {
	Action          string   `json:"action"`
	InputToken      string   `json:"input_token"`
	OutputToken     string   `json:"output_token"`
	InputAmount     string   `json:"input_amount"`
	ExpectedOutput  string   `json:"expected_output"`
	InputPriceUSD   *float64 `json:"input_price_usd"`
	OutputPriceUSD  *float64 `json:"output_price_usd"`
	ChainID         *uint64  `json:"chain_id"`
	Limit           *int     `json:"limit"`
}

func (a args) resolveChainID() uint64 {
	if a.ChainID != nil {
		return *a.ChainID
	}
	return tokens.Ethereum
}

// Tool implements paper_trading: execute_swap, get_balances, get_metrics,
// get_trades.
type Tool struct {
	portfolio *papertrading.Portfolio
	registry  *tokens.Registry
}

// New constructs a Tool operating on portfolio.
func New(portfolio *papertrading.Portfolio) *Tool {
	return &Tool{portfolio: portfolio, registry: tokens.Global()}
}

// Spec implements toolspec.Tool.
func (t *Tool) Spec() toolspec.Spec {
	return toolspec.Spec{
		Name: toolname.MustParse("defi/paper_trading"),
		Description: "Paper trading tool for simulated trading. Execute hypothetical swaps, " +
			"query paper balances, and track P&L metrics. All operations are simulated " +
			"and no real transactions are submitted.",
		Payload: toolspec.TypeSpec{Name: "PaperTradingArgs", Schema: []byte(`{
			"type":"object",
			"properties":{
				"action":{"type":"string","enum":["execute_swap","get_balances","get_metrics","get_trades"]},
				"input_token":{"type":"string"},
				"output_token":{"type":"string"},
				"input_amount":{"type":"string"},
				"expected_output":{"type":"string"},
				"input_price_usd":{"type":"number"},
				"output_price_usd":{"type":"number"},
				"chain_id":{"type":"integer"},
				"limit":{"type":"integer"}
			},
			"required":["action"],
			"additionalProperties":false
		}`)},
	}
}

// Execute implements toolspec.Tool.
func (t *Tool) Execute(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var a args
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.InvalidArgument, "invalid args", err)
	}

	var (
		result any
		err    error
	)
	switch a.Action {
	case "execute_swap":
		result, err = t.executeSwap(a)
	case "get_balances":
		result, err = t.getBalances(a)
	case "get_metrics":
		result, err = t.getMetrics()
	case "get_trades":
		result, err = t.getTrades(a)
	default:
		return nil, harnesserr.Errorf(harnesserr.InvalidArgument, "unsupported action %q", a.Action)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func requireNonEmpty(field, value string) error {
	if value == "" {
		return harnesserr.Errorf(harnesserr.InvalidArgument, "missing '%s'", field)
	}
	return nil
}

func requireFloat(field string, value *float64) (float64, error) {
	if value == nil {
		return 0, harnesserr.Errorf(harnesserr.InvalidArgument, "missing '%s'", field)
	}
	return *value, nil
}

func (t *Tool) executeSwap(a args) (map[string]any, error) {
	if err := requireNonEmpty("input_token", a.InputToken); err != nil {
		return nil, err
	}
	if err := requireNonEmpty("output_token", a.OutputToken); err != nil {
		return nil, err
	}
	if err := requireNonEmpty("input_amount", a.InputAmount); err != nil {
		return nil, err
	}
	if err := requireNonEmpty("expected_output", a.ExpectedOutput); err != nil {
		return nil, err
	}
	inputPriceUSD, err := requireFloat("input_price_usd", a.InputPriceUSD)
	if err != nil {
		return nil, err
	}
	outputPriceUSD, err := requireFloat("output_price_usd", a.OutputPriceUSD)
	if err != nil {
		return nil, err
	}

	if !common.IsHexAddress(a.InputToken) {
		return nil, harnesserr.Errorf(harnesserr.InvalidArgument, "invalid input token %q", a.InputToken)
	}
	if !common.IsHexAddress(a.OutputToken) {
		return nil, harnesserr.Errorf(harnesserr.InvalidArgument, "invalid output token %q", a.OutputToken)
	}
	inputAmt, ok := new(big.Int).SetString(a.InputAmount, 10)
	if !ok {
		return nil, harnesserr.Errorf(harnesserr.InvalidArgument, "invalid input_amount %q", a.InputAmount)
	}
	expectedOut, ok := new(big.Int).SetString(a.ExpectedOutput, 10)
	if !ok {
		return nil, harnesserr.Errorf(harnesserr.InvalidArgument, "invalid expected_output %q", a.ExpectedOutput)
	}

	inputAddr := common.HexToAddress(a.InputToken)
	outputAddr := common.HexToAddress(a.OutputToken)
	chainID := a.resolveChainID()

	trade, err := t.portfolio.ExecuteSwap(inputAddr, outputAddr, inputAmt, expectedOut, inputPriceUSD, outputPriceUSD, chainID)
	if err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.ToolExecution, "paper swap failed", err)
	}

	metrics := t.portfolio.Metrics()

	return map[string]any{
		"action": "execute_swap",
		"status": "executed_on_paper",
		"trade": map[string]any{
			"timestamp":       trade.Timestamp.Format(timeLayout),
			"input_token":     a.InputToken,
			"output_token":    a.OutputToken,
			"input_amount":    trade.InputAmount,
			"output_amount":   trade.OutputAmount,
			"trade_value_usd": trade.TradeValueUSD,
		},
		"portfolio_metrics": map[string]any{
			"total_pnl_usd":     metrics.TotalPnLUSD,
			"total_pnl_percent": metrics.TotalPnLPercent,
			"total_trades":      metrics.TotalTrades,
			"total_volume_usd":  metrics.TotalVolumeUSD,
		},
	}, nil
}

func (t *Tool) getBalances(a args) (map[string]any, error) {
	chainID := a.resolveChainID()
	holdings := t.portfolio.Balances()

	balances := make([]map[string]any, 0, len(holdings))
	for addr, amount := range holdings {
		symbol := "UNKNOWN"
		decimals := uint8(18)
		if info, ok := t.registry.Get(addr); ok {
			symbol = info.Symbol
			decimals = info.Decimals
		}
		balances = append(balances, map[string]any{
			"token":             addr.Hex(),
			"symbol":            symbol,
			"balance_raw":       amount.String(),
			"balance_formatted": formatUnits(amount, decimals),
			"decimals":          decimals,
			"is_native":         false,
		})
	}

	return map[string]any{
		"action":   "get_balances",
		"chain_id": chainID,
		"balances": balances,
		"note":     "Paper trading balances (simulated)",
	}, nil
}

func (t *Tool) getMetrics() (map[string]any, error) {
	metrics := t.portfolio.Metrics()

	return map[string]any{
		"action":               "get_metrics",
		"initial_balance_usd":  t.portfolio.InitialUSD(),
		"current_value_usd":    t.portfolio.TotalValueUSD(),
		"realized_pnl_usd":     metrics.RealizedPnLUSD,
		"unrealized_pnl_usd":   metrics.UnrealizedPnLUSD,
		"total_pnl_usd":        metrics.TotalPnLUSD,
		"total_pnl_percent":    metrics.TotalPnLPercent,
		"total_trades":         metrics.TotalTrades,
		"total_volume_usd":     metrics.TotalVolumeUSD,
		"winning_trades":       metrics.WinningTrades,
		"losing_trades":        metrics.LosingTrades,
		"win_rate":             metrics.WinRate,
		"created_at":           t.portfolio.CreatedAt().Format(timeLayout),
		"updated_at":           t.portfolio.UpdatedAt().Format(timeLayout),
	}, nil
}

func (t *Tool) getTrades(a args) (map[string]any, error) {
	trades := t.portfolio.Trades()
	if a.Limit != nil && *a.Limit >= 0 && *a.Limit < len(trades) {
		trades = trades[len(trades)-*a.Limit:]
	}

	formatted := make([]map[string]any, 0, len(trades))
	for _, trade := range trades {
		formatted = append(formatted, map[string]any{
			"timestamp":       trade.Timestamp.Format(timeLayout),
			"input_token":     trade.InputToken.Hex(),
			"output_token":    trade.OutputToken.Hex(),
			"input_amount":    trade.InputAmount,
			"output_amount":   trade.OutputAmount,
			"trade_value_usd": trade.TradeValueUSD,
			"chain_id":        trade.ChainID,
		})
	}

	return map[string]any{
		"action":      "get_trades",
		"trades":      formatted,
		"total_count": len(formatted),
	}, nil
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

// formatUnits renders value with decimals decimal places, trimming trailing
// zeros, matching the original's format_units.
func formatUnits(value *big.Int, decimals uint8) string {
	if value.Sign() == 0 {
		return "0"
	}

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole := new(big.Int)
	remainder := new(big.Int)
	whole.DivMod(value, divisor, remainder)

	if remainder.Sign() == 0 {
		return whole.String()
	}

	remainderStr := fmt.Sprintf("%0*s", int(decimals), remainder.String())
	trimmed := strings.TrimRight(remainderStr, "0")
	if trimmed == "" {
		return whole.String()
	}
	return whole.String() + "." + trimmed
}
