// Package spendlimit implements the SpendLimit guard (C7): per-trade and
// daily USD spend ceilings enforced only against defi/odos_swap's
// prepare_swap action. Adapted from
// original_source/src/interceptors/spend_limit.rs, with the mutex-held
// daily tracker narrowed to satisfy the Go pipeline's "no lock across
// outbound I/O" invariant (the estimator itself does no I/O, so the lock
// scope here was already safe; kept narrow regardless for clarity).
package spendlimit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jojoalpha/agent-harness/internal/pipeline"
	"github.com/jojoalpha/agent-harness/internal/tokens"
)

// Mode controls enforcement when a trade's USD value cannot be determined.
type Mode int

const (
	// FailOpen allows the trade through with a logged warning.
	FailOpen Mode = iota
	// FailClosed blocks the trade until amount_usd is supplied explicitly.
	FailClosed
)

const (
	toolOdosSwap      = "defi/odos_swap"
	actionPrepareSwap = "prepare_swap"
)

// dailySpending tracks cumulative USD spend for the current UTC calendar
// day, resetting lazily the first time it is touched on a new day.
type dailySpending struct {
	total  float64
	day    time.Time // truncated to UTC midnight
	trades []float64
}

func newDailySpending() *dailySpending {
	return &dailySpending{day: todayUTC()}
}

func todayUTC() time.Time {
	y, m, d := time.Now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (d *dailySpending) resetIfNewDay() {
	today := todayUTC()
	if !today.Equal(d.day) {
		d.total = 0
		d.trades = nil
		d.day = today
	}
}

func (d *dailySpending) currentTotal() float64 {
	d.resetIfNewDay()
	return d.total
}

func (d *dailySpending) add(amount float64) {
	d.resetIfNewDay()
	d.total += amount
	d.trades = append(d.trades, amount)
}

// Guard enforces the SpendLimit policy.
type Guard struct {
	maxPerTrade float64
	maxDaily    float64
	mode        Mode

	mu    sync.Mutex
	daily *dailySpending

	registry *tokens.Registry
}

// New constructs a SpendLimit guard in FailOpen mode, reading token
// info from the process-global registry.
func New(maxPerTrade, maxDaily float64) *Guard {
	return NewWithMode(maxPerTrade, maxDaily, FailOpen)
}

// NewWithMode constructs a SpendLimit guard with an explicit Mode.
func NewWithMode(maxPerTrade, maxDaily float64, mode Mode) *Guard {
	return &Guard{
		maxPerTrade: maxPerTrade,
		maxDaily:    maxDaily,
		mode:        mode,
		daily:       newDailySpending(),
		registry:    tokens.Global(),
	}
}

// Name implements pipeline.Guard.
func (g *Guard) Name() string { return "spend_limit" }

// estimateTradeValue resolves a trade's USD value. Priority: explicit
// amount_usd, then token-registry-derived value, else (false, _) for
// unknown tokens or missing price data.
func (g *Guard) estimateTradeValue(args map[string]any) (float64, bool) {
	if usd, ok := args["amount_usd"].(float64); ok {
		return usd, true
	}

	amountStr, _ := args["amount"].(string)
	inputToken, _ := args["input_token"].(string)
	if amountStr == "" || inputToken == "" {
		return 0, false
	}

	if !common.IsHexAddress(inputToken) {
		return 0, false
	}
	return g.registry.EstimateUSDValue(common.HexToAddress(inputToken), amountStr)
}

// OnRequest implements pipeline.Guard.
func (g *Guard) OnRequest(ctx context.Context, call pipeline.ToolCallContext) (pipeline.Decision, error) {
	if call.ToolName != toolOdosSwap {
		return pipeline.Allow(), nil
	}

	var args map[string]any
	if err := json.Unmarshal(call.Args, &args); err != nil {
		return pipeline.Allow(), nil
	}
	if action, _ := args["action"].(string); action != actionPrepareSwap {
		return pipeline.Allow(), nil
	}

	tradeValue, ok := g.estimateTradeValue(args)
	if !ok {
		if g.mode == FailClosed {
			return pipeline.Block("Cannot determine USD value for spend limit check. Provide amount_usd parameter or use a known token."), nil
		}
		return pipeline.Allow(), nil
	}

	if tradeValue > g.maxPerTrade {
		return pipeline.Block(fmt.Sprintf("Trade value $%.2f exceeds per-trade limit of $%.2f", tradeValue, g.maxPerTrade)), nil
	}

	g.mu.Lock()
	currentDaily := g.daily.currentTotal()
	g.mu.Unlock()

	if currentDaily+tradeValue > g.maxDaily {
		return pipeline.Block(fmt.Sprintf("Trade would exceed daily limit. Current: $%.2f, This trade: $%.2f, Limit: $%.2f", currentDaily, tradeValue, g.maxDaily)), nil
	}

	return pipeline.Allow(), nil
}

// OnComplete implements pipeline.Guard: successful prepare_swap calls are
// added to the daily tracker.
func (g *Guard) OnComplete(ctx context.Context, call pipeline.ToolCallContext, result json.RawMessage, callErr error, duration time.Duration) {
	if call.ToolName != toolOdosSwap || callErr != nil {
		return
	}

	var args map[string]any
	if err := json.Unmarshal(call.Args, &args); err != nil {
		return
	}
	if action, _ := args["action"].(string); action != actionPrepareSwap {
		return
	}

	tradeValue, ok := g.estimateTradeValue(args)
	if !ok {
		return
	}

	g.mu.Lock()
	g.daily.add(tradeValue)
	g.mu.Unlock()
}
