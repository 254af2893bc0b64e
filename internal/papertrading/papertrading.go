// Package papertrading implements the Paper Portfolio (C13): hypothetical
// holdings, executed trade history, and P&L metrics for dry-run trading.
// Adapted from original_source/src/paper_trading/portfolio.rs, with
// holdings kept as *big.Int (matching the original's U256 smallest-unit
// amounts) and USD valuation done by big.Float division against
// 10^decimals, with decimals looked up in the shared internal/tokens
// registry (18 for unknown tokens).
package papertrading

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jojoalpha/agent-harness/internal/harnesserr"
	"github.com/jojoalpha/agent-harness/internal/tokens"
)

// Trade is one executed paper swap.
type Trade struct {
	Timestamp       time.Time      `json:"timestamp"`
	InputToken      common.Address `json:"input_token"`
	OutputToken     common.Address `json:"output_token"`
	InputAmount     string         `json:"input_amount"`
	OutputAmount    string         `json:"output_amount"`
	InputPriceUSD   float64        `json:"input_price_usd"`
	OutputPriceUSD  float64        `json:"output_price_usd"`
	TradeValueUSD   float64        `json:"trade_value_usd"`
	ExpectedOutput  string         `json:"expected_output"`
	ChainID         uint64         `json:"chain_id"`
	RealizedPnLUSD  *float64       `json:"realized_pnl_usd,omitempty"`
}

// Metrics is the current P&L and performance aggregate.
type Metrics struct {
	RealizedPnLUSD   float64 `json:"realized_pnl_usd"`
	UnrealizedPnLUSD float64 `json:"unrealized_pnl_usd"`
	TotalPnLUSD      float64 `json:"total_pnl_usd"`
	TotalPnLPercent  float64 `json:"total_pnl_percent"`
	WinningTrades    uint32  `json:"winning_trades"`
	LosingTrades     uint32  `json:"losing_trades"`
	WinRate          float64 `json:"win_rate"`
	TotalVolumeUSD   float64 `json:"total_volume_usd"`
	TotalTrades      uint32  `json:"total_trades"`
}

// snapshot is the JSON-serializable form of a Portfolio, used both for the
// --paper-state-file persistence format and for JSON responses.
type snapshot struct {
	InitialUSD float64                   `json:"initial_usd"`
	Holdings   map[string]string         `json:"holdings"`
	Trades     []Trade                   `json:"trades"`
	Metrics    Metrics                   `json:"metrics"`
	Prices     map[string]float64        `json:"prices"`
	CreatedAt  time.Time                 `json:"created_at"`
	UpdatedAt  time.Time                 `json:"updated_at"`
}

// Portfolio is a simulated trading account. All state is protected by mu;
// it is reentrant-safe per spec.md §5.
type Portfolio struct {
	mu sync.Mutex

	initialUSD float64
	holdings   map[common.Address]*big.Int
	trades     []Trade
	metrics    Metrics
	prices     map[common.Address]float64
	createdAt  time.Time
	updatedAt  time.Time

	registry *tokens.Registry
}

// New creates a portfolio seeded with initialUSD worth of Ethereum USDC.
func New(initialUSD float64) *Portfolio {
	now := time.Now().UTC()
	usdcAmount := new(big.Int).SetUint64(uint64(initialUSD * 1_000_000.0))

	return &Portfolio{
		initialUSD: initialUSD,
		holdings:   map[common.Address]*big.Int{tokens.USDCEth: usdcAmount},
		prices:     map[common.Address]float64{tokens.USDCEth: 1.0},
		createdAt:  now,
		updatedAt:  now,
		registry:   tokens.Global(),
	}
}

func (p *Portfolio) decimalsFor(addr common.Address) uint8 {
	if info, ok := p.registry.Get(addr); ok {
		return info.Decimals
	}
	return 18
}

func calculateUSDValue(amount *big.Int, decimals uint8, priceUSD float64) float64 {
	amountFloat := new(big.Float).SetInt(amount)
	divisor := new(big.Float).SetFloat64(1)
	ten := big.NewFloat(10)
	for i := uint8(0); i < decimals; i++ {
		divisor.Mul(divisor, ten)
	}
	tokenAmount := new(big.Float).Quo(amountFloat, divisor)
	f, _ := tokenAmount.Float64()
	return f * priceUSD
}

// ExecuteSwap debits inputAmount of inputToken and credits expectedOutput of
// outputToken, recording a Trade and recalculating metrics. Returns a
// ToolExecution error (without mutating state) if the balance is
// insufficient.
func (p *Portfolio) ExecuteSwap(inputToken, outputToken common.Address, inputAmount, expectedOutput *big.Int, inputPriceUSD, outputPriceUSD float64, chainID uint64) (Trade, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, ok := p.holdings[inputToken]
	if !ok {
		current = big.NewInt(0)
	}
	if current.Cmp(inputAmount) < 0 {
		return Trade{}, harnesserr.New(harnesserr.ToolExecution, fmt.Sprintf("insufficient balance: have %s but need %s", current.String(), inputAmount.String()))
	}

	newInputBalance := new(big.Int).Sub(current, inputAmount)
	if newInputBalance.Sign() == 0 {
		delete(p.holdings, inputToken)
	} else {
		p.holdings[inputToken] = newInputBalance
	}

	currentOutput, ok := p.holdings[outputToken]
	if !ok {
		currentOutput = big.NewInt(0)
	}
	p.holdings[outputToken] = new(big.Int).Add(currentOutput, expectedOutput)

	p.prices[inputToken] = inputPriceUSD
	p.prices[outputToken] = outputPriceUSD

	tradeValueUSD := calculateUSDValue(inputAmount, p.decimalsFor(inputToken), inputPriceUSD)

	trade := Trade{
		Timestamp:      time.Now().UTC(),
		InputToken:     inputToken,
		OutputToken:    outputToken,
		InputAmount:    inputAmount.String(),
		OutputAmount:   expectedOutput.String(),
		InputPriceUSD:  inputPriceUSD,
		OutputPriceUSD: outputPriceUSD,
		TradeValueUSD:  tradeValueUSD,
		ExpectedOutput: expectedOutput.String(),
		ChainID:        chainID,
	}
	p.trades = append(p.trades, trade)

	p.metrics.TotalTrades++
	p.metrics.TotalVolumeUSD += tradeValueUSD
	p.updatedAt = time.Now().UTC()

	p.recalculateMetrics()

	return trade, nil
}

// UpdatePrice records a new observed price for token, for unrealized P&L.
func (p *Portfolio) UpdatePrice(token common.Address, priceUSD float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[token] = priceUSD
	p.recalculateMetrics()
}

// recalculateMetrics must be called with mu held.
func (p *Portfolio) recalculateMetrics() {
	var totalValueUSD float64
	for token, amount := range p.holdings {
		if price, ok := p.prices[token]; ok {
			totalValueUSD += calculateUSDValue(amount, p.decimalsFor(token), price)
		}
	}

	p.metrics.UnrealizedPnLUSD = totalValueUSD - p.initialUSD
	p.metrics.TotalPnLUSD = p.metrics.RealizedPnLUSD + p.metrics.UnrealizedPnLUSD
	if p.initialUSD > 0 {
		p.metrics.TotalPnLPercent = (p.metrics.TotalPnLUSD / p.initialUSD) * 100.0
	}

	totalResultTrades := p.metrics.WinningTrades + p.metrics.LosingTrades
	if totalResultTrades > 0 {
		p.metrics.WinRate = float64(p.metrics.WinningTrades) / float64(totalResultTrades)
	}
}

// TotalValueUSD returns the current mark-to-market portfolio value.
func (p *Portfolio) TotalValueUSD() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var total float64
	for token, amount := range p.holdings {
		if price, ok := p.prices[token]; ok {
			total += calculateUSDValue(amount, p.decimalsFor(token), price)
		}
	}
	return total
}

// Metrics returns a copy of the current P&L metrics.
func (p *Portfolio) Metrics() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

// Trades returns a copy of the executed trade history.
func (p *Portfolio) Trades() []Trade {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Trade, len(p.trades))
	copy(out, p.trades)
	return out
}

// Balances returns a copy of the current per-token holdings.
func (p *Portfolio) Balances() map[common.Address]*big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[common.Address]*big.Int, len(p.holdings))
	for addr, amount := range p.holdings {
		out[addr] = new(big.Int).Set(amount)
	}
	return out
}

// InitialUSD returns the portfolio's seed value in USD.
func (p *Portfolio) InitialUSD() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialUSD
}

// CreatedAt returns when the portfolio was created.
func (p *Portfolio) CreatedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createdAt
}

// UpdatedAt returns when the portfolio was last mutated.
func (p *Portfolio) UpdatedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updatedAt
}

// DecimalsFor returns the known decimals for addr, defaulting to 18.
func (p *Portfolio) DecimalsFor(addr common.Address) uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.decimalsFor(addr)
}

func (p *Portfolio) toSnapshot() snapshot {
	holdings := make(map[string]string, len(p.holdings))
	for addr, amount := range p.holdings {
		holdings[addr.Hex()] = amount.String()
	}
	prices := make(map[string]float64, len(p.prices))
	for addr, price := range p.prices {
		prices[addr.Hex()] = price
	}
	return snapshot{
		InitialUSD: p.initialUSD,
		Holdings:   holdings,
		Trades:     append([]Trade(nil), p.trades...),
		Metrics:    p.metrics,
		Prices:     prices,
		CreatedAt:  p.createdAt,
		UpdatedAt:  p.updatedAt,
	}
}

// MarshalJSON persists the portfolio in the --paper-state-file format.
func (p *Portfolio) MarshalJSON() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return json.Marshal(p.toSnapshot())
}

// UnmarshalJSON restores a portfolio previously persisted by MarshalJSON.
func (p *Portfolio) UnmarshalJSON(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return harnesserr.NewWithCause(harnesserr.Config, "failed to parse paper trading snapshot", err)
	}

	holdings := make(map[common.Address]*big.Int, len(snap.Holdings))
	for addrHex, amountStr := range snap.Holdings {
		amount, ok := new(big.Int).SetString(amountStr, 10)
		if !ok {
			return harnesserr.New(harnesserr.Config, fmt.Sprintf("invalid holding amount %q for %s", amountStr, addrHex))
		}
		holdings[common.HexToAddress(addrHex)] = amount
	}
	prices := make(map[common.Address]float64, len(snap.Prices))
	for addrHex, price := range snap.Prices {
		prices[common.HexToAddress(addrHex)] = price
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.initialUSD = snap.InitialUSD
	p.holdings = holdings
	p.trades = snap.Trades
	p.metrics = snap.Metrics
	p.prices = prices
	p.createdAt = snap.CreatedAt
	p.updatedAt = snap.UpdatedAt
	if p.registry == nil {
		p.registry = tokens.Global()
	}
	return nil
}
