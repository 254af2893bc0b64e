// Package dexswap implements the odos_swap tool (T2): swap quotes,
// unsigned-transaction preparation, and token pricing via the Odos DEX
// aggregator. Adapted from original_source/src/tools/odos.rs. Mirrors the
// original's security invariant verbatim: this package only ever produces
// quotes and unsigned transaction envelopes, never a signature — signing
// happens in internal/wallet after interceptor approval.
package dexswap

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jojoalpha/agent-harness/internal/harnesserr"
	"github.com/jojoalpha/agent-harness/internal/odos"
	"github.com/jojoalpha/agent-harness/internal/tokens"
	"github.com/jojoalpha/agent-harness/internal/toolname"
	"github.com/jojoalpha/agent-harness/internal/toolspec"
)

const defaultSlippagePercent = 0.5

var usdcByChain = map[uint64]common.Address{
	tokens.Ethereum: tokens.USDCEth,
	tokens.Arbitrum: tokens.USDCArb,
	tokens.Optimism: tokens.USDCOpt,
	tokens.Base:     tokens.USDCBase,
}

var supportedChains = map[uint64]struct{}{
	1:     {}, // ethereum
	42161: {}, // arbitrum
	10:    {}, // optimism
	8453:  {}, // base
	137:   {}, // polygon
	43114: {}, // avalanche
	56:    {}, // bsc
}

func parseChainIDFromNetwork(network string) uint64 {
	switch strings.ToLower(network) {
	case "ethereum", "mainnet":
		return tokens.Ethereum
	case "arbitrum":
		return tokens.Arbitrum
	case "optimism":
		return tokens.Optimism
	case "base":
		return tokens.Base
	default:
		return tokens.Ethereum
	}
}

type args struct {
	Action          string   `json:"action"`
	InputToken      string   `json:"input_token"`
	OutputToken     string   `json:"output_token"`
	Amount          string   `json:"amount"`
	Token           string   `json:"token"`
	Tokens          []string `json:"tokens"`
	SlippagePercent *float64 `json:"slippage_percent"`
	ChainID         *uint64  `json:"chain_id"`
	Network         string   `json:"network"`
}

func (a args) resolveChainID() uint64 {
	if a.Network != "" {
		return parseChainIDFromNetwork(a.Network)
	}
	if a.ChainID != nil {
		return *a.ChainID
	}
	return tokens.Ethereum
}

func (a args) resolveSlippage() float64 {
	if a.SlippagePercent != nil {
		return *a.SlippagePercent
	}
	return defaultSlippagePercent
}

// Tool implements odos_swap: quote, prepare_swap, get_price, get_prices.
type Tool struct {
	client        *odos.Client
	walletAddress string
	registry      *tokens.Registry
}

// New constructs a Tool quoting on behalf of walletAddress (the public
// wallet address — never a private key).
func New(client *odos.Client, walletAddress string) *Tool {
	return &Tool{client: client, walletAddress: walletAddress, registry: tokens.Global()}
}

// Spec implements toolspec.Tool.
func (t *Tool) Spec() toolspec.Spec {
	return toolspec.Spec{
		Name:        toolname.MustParse("defi/odos_swap"),
		Description: "Interacts with the Odos DEX aggregator for swap routing and real-time pricing. Actions: quote, prepare_swap, get_price, get_prices.",
		Payload: toolspec.TypeSpec{Name: "OdosSwapArgs", Schema: []byte(`{
			"type":"object",
			"properties":{
				"action":{"type":"string","enum":["quote","prepare_swap","get_price","get_prices"]},
				"input_token":{"type":"string"},
				"output_token":{"type":"string"},
				"amount":{"type":"string"},
				"token":{"type":"string"},
				"tokens":{"type":"array","items":{"type":"string"}},
				"slippage_percent":{"type":"number"},
				"chain_id":{"type":"integer"},
				"network":{"type":"string"}
			},
			"required":["action"],
			"additionalProperties":false
		}`)},
	}
}

// Execute implements toolspec.Tool.
func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var a args
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.InvalidArgument, "invalid args", err)
	}

	var (
		result any
		err    error
	)
	switch a.Action {
	case "quote":
		result, err = t.quote(ctx, a)
	case "prepare_swap":
		result, err = t.prepareSwap(ctx, a)
	case "get_price":
		result, err = t.getPrice(ctx, a)
	case "get_prices":
		result, err = t.getPrices(ctx, a)
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

func (t *Tool) quote(ctx context.Context, a args) (map[string]any, error) {
	if err := requireNonEmpty("input_token", a.InputToken); err != nil {
		return nil, err
	}
	if err := requireNonEmpty("output_token", a.OutputToken); err != nil {
		return nil, err
	}
	if err := requireNonEmpty("amount", a.Amount); err != nil {
		return nil, err
	}

	chainID := a.resolveChainID()
	if err := requireSupportedChain(chainID); err != nil {
		return nil, err
	}
	resp, err := t.client.Quote(ctx, odos.QuoteRequest{
		ChainID:         chainID,
		InputToken:      a.InputToken,
		InputAmount:     a.Amount,
		OutputToken:     a.OutputToken,
		UserAddr:        t.walletAddress,
		SlippagePercent: a.resolveSlippage(),
	})
	if err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.ToolExecution, "Odos quote failed", err)
	}

	return map[string]any{
		"action":                "quote",
		"input_token":           a.InputToken,
		"output_token":          a.OutputToken,
		"input_amount":          a.Amount,
		"output_amount":         firstOrZero(resp.OutAmounts),
		"price_impact_percent":  resp.PriceImpact,
		"gas_estimate":          resp.GasEstimate,
		"path_id":               resp.PathID,
	}, nil
}

func (t *Tool) prepareSwap(ctx context.Context, a args) (map[string]any, error) {
	if err := requireNonEmpty("input_token", a.InputToken); err != nil {
		return nil, err
	}
	if err := requireNonEmpty("output_token", a.OutputToken); err != nil {
		return nil, err
	}
	if err := requireNonEmpty("amount", a.Amount); err != nil {
		return nil, err
	}

	chainID := a.resolveChainID()
	if err := requireSupportedChain(chainID); err != nil {
		return nil, err
	}
	slippage := a.resolveSlippage()

	quoteResp, err := t.client.Quote(ctx, odos.QuoteRequest{
		ChainID:         chainID,
		InputToken:      a.InputToken,
		InputAmount:     a.Amount,
		OutputToken:     a.OutputToken,
		UserAddr:        t.walletAddress,
		SlippagePercent: slippage,
	})
	if err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.ToolExecution, "Odos quote failed", err)
	}

	assembleResp, err := t.client.Assemble(ctx, odos.AssembleRequest{
		PathID:   quoteResp.PathID,
		UserAddr: t.walletAddress,
	})
	if err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.ToolExecution, "Odos transaction assembly failed", err)
	}

	// Returns the prepared transaction envelope — NOT signed.
	return map[string]any{
		"action": "prepare_swap",
		"status": "prepared_pending_execution",
		"transaction": map[string]any{
			"to":        assembleResp.Transaction.To,
			"data":      assembleResp.Transaction.Data,
			"value":     assembleResp.Transaction.Value,
			"gas_limit": assembleResp.Transaction.GasLimit,
			"chain_id":  chainID,
		},
		"quote_details": map[string]any{
			"input_token":          a.InputToken,
			"output_token":         a.OutputToken,
			"input_amount":         a.Amount,
			"expected_output":      firstOrZero(quoteResp.OutAmounts),
			"price_impact_percent": quoteResp.PriceImpact,
		},
		"path_id": quoteResp.PathID,
		"note":    "Transaction prepared but NOT signed. Requires interceptor approval and wallet signature.",
	}, nil
}

func (t *Tool) getPrice(ctx context.Context, a args) (map[string]any, error) {
	if err := requireNonEmpty("token", a.Token); err != nil {
		return nil, err
	}
	return t.priceForToken(ctx, a.Token, a.resolveChainID())
}

// priceForToken quotes 1 unit of token against the chain's USDC, short
// circuiting to $1 for known stablecoins without an API call.
func (t *Tool) priceForToken(ctx context.Context, token string, chainID uint64) (map[string]any, error) {
	if !common.IsHexAddress(token) {
		return nil, harnesserr.Errorf(harnesserr.InvalidArgument, "invalid token address %q", token)
	}
	tokenAddr := common.HexToAddress(token)

	if info, ok := t.registry.Get(tokenAddr); ok && info.IsStablecoin {
		return map[string]any{
			"action":    "get_price",
			"token":     token,
			"symbol":    info.Symbol,
			"price_usd": 1.0,
			"source":    "stablecoin",
			"chain_id":  chainID,
		}, nil
	}

	usdcAddr, ok := usdcByChain[chainID]
	if !ok {
		return nil, harnesserr.Errorf(harnesserr.InvalidArgument, "no USDC address for chain %d", chainID)
	}

	decimals := uint8(18)
	symbol := "UNKNOWN"
	if info, ok := t.registry.Get(tokenAddr); ok {
		decimals = info.Decimals
		symbol = info.Symbol
	}

	oneUnit := new(strings.Builder)
	oneUnit.WriteByte('1')
	for i := uint8(0); i < decimals; i++ {
		oneUnit.WriteByte('0')
	}

	quoteResp, err := t.client.Quote(ctx, odos.QuoteRequest{
		ChainID:         chainID,
		InputToken:      token,
		InputAmount:     oneUnit.String(),
		OutputToken:     usdcAddr.Hex(),
		UserAddr:        t.walletAddress,
		SlippagePercent: 1.0, // small slippage just for price discovery
	})
	if err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.ToolExecution, "Odos price quote failed", err)
	}

	usdcOutRaw := firstOrZero(quoteResp.OutAmounts)
	usdcOut, _ := strconv.ParseFloat(usdcOutRaw, 64)
	priceUSD := usdcOut / 1_000_000.0 // USDC has 6 decimals

	return map[string]any{
		"action":                "get_price",
		"token":                 token,
		"symbol":                symbol,
		"price_usd":             priceUSD,
		"source":                "odos_quote",
		"chain_id":              chainID,
		"price_impact_percent":  quoteResp.PriceImpact,
	}, nil
}

func (t *Tool) getPrices(ctx context.Context, a args) (map[string]any, error) {
	if len(a.Tokens) == 0 {
		return nil, harnesserr.New(harnesserr.InvalidArgument, "missing 'tokens' array")
	}
	chainID := a.resolveChainID()

	prices := make([]map[string]any, 0, len(a.Tokens))
	for _, token := range a.Tokens {
		result, err := t.priceForToken(ctx, token, chainID)
		if err != nil {
			// A single token's failure is reported inline, not as a total failure.
			prices = append(prices, map[string]any{"token": token, "error": err.Error()})
			continue
		}
		prices = append(prices, result)
	}

	return map[string]any{
		"action":   "get_prices",
		"chain_id": chainID,
		"prices":   prices,
	}, nil
}

func firstOrZero(values []string) string {
	if len(values) == 0 {
		return "0"
	}
	return values[0]
}

func requireSupportedChain(chainID uint64) error {
	if _, ok := supportedChains[chainID]; !ok {
		return harnesserr.Errorf(harnesserr.InvalidArgument, "unsupported chain ID: %d", chainID)
	}
	return nil
}
