// Package walletbalance implements the wallet_balance tool (T3): read-only
// native and ERC20 balance queries against a chain's RPC. Adapted from
// original_source/src/tools/wallet.rs. Never accesses private key material;
// the wallet address is public input.
package walletbalance

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/jojoalpha/agent-harness/internal/harnesserr"
	"github.com/jojoalpha/agent-harness/internal/rpcdir"
	"github.com/jojoalpha/agent-harness/internal/tokens"
	"github.com/jojoalpha/agent-harness/internal/toolname"
	"github.com/jojoalpha/agent-harness/internal/toolspec"
)

// balanceOfSelector is the 4-byte selector for ERC20's balanceOf(address).
const balanceOfSelector = "70a08231"

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

type requestArgs struct {
	Action       string `json:"action"`
	Network      string `json:"network"`
	ChainID      *uint64 `json:"chain_id"`
	TokenAddress string `json:"token_address"`
}

func (a requestArgs) resolveChainID() uint64 {
	if a.ChainID != nil {
		return *a.ChainID
	}
	if a.Network != "" {
		return parseChainIDFromNetwork(a.Network)
	}
	return tokens.Ethereum
}

// Tool implements wallet_balance: native_balance, token_balance,
// all_balances, each read-only.
type Tool struct {
	walletAddress common.Address
	rpc           *rpcdir.Directory
	registry      *tokens.Registry
}

// New constructs a Tool querying balances for walletAddress over rpc.
func New(walletAddress common.Address, rpc *rpcdir.Directory) *Tool {
	return &Tool{walletAddress: walletAddress, rpc: rpc, registry: tokens.Global()}
}

// Spec implements toolspec.Tool.
func (t *Tool) Spec() toolspec.Spec {
	return toolspec.Spec{
		Name:        toolname.MustParse("defi/wallet_balance"),
		Description: "Queries wallet balances for native ETH and ERC20 tokens (read-only).",
		Payload: toolspec.TypeSpec{Name: "WalletBalanceArgs", Schema: []byte(`{
			"type":"object",
			"properties":{
				"action":{"type":"string","enum":["native_balance","token_balance","all_balances"]},
				"network":{"type":"string"},
				"chain_id":{"type":"integer"},
				"token_address":{"type":"string"}
			},
			"required":["action"],
			"additionalProperties":false
		}`)},
	}
}

// Execute implements toolspec.Tool.
func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var a requestArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.InvalidArgument, "invalid args", err)
	}
	chainID := a.resolveChainID()

	var (
		result map[string]any
		err    error
	)
	switch a.Action {
	case "native_balance":
		result, err = t.nativeBalance(ctx, chainID)
	case "token_balance":
		if a.TokenAddress == "" {
			return nil, harnesserr.New(harnesserr.InvalidArgument, "missing token_address for token_balance action")
		}
		result, err = t.tokenBalance(ctx, chainID, a.TokenAddress)
	case "all_balances":
		result, err = t.allBalances(ctx, chainID)
	default:
		return nil, harnesserr.Errorf(harnesserr.InvalidArgument, "unsupported action %q", a.Action)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func (t *Tool) dial(ctx context.Context, chainID uint64) (*ethclient.Client, error) {
	rpcURL, ok := t.rpc.Get(chainID)
	if !ok {
		return nil, harnesserr.Errorf(harnesserr.InvalidArgument, "no RPC URL configured for chain %d", chainID)
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.ToolExecution, "failed to dial RPC", err)
	}
	return client, nil
}

func (t *Tool) nativeBalance(ctx context.Context, chainID uint64) (map[string]any, error) {
	client, err := t.dial(ctx, chainID)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	balance, err := client.BalanceAt(ctx, t.walletAddress, nil)
	if err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.ToolExecution, "failed to get balance", err)
	}

	return map[string]any{
		"token":              "ETH",
		"symbol":             "ETH",
		"balance_raw":        balance.String(),
		"balance_formatted":  formatUnits(balance, 18),
		"decimals":           18,
		"chain_id":           chainID,
		"is_native":          true,
	}, nil
}

func (t *Tool) tokenBalance(ctx context.Context, chainID uint64, tokenAddress string) (map[string]any, error) {
	if !common.IsHexAddress(tokenAddress) {
		return nil, harnesserr.Errorf(harnesserr.InvalidArgument, "invalid token address %q", tokenAddress)
	}
	tokenAddr := common.HexToAddress(tokenAddress)

	client, err := t.dial(ctx, chainID)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	calldata, err := hex.DecodeString(balanceOfSelector)
	if err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.ToolExecution, "failed to build calldata", err)
	}
	calldata = append(calldata, make([]byte, 12)...)
	calldata = append(calldata, t.walletAddress.Bytes()...)

	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddr, Data: calldata}, nil)
	if err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.ToolExecution, "failed to get token balance", err)
	}

	balance := new(big.Int)
	if len(result) >= 32 {
		balance.SetBytes(result[:32])
	}

	decimals := uint8(18)
	symbol := "UNKNOWN"
	if info, ok := t.registry.Get(tokenAddr); ok {
		decimals = info.Decimals
		symbol = info.Symbol
	}

	return map[string]any{
		"token":              tokenAddress,
		"symbol":             symbol,
		"balance_raw":        balance.String(),
		"balance_formatted":  formatUnits(balance, decimals),
		"decimals":           decimals,
		"chain_id":           chainID,
		"is_native":          false,
	}, nil
}

// allBalances queries native balance plus every registry token for chainID
// in parallel, dropping failed and zero balances from the output.
func (t *Tool) allBalances(ctx context.Context, chainID uint64) (map[string]any, error) {
	tokenAddrs := t.registry.TokensForChain(chainID)

	type queryResult struct {
		balance map[string]any
		ok      bool
	}

	results := make([]queryResult, len(tokenAddrs)+1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if bal, err := t.nativeBalance(ctx, chainID); err == nil {
			results[0] = queryResult{balance: bal, ok: true}
		}
	}()

	for i, addr := range tokenAddrs {
		i, addr := i, addr
		wg.Add(1)
		go func() {
			defer wg.Done()
			if bal, err := t.tokenBalance(ctx, chainID, addr.Hex()); err == nil {
				results[i+1] = queryResult{balance: bal, ok: true}
			}
		}()
	}
	wg.Wait()

	balances := make([]map[string]any, 0, len(results))
	for _, r := range results {
		if !r.ok {
			continue
		}
		if raw, ok := r.balance["balance_raw"].(string); ok && raw == "0" {
			continue
		}
		balances = append(balances, r.balance)
	}

	return map[string]any{
		"wallet":                t.walletAddress.Hex(),
		"chain_id":              chainID,
		"balances":              balances,
		"total_tokens_checked":  len(tokenAddrs) + 1,
	}, nil
}

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
