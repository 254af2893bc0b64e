// Package tokens centralizes token metadata (address -> symbol, decimals,
// stablecoin flag, approximate price) so guards and tools share one source
// of truth instead of duplicating per-chain token tables.
package tokens

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Chain IDs for the networks this registry knows about.
const (
	Ethereum = 1
	Arbitrum = 42161
	Optimism = 10
	Base     = 8453
)

// Info is the static metadata the registry holds for one token address.
type Info struct {
	Symbol        string
	Decimals      uint8
	IsStablecoin  bool
	ApproxPriceUSD *float64
}

func stablecoin(symbol string, decimals uint8) Info {
	price := 1.0
	return Info{Symbol: symbol, Decimals: decimals, IsStablecoin: true, ApproxPriceUSD: &price}
}

func token(symbol string, decimals uint8, approxPrice *float64) Info {
	return Info{Symbol: symbol, Decimals: decimals, IsStablecoin: false, ApproxPriceUSD: approxPrice}
}

func price(p float64) *float64 { return &p }

// Well-known token addresses, ported from the original Rust token table
// (public on-chain data, not implementation-specific).
var (
	USDCEth = common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	USDTEth = common.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec7")
	DAIEth  = common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f")
	WETHEth = common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
	WBTCEth = common.HexToAddress("0x2260fac5e5542a773aa44fbcfedf7c193bc2c599")

	USDCArb   = common.HexToAddress("0xaf88d065e77c8cc2239327c5edb3a432268e5831")
	USDCeArb  = common.HexToAddress("0xff970a61a04b1ca14834a43f5de4533ebddb5cc8")
	USDTArb   = common.HexToAddress("0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9")
	DAIArb    = common.HexToAddress("0xda10009cbd5d07dd0cecc66161fc93d7c9000da1")
	WETHArb   = common.HexToAddress("0x82af49447d8a07e3bd95bd0d56f35241523fbab1")

	USDCOpt  = common.HexToAddress("0x0b2c639c533813f4aa9d7837caf62653d097ff85")
	USDCeOpt = common.HexToAddress("0x7f5c764cbc14f9669b88837ca1490cca17c31607")
	USDTOpt  = common.HexToAddress("0x94b008aa00579c1307b0ef2c499ad98a8ce58e58")
	WETHOpt  = common.HexToAddress("0x4200000000000000000000000000000000000006")

	USDCBase = common.HexToAddress("0x833589fcd6edb6e08f4c7c32d4f71b54bda02913")
	DAIBase  = common.HexToAddress("0x50c5725949a6f0c72e6c4a641f24049a917db0cb")
	WETHBase = common.HexToAddress("0x4200000000000000000000000000000000000006")

	NativeETH   = common.HexToAddress("0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")
	ZeroAddress = common.Address{}
)

// Registry provides token info lookups and is safe for concurrent use: all
// state is built once at construction and never mutated afterward.
type Registry struct {
	tokens        map[common.Address]Info
	tokensPerChain map[uint64][]common.Address
}

// New builds a registry populated with all well-known tokens.
func New() *Registry {
	t := map[common.Address]Info{
		USDCEth:  stablecoin("USDC", 6),
		USDCArb:  stablecoin("USDC", 6),
		USDCeArb: stablecoin("USDC.e", 6),
		USDCOpt:  stablecoin("USDC", 6),
		USDCeOpt: stablecoin("USDC.e", 6),
		USDCBase: stablecoin("USDC", 6),

		USDTEth: stablecoin("USDT", 6),
		USDTArb: stablecoin("USDT", 6),
		USDTOpt: stablecoin("USDT", 6),

		DAIEth:  stablecoin("DAI", 18),
		DAIArb:  stablecoin("DAI", 18),
		DAIBase: stablecoin("DAI", 18),

		WETHEth:  token("WETH", 18, price(3500.0)),
		WETHArb:  token("WETH", 18, price(3500.0)),
		WETHOpt:  token("WETH", 18, price(3500.0)),
		WETHBase: token("WETH", 18, price(3500.0)),

		WBTCEth: token("WBTC", 8, price(95000.0)),

		NativeETH:   token("ETH", 18, price(3500.0)),
		ZeroAddress: token("ETH", 18, price(3500.0)),
	}

	perChain := map[uint64][]common.Address{
		Ethereum: {USDCEth, USDTEth, WETHEth, DAIEth, WBTCEth},
		Arbitrum: {USDCArb, USDTArb, WETHArb, DAIArb},
		Optimism: {USDCOpt, USDTOpt, WETHOpt},
		Base:     {USDCBase, WETHBase, DAIBase},
	}

	return &Registry{tokens: t, tokensPerChain: perChain}
}

// Get returns the token info for addr, if known.
func (r *Registry) Get(addr common.Address) (Info, bool) {
	info, ok := r.tokens[addr]
	return info, ok
}

// GetByString parses addr as a hex address and looks it up. Returns false if
// addr does not parse as a valid address.
func (r *Registry) GetByString(addr string) (Info, bool) {
	if !common.IsHexAddress(addr) {
		return Info{}, false
	}
	return r.Get(common.HexToAddress(addr))
}

// TokensForChain returns the tokens the registry knows about for chainID, for
// use in balance-query fan-out. Returns nil for unknown chains.
func (r *Registry) TokensForChain(chainID uint64) []common.Address {
	return r.tokensPerChain[chainID]
}

// IsStablecoin reports whether addr is a known stablecoin.
func (r *Registry) IsStablecoin(addr common.Address) bool {
	info, ok := r.tokens[addr]
	return ok && info.IsStablecoin
}

// EstimateUSDValue estimates the USD value of rawAmount (a base-unit decimal
// string) of the token at addr. Returns (value, true) if the token is known
// and the amount parses; (0, false) otherwise, or if the token is a known
// non-stablecoin with no approximate price.
func (r *Registry) EstimateUSDValue(addr common.Address, rawAmount string) (float64, bool) {
	info, ok := r.tokens[addr]
	if !ok {
		return 0, false
	}
	amount, ok := new(big.Float).SetString(rawAmount)
	if !ok {
		return 0, false
	}
	divisor := new(big.Float).SetFloat64(1)
	ten := big.NewFloat(10)
	for i := uint8(0); i < info.Decimals; i++ {
		divisor.Mul(divisor, ten)
	}
	tokenAmount := new(big.Float).Quo(amount, divisor)
	f, _ := tokenAmount.Float64()

	if info.IsStablecoin {
		return f, true
	}
	if info.ApproxPriceUSD == nil {
		return 0, false
	}
	return f * *info.ApproxPriceUSD, true
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide lazily initialized registry.
func Global() *Registry {
	globalOnce.Do(func() { global = New() })
	return global
}
