// Package rpcdir resolves a chain ID to an RPC URL using a fixed priority
// chain: an explicit per-chain environment override, then a single
// configured provider API key (which deterministically builds the full set
// of URLs it supports), then a public fallback endpoint. This package never
// logs provider API keys; Chains returns only chain IDs, while the URLs
// returned by Get and ToMap embed the key.
package rpcdir

import (
	"os"
	"strconv"
)

// Chain ID constants for the networks this directory resolves.
const (
	Ethereum = 1
	Arbitrum = 42161
	Optimism = 10
	Base     = 8453
	Polygon  = 137
)

// Environment variable names recognized by FromEnv.
const (
	EnvEthRPCURL       = "ETH_RPC_URL"
	EnvArbitrumRPCURL  = "ARBITRUM_RPC_URL"
	EnvOptimismRPCURL  = "OPTIMISM_RPC_URL"
	EnvBaseRPCURL      = "BASE_RPC_URL"
	EnvPolygonRPCURL   = "POLYGON_RPC_URL"
	EnvAlchemyAPIKey   = "ALCHEMY_API_KEY"
	EnvInfuraAPIKey    = "INFURA_API_KEY"
	EnvQuickNodeAPIKey = "QUICKNODE_API_KEY"
	EnvQuickNodeSubdom = "QUICKNODE_SUBDOMAIN"
)

// publicRPCs are the fallback endpoints used when no override or provider
// key resolves a chain.
var publicRPCs = map[uint64]string{
	Ethereum: "https://eth.llamarpc.com",
	Arbitrum: "https://arb1.arbitrum.io/rpc",
	Optimism: "https://mainnet.optimism.io",
	Base:     "https://mainnet.base.org",
	Polygon:  "https://polygon-rpc.com",
}

var chainEnvOverride = map[uint64]string{
	Ethereum: EnvEthRPCURL,
	Arbitrum: EnvArbitrumRPCURL,
	Optimism: EnvOptimismRPCURL,
	Base:     EnvBaseRPCURL,
	Polygon:  EnvPolygonRPCURL,
}

// Directory is a resolved, immutable chain-id -> URL map for one process.
type Directory struct {
	urls map[uint64]string
}

// FromEnv builds a Directory from the current process environment following
// the priority chain: per-chain override env var; else a provider key
// (Alchemy first, then Infura, then QuickNode) builds its full supported
// chain set; else the public fallback fills any remaining gaps.
func FromEnv() *Directory {
	urls := map[uint64]string{}

	if key := os.Getenv(EnvAlchemyAPIKey); key != "" {
		urls[Ethereum] = "https://eth-mainnet.g.alchemy.com/v2/" + key
		urls[Arbitrum] = "https://arb-mainnet.g.alchemy.com/v2/" + key
		urls[Optimism] = "https://opt-mainnet.g.alchemy.com/v2/" + key
		urls[Base] = "https://base-mainnet.g.alchemy.com/v2/" + key
		urls[Polygon] = "https://polygon-mainnet.g.alchemy.com/v2/" + key
	} else if key := os.Getenv(EnvInfuraAPIKey); key != "" {
		urls[Ethereum] = "https://mainnet.infura.io/v3/" + key
		urls[Arbitrum] = "https://arbitrum-mainnet.infura.io/v3/" + key
		urls[Optimism] = "https://optimism-mainnet.infura.io/v3/" + key
		urls[Polygon] = "https://polygon-mainnet.infura.io/v3/" + key
		// Infura has no Base endpoint in this directory's supported set.
	} else if key := os.Getenv(EnvQuickNodeAPIKey); key != "" {
		if subdomain := os.Getenv(EnvQuickNodeSubdom); subdomain != "" {
			urls[Ethereum] = "https://" + subdomain + ".quiknode.pro/" + key + "/"
		}
	}

	// Public fallback fills any chain not already resolved by a provider key.
	for chainID, url := range publicRPCs {
		if _, ok := urls[chainID]; !ok {
			urls[chainID] = url
		}
	}

	// Explicit per-chain overrides win over everything else.
	for chainID, envVar := range chainEnvOverride {
		if url := os.Getenv(envVar); url != "" {
			urls[chainID] = url
		}
	}

	return &Directory{urls: urls}
}

// Get returns the resolved RPC URL for chainID, if any.
func (d *Directory) Get(chainID uint64) (string, bool) {
	url, ok := d.urls[chainID]
	return url, ok
}

// Chains returns the set of chain IDs this directory has a URL for.
func (d *Directory) Chains() []uint64 {
	out := make([]uint64, 0, len(d.urls))
	for chainID := range d.urls {
		out = append(out, chainID)
	}
	return out
}

// HasChain reports whether chainID resolves.
func (d *Directory) HasChain(chainID uint64) bool {
	_, ok := d.urls[chainID]
	return ok
}

// ToMap returns a copy of the resolved chain-id -> URL map, for debug-only
// listing. Provider API keys embedded in URLs are the caller's
// responsibility not to log verbatim; callers intending to print this map
// for diagnostics should redact query/path segments that look like keys.
func (d *Directory) ToMap() map[uint64]string {
	out := make(map[uint64]string, len(d.urls))
	for k, v := range d.urls {
		out[k] = v
	}
	return out
}

// ParseChainID parses s as an unsigned chain ID.
func ParseChainID(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
