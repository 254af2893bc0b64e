// Package subgraphconfig resolves (network, protocol) pairs to The Graph
// subgraph endpoint URLs, grounded on original_source/src/config/mod.rs's
// Network/Protocol/SubgraphEndpoints/SubgraphIds.
package subgraphconfig

// Network is a chain The Graph endpoints are configured for.
type Network int

// Supported networks.
const (
	Ethereum Network = iota
	Arbitrum
	Optimism
	Base
)

// Name returns the lowercase network name used in tool args and results.
func (n Network) Name() string {
	switch n {
	case Ethereum:
		return "ethereum"
	case Arbitrum:
		return "arbitrum"
	case Optimism:
		return "optimism"
	case Base:
		return "base"
	default:
		return "unknown"
	}
}

// ChainID returns the EVM chain ID for n.
func (n Network) ChainID() uint64 {
	switch n {
	case Ethereum:
		return 1
	case Arbitrum:
		return 42161
	case Optimism:
		return 10
	case Base:
		return 8453
	default:
		return 0
	}
}

// ParseNetwork maps a query-args network string ("ethereum", "mainnet", ...)
// to a Network, or false if unrecognized.
func ParseNetwork(s string) (Network, bool) {
	switch s {
	case "ethereum", "mainnet":
		return Ethereum, true
	case "arbitrum":
		return Arbitrum, true
	case "optimism":
		return Optimism, true
	case "base":
		return Base, true
	default:
		return 0, false
	}
}

// Protocol is a DeFi protocol indexed by a subgraph.
type Protocol int

// Supported protocols.
const (
	UniswapV3 Protocol = iota
)

type endpointKey struct {
	network  Network
	protocol Protocol
}

// Uniswap V3 subgraph IDs on The Graph's decentralized network.
const (
	UniswapV3EthereumSubgraphID = "5zvR82QoaXYFyDEKLZ9t6v9adgnptxYpKpSbxtgVENFV"
	UniswapV3ArbitrumSubgraphID = "FbCGRftH4a3yZugY7TnbYgPJVEv2LvMT6oF1fxPe9aJM"
	UniswapV3OptimismSubgraphID = "Cghf4LfVqPiFw6fp6Y5X5Ubc8UpmUhSfJL82zwiBFLaj"
	UniswapV3BaseSubgraphID     = "43Hwfi3dJSoGpyas9VwNoDAv28pNwMgNGVi8CKNS9r6R"
)

var uniswapV3SubgraphIDs = map[Network]string{
	Ethereum: UniswapV3EthereumSubgraphID,
	Arbitrum: UniswapV3ArbitrumSubgraphID,
	Optimism: UniswapV3OptimismSubgraphID,
	Base:     UniswapV3BaseSubgraphID,
}

// Endpoints is an immutable (network, protocol) -> URL map for one process.
type Endpoints struct {
	urls map[endpointKey]string
}

// WithAPIKey builds the Uniswap V3 endpoint set against The Graph's gateway,
// authenticated with apiKey.
func WithAPIKey(apiKey string) Endpoints {
	urls := make(map[endpointKey]string, len(uniswapV3SubgraphIDs))
	for network, subgraphID := range uniswapV3SubgraphIDs {
		urls[endpointKey{network, UniswapV3}] = "https://gateway.thegraph.com/api/" + apiKey + "/subgraphs/id/" + subgraphID
	}
	return Endpoints{urls: urls}
}

// WithUniswapV3Override builds an endpoint set where every configured
// network's Uniswap V3 endpoint points at url, used to point the subgraph
// tool at a self-hosted gateway or a test server instead of the public
// decentralized-network gateway.
func WithUniswapV3Override(url string) Endpoints {
	urls := make(map[endpointKey]string, len(uniswapV3SubgraphIDs))
	for network := range uniswapV3SubgraphIDs {
		urls[endpointKey{network, UniswapV3}] = url
	}
	return Endpoints{urls: urls}
}

// Get resolves the endpoint URL for (network, protocol).
func (e Endpoints) Get(network Network, protocol Protocol) (string, bool) {
	url, ok := e.urls[endpointKey{network, protocol}]
	return url, ok
}

// SubgraphID returns the raw subgraph ID for (network, protocol), used by
// the gateway cache key and by query-routing hints.
func SubgraphID(network Network, protocol Protocol) (string, bool) {
	if protocol != UniswapV3 {
		return "", false
	}
	id, ok := uniswapV3SubgraphIDs[network]
	return id, ok
}
