// Package subgraph implements the query_subgraph tool (T1): pool, token
// price, and filtered-pool lookups against Uniswap V3's subgraphs on The
// Graph, with an optional query_plan fan-out across (network, protocol)
// pairs. Adapted from original_source/src/tools/the_graph.rs; queries run
// through internal/graphql directly, or through an internal/gateway.Gateway
// when one is configured for caching.
package subgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jojoalpha/agent-harness/internal/gateway"
	"github.com/jojoalpha/agent-harness/internal/graphql"
	"github.com/jojoalpha/agent-harness/internal/harnesserr"
	"github.com/jojoalpha/agent-harness/internal/subgraphconfig"
	"github.com/jojoalpha/agent-harness/internal/toolname"
	"github.com/jojoalpha/agent-harness/internal/toolspec"
)

// Filters are the server- and client-side pool filters accepted by the
// filtered_pools action.
type Filters struct {
	MinTVLUSD         *float64 `json:"min_tvl_usd,omitempty"`
	MinVolumeTVLRatio *float64 `json:"min_volume_tvl_ratio,omitempty"`
	TokenPairs        []string `json:"token_pairs,omitempty"`
	ExcludeTokens     []string `json:"exclude_tokens,omitempty"`
	MinVolume24hUSD   *float64 `json:"min_volume_24h_usd,omitempty"`
	FeeTiers          []int    `json:"fee_tiers,omitempty"`
}

// Plan is a full cross-(network,protocol) query plan, as produced by an
// upstream inference step and replayed here via the query_plan action.
type Plan struct {
	TargetNetworks      []string `json:"target_networks"`
	TargetProtocols     []string `json:"target_protocols"`
	DataFilters         Filters  `json:"data_filters"`
	QueryPriority       int      `json:"query_priority"`
	ExpectedDataPoints  int      `json:"expected_data_points"`
}

type requestArgs struct {
	Protocol  string          `json:"protocol"`
	Network   string          `json:"network"`
	QueryType string          `json:"query_type"`
	Params    json.RawMessage `json:"params"`
}

type params struct {
	Limit        *int            `json:"limit"`
	PoolID       string          `json:"pool_id"`
	TokenAddress string          `json:"token_address"`
	Filters      Filters         `json:"filters"`
	QueryPlan    json.RawMessage `json:"query_plan"`
}

// Tool implements query_subgraph. Queries are routed through gw when
// non-nil, falling back to direct client queries otherwise.
type Tool struct {
	client    *graphql.Client
	endpoints subgraphconfig.Endpoints
	gw        *gateway.Gateway
}

// New constructs a Tool with no caching: queries go straight through client.
func New(client *graphql.Client, endpoints subgraphconfig.Endpoints) *Tool {
	return &Tool{client: client, endpoints: endpoints}
}

// WithGateway attaches gw so queries are cached by (subgraph_id, query,
// variables) with a TTL, per spec.md §4.6.G.
func (t *Tool) WithGateway(gw *gateway.Gateway) *Tool {
	t.gw = gw
	return t
}

// Spec implements toolspec.Tool.
func (t *Tool) Spec() toolspec.Spec {
	return toolspec.Spec{
		Name:        toolname.MustParse("defi/query_subgraph"),
		Description: "Queries DeFi protocol subgraphs (Uniswap V3) for pool data, liquidity, prices, and trading volumes.",
		Payload: toolspec.TypeSpec{Name: "QuerySubgraphArgs", Schema: []byte(`{
			"type":"object",
			"properties":{
				"protocol":{"type":"string","enum":["uniswap_v3"]},
				"network":{"type":"string","enum":["ethereum","arbitrum","optimism","base"]},
				"query_type":{"type":"string","enum":["top_pools","pool_info","token_price","filtered_pools","query_plan"]},
				"params":{"type":"object"}
			},
			"required":["protocol","network","query_type"],
			"additionalProperties":false
		}`)},
	}
}

// Execute implements toolspec.Tool.
func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var req requestArgs
	if err := json.Unmarshal(args, &req); err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.InvalidArgument, "invalid args", err)
	}
	if req.Protocol != "uniswap_v3" {
		return nil, harnesserr.Errorf(harnesserr.InvalidArgument, "unsupported protocol %q", req.Protocol)
	}
	network, ok := subgraphconfig.ParseNetwork(req.Network)
	if !ok {
		return nil, harnesserr.Errorf(harnesserr.InvalidArgument, "unknown network %q", req.Network)
	}

	var p params
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, harnesserr.NewWithCause(harnesserr.InvalidArgument, "invalid params", err)
		}
	}

	var (
		result any
		err    error
	)
	switch req.QueryType {
	case "top_pools":
		limit := 10
		if p.Limit != nil {
			limit = *p.Limit
		}
		result, err = t.topPools(ctx, network, limit)
	case "pool_info":
		if p.PoolID == "" {
			return nil, harnesserr.New(harnesserr.InvalidArgument, "missing pool_id in params")
		}
		result, err = t.poolInfo(ctx, network, p.PoolID)
	case "token_price":
		if p.TokenAddress == "" {
			return nil, harnesserr.New(harnesserr.InvalidArgument, "missing token_address in params")
		}
		result, err = t.tokenPrice(ctx, network, p.TokenAddress)
	case "filtered_pools":
		limit := 10
		if p.Limit != nil {
			limit = *p.Limit
		}
		result, err = t.filteredPools(ctx, network, p.Filters, limit)
	case "query_plan":
		if len(p.QueryPlan) == 0 {
			return nil, harnesserr.New(harnesserr.InvalidArgument, "missing query_plan in params")
		}
		var plan Plan
		if jerr := json.Unmarshal(p.QueryPlan, &plan); jerr != nil {
			return nil, harnesserr.NewWithCause(harnesserr.InvalidArgument, "invalid query_plan", jerr)
		}
		result, err = t.executeQueryPlan(ctx, &plan)
	default:
		return nil, harnesserr.Errorf(harnesserr.InvalidArgument, "unsupported query_type %q", req.QueryType)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func (t *Tool) runQuery(ctx context.Context, network subgraphconfig.Network, query string, variables map[string]any) (map[string]any, error) {
	endpoint, ok := t.endpoints.Get(network, subgraphconfig.UniswapV3)
	if !ok {
		return nil, harnesserr.Errorf(harnesserr.InvalidArgument, "no Uniswap V3 endpoint configured for %s", network.Name())
	}

	var result map[string]any
	if t.gw != nil {
		subgraphID, ok := subgraphconfig.SubgraphID(network, subgraphconfig.UniswapV3)
		if ok {
			gwResult, err := t.gw.Query(ctx, subgraphID, graphql.Request{Query: query, Variables: variables}, false)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(gwResult.Data, &result); err != nil {
				return nil, harnesserr.NewWithCause(harnesserr.ToolExecution, "failed to decode gateway result", err)
			}
			return result, nil
		}
	}

	if err := t.client.QueryAt(ctx, endpoint, graphql.Request{Query: query, Variables: variables}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

const topPoolsQuery = `
query TopPools($first: Int!) {
	pools(first: $first, orderBy: totalValueLockedUSD, orderDirection: desc) {
		id
		token0 { id symbol name decimals }
		token1 { id symbol name decimals }
		feeTier
		liquidity
		sqrtPrice
		token0Price
		token1Price
		volumeUSD
		totalValueLockedUSD
		txCount
	}
}`

func (t *Tool) topPools(ctx context.Context, network subgraphconfig.Network, limit int) (map[string]any, error) {
	data, err := t.runQuery(ctx, network, topPoolsQuery, map[string]any{"first": limit})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"protocol": "uniswap_v3",
		"network":  network.Name(),
		"pools":    orEmptyList(data["pools"]),
	}, nil
}

const poolInfoQuery = `
query PoolById($id: ID!) {
	pool(id: $id) {
		id
		token0 { id symbol name decimals derivedETH }
		token1 { id symbol name decimals derivedETH }
		feeTier
		liquidity
		sqrtPrice
		tick
		token0Price
		token1Price
		volumeUSD
		totalValueLockedUSD
		txCount
	}
}`

func (t *Tool) poolInfo(ctx context.Context, network subgraphconfig.Network, poolID string) (map[string]any, error) {
	data, err := t.runQuery(ctx, network, poolInfoQuery, map[string]any{"id": poolID})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"protocol": "uniswap_v3",
		"network":  network.Name(),
		"pool":     data["pool"],
	}, nil
}

const tokenPriceQuery = `
query TokenPrice($id: ID!) {
	token(id: $id) { id symbol name decimals derivedETH volumeUSD totalValueLockedUSD }
	bundle(id: "1") { ethPriceUSD }
}`

func (t *Tool) tokenPrice(ctx context.Context, network subgraphconfig.Network, tokenAddress string) (map[string]any, error) {
	data, err := t.runQuery(ctx, network, tokenPriceQuery, map[string]any{"id": strings.ToLower(tokenAddress)})
	if err != nil {
		return nil, err
	}

	token, _ := data["token"].(map[string]any)
	bundle, _ := data["bundle"].(map[string]any)

	var priceUSD float64
	var ethPriceUSD any
	if token != nil && bundle != nil {
		derivedETH := parseFloatField(token["derivedETH"])
		ethPrice := parseFloatField(bundle["ethPriceUSD"])
		priceUSD = derivedETH * ethPrice
		ethPriceUSD = bundle["ethPriceUSD"]
	}

	return map[string]any{
		"network":       network.Name(),
		"token":         data["token"],
		"price_usd":     priceUSD,
		"eth_price_usd": ethPriceUSD,
	}, nil
}

func (t *Tool) filteredPools(ctx context.Context, network subgraphconfig.Network, filters Filters, limit int) (map[string]any, error) {
	var whereClauses []string
	if filters.MinTVLUSD != nil {
		whereClauses = append(whereClauses, fmt.Sprintf(`totalValueLockedUSD_gte: "%v"`, *filters.MinTVLUSD))
	}
	if filters.MinVolume24hUSD != nil {
		whereClauses = append(whereClauses, fmt.Sprintf(`volumeUSD_gte: "%v"`, *filters.MinVolume24hUSD))
	}
	if len(filters.FeeTiers) > 0 {
		tiers := make([]string, len(filters.FeeTiers))
		for i, tier := range filters.FeeTiers {
			tiers[i] = fmt.Sprintf("%d", tier)
		}
		whereClauses = append(whereClauses, fmt.Sprintf("feeTier_in: [%s]", strings.Join(tiers, ", ")))
	}

	whereClause := ""
	if len(whereClauses) > 0 {
		whereClause = fmt.Sprintf("where: { %s }", strings.Join(whereClauses, ", "))
	}

	query := fmt.Sprintf(`
query FilteredPools($first: Int!) {
	pools(first: $first, orderBy: totalValueLockedUSD, orderDirection: desc, %s) {
		id
		token0 { id symbol name decimals }
		token1 { id symbol name decimals }
		feeTier
		liquidity
		sqrtPrice
		token0Price
		token1Price
		volumeUSD
		totalValueLockedUSD
		txCount
	}
}`, whereClause)

	data, err := t.runQuery(ctx, network, query, map[string]any{"first": limit})
	if err != nil {
		return nil, err
	}

	pools, _ := data["pools"].([]any)
	pools = applyPostQueryFilters(pools, filters)

	return map[string]any{
		"protocol":       "uniswap_v3",
		"network":        network.Name(),
		"pools":          pools,
		"filters_applied": true,
		"count":          len(pools),
	}, nil
}

func applyPostQueryFilters(pools []any, filters Filters) []any {
	out := pools

	if filters.MinVolumeTVLRatio != nil {
		filtered := out[:0:0]
		for _, raw := range out {
			pool, _ := raw.(map[string]any)
			tvl := parseFloatField(pool["totalValueLockedUSD"])
			volume := parseFloatField(pool["volumeUSD"])
			if tvl > 0 && (volume/tvl) >= *filters.MinVolumeTVLRatio {
				filtered = append(filtered, raw)
			}
		}
		out = filtered
	}

	if len(filters.TokenPairs) > 0 {
		pairSet := make(map[string]struct{}, len(filters.TokenPairs))
		for _, pair := range filters.TokenPairs {
			pairSet[strings.ReplaceAll(strings.ToLower(pair), "/", "-")] = struct{}{}
		}
		filtered := out[:0:0]
		for _, raw := range out {
			pool, _ := raw.(map[string]any)
			token0 := symbolOf(pool, "token0")
			token1 := symbolOf(pool, "token1")
			pair1 := strings.ToLower(token0 + "-" + token1)
			pair2 := strings.ToLower(token1 + "-" + token0)
			_, ok1 := pairSet[pair1]
			_, ok2 := pairSet[pair2]
			if ok1 || ok2 {
				filtered = append(filtered, raw)
			}
		}
		out = filtered
	}

	if len(filters.ExcludeTokens) > 0 {
		excludeSet := make(map[string]struct{}, len(filters.ExcludeTokens))
		for _, addr := range filters.ExcludeTokens {
			excludeSet[strings.ToLower(addr)] = struct{}{}
		}
		filtered := out[:0:0]
		for _, raw := range out {
			pool, _ := raw.(map[string]any)
			token0ID := strings.ToLower(idOf(pool, "token0"))
			token1ID := strings.ToLower(idOf(pool, "token1"))
			_, excluded0 := excludeSet[token0ID]
			_, excluded1 := excludeSet[token1ID]
			if !excluded0 && !excluded1 {
				filtered = append(filtered, raw)
			}
		}
		out = filtered
	}

	return out
}

func symbolOf(pool map[string]any, field string) string {
	token, _ := pool[field].(map[string]any)
	symbol, _ := token["symbol"].(string)
	return symbol
}

func idOf(pool map[string]any, field string) string {
	token, _ := pool[field].(map[string]any)
	id, _ := token["id"].(string)
	return id
}

func (t *Tool) executeQueryPlan(ctx context.Context, plan *Plan) (map[string]any, error) {
	var results []map[string]any

	for _, networkStr := range plan.TargetNetworks {
		network, ok := subgraphconfig.ParseNetwork(networkStr)
		if !ok {
			continue // unknown network in plan: skip, don't abort the plan
		}

		for _, protocolStr := range plan.TargetProtocols {
			if protocolStr != "uniswap_v3" {
				continue
			}
			limit := clamp(plan.ExpectedDataPoints, 10, 100)
			data, err := t.filteredPools(ctx, network, plan.DataFilters, limit)
			if err != nil {
				// A failed cell is reported by omission, not by aborting the plan.
				continue
			}
			results = append(results, map[string]any{
				"network":  networkStr,
				"protocol": protocolStr,
				"data":     data,
			})
		}
	}

	return map[string]any{
		"query_plan": map[string]any{
			"target_networks":     plan.TargetNetworks,
			"target_protocols":    plan.TargetProtocols,
			"priority":            plan.QueryPriority,
			"expected_data_points": plan.ExpectedDataPoints,
		},
		"results": results,
	}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func orEmptyList(v any) any {
	if v == nil {
		return []any{}
	}
	return v
}

func parseFloatField(v any) float64 {
	s, ok := v.(string)
	if !ok {
		if f, ok := v.(float64); ok {
			return f
		}
		return 0
	}
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	if err != nil {
		return 0
	}
	return f
}
