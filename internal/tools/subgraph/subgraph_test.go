package subgraph_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jojoalpha/agent-harness/internal/graphql"
	"github.com/jojoalpha/agent-harness/internal/subgraphconfig"
	"github.com/jojoalpha/agent-harness/internal/tools/subgraph"
)

func newTestTool(t *testing.T, handler http.HandlerFunc) *subgraph.Tool {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := graphql.New(server.URL, server.Client(), nil)
	endpoints := subgraphconfig.WithUniswapV3Override(server.URL)
	return subgraph.New(client, endpoints)
}

func TestTopPoolsReturnsPoolsFromEndpoint(t *testing.T) {
	tool := newTestTool(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"pools":[{"id":"0xabc","feeTier":"3000"}]}}`))
	})

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"protocol":"uniswap_v3","network":"ethereum","query_type":"top_pools"}`))
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(out, &parsed))
	require.Equal(t, "uniswap_v3", parsed["protocol"])
	pools, ok := parsed["pools"].([]any)
	require.True(t, ok)
	require.Len(t, pools, 1)
}

func TestRejectsUnknownNetwork(t *testing.T) {
	tool := subgraph.New(graphql.New("https://example.invalid", nil, nil), subgraphconfig.WithAPIKey("k"))
	_, err := tool.Execute(context.Background(), json.RawMessage(`{"protocol":"uniswap_v3","network":"solana","query_type":"top_pools"}`))
	require.Error(t, err)
}

func TestRejectsUnsupportedProtocol(t *testing.T) {
	tool := subgraph.New(graphql.New("https://example.invalid", nil, nil), subgraphconfig.WithAPIKey("k"))
	_, err := tool.Execute(context.Background(), json.RawMessage(`{"protocol":"sushiswap","network":"ethereum","query_type":"top_pools"}`))
	require.Error(t, err)
}

func TestPoolInfoRequiresPoolID(t *testing.T) {
	tool := subgraph.New(graphql.New("https://example.invalid", nil, nil), subgraphconfig.WithAPIKey("k"))
	_, err := tool.Execute(context.Background(), json.RawMessage(`{"protocol":"uniswap_v3","network":"ethereum","query_type":"pool_info"}`))
	require.Error(t, err)
}

func TestFilteredPoolsAppliesTokenPairFilterClientSide(t *testing.T) {
	tool := newTestTool(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"pools":[
			{"id":"0x1","token0":{"symbol":"WETH"},"token1":{"symbol":"USDC"},"totalValueLockedUSD":"100","volumeUSD":"10"},
			{"id":"0x2","token0":{"symbol":"DAI"},"token1":{"symbol":"USDC"},"totalValueLockedUSD":"100","volumeUSD":"10"}
		]}}`))
	})

	out, err := tool.Execute(context.Background(), json.RawMessage(`{
		"protocol":"uniswap_v3","network":"ethereum","query_type":"filtered_pools",
		"params":{"filters":{"token_pairs":["WETH/USDC"]}}
	}`))
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(out, &parsed))
	pools, _ := parsed["pools"].([]any)
	require.Len(t, pools, 1)
}

func TestQueryPlanSkipsUnknownNetworksWithoutAborting(t *testing.T) {
	tool := newTestTool(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"pools":[]}}`))
	})

	out, err := tool.Execute(context.Background(), json.RawMessage(`{
		"protocol":"uniswap_v3","network":"ethereum","query_type":"query_plan",
		"params":{"query_plan":{
			"target_networks":["ethereum","marsnet"],
			"target_protocols":["uniswap_v3"],
			"data_filters":{},
			"query_priority":1,
			"expected_data_points":5
		}}
	}`))
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(out, &parsed))
	results, _ := parsed["results"].([]any)
	require.Len(t, results, 1) // only ethereum ran; marsnet skipped silently
}
