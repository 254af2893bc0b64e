package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/jojoalpha/agent-harness/internal/graphql"
	"github.com/jojoalpha/agent-harness/internal/harnesserr"
	"github.com/jojoalpha/agent-harness/internal/subgraphconfig"
	"github.com/jojoalpha/agent-harness/internal/tools/subgraph"
)

// queryCommand issues a single query_subgraph (T1) call and prints its
// result, without building a runner or a pipeline: a one-shot invocation
// for operators probing a subgraph directly.
func queryCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	protocol := fs.String("protocol", "uniswap_v3", "subgraph protocol")
	network := fs.String("network", "ethereum", "network")
	queryType := fs.String("query_type", "", "query_type: top_pools, pool_info, token_price, filtered_pools, query_plan")
	params := fs.String("params", "", "JSON params object for the query_type")
	apiKey := fs.String("graph_api_key", "", "The Graph gateway API key (defaults to GRAPH_API_KEY)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *queryType == "" {
		return harnesserr.New(harnesserr.InvalidArgument, "missing --query_type")
	}

	key := resolveGraphAPIKey(*apiKey)
	if key == "" {
		return harnesserr.New(harnesserr.Config, "no Graph API key configured: pass --graph_api_key or set GRAPH_API_KEY")
	}
	endpoints := subgraphconfig.WithAPIKey(key)

	client := graphql.New("", http.DefaultClient, rate.NewLimiter(rate.Limit(5), 5))
	tool := subgraph.New(client, endpoints)

	payload := map[string]any{
		"protocol":   *protocol,
		"network":    *network,
		"query_type": *queryType,
	}
	if *params != "" {
		var raw json.RawMessage
		if err := json.Unmarshal([]byte(*params), &raw); err != nil {
			return harnesserr.NewWithCause(harnesserr.InvalidArgument, "invalid --params JSON", err)
		}
		payload["params"] = raw
	}

	reqArgs, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	result, err := tool.Execute(ctx, reqArgs)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func resolveGraphAPIKey(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return envOrEmpty("GRAPH_API_KEY")
}
