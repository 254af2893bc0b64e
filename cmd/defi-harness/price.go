package main

import (
	"context"
	"encoding/json"
	"flag"
	"strings"

	"golang.org/x/time/rate"

	"github.com/jojoalpha/agent-harness/internal/harnesserr"
	"github.com/jojoalpha/agent-harness/internal/odos"
	"github.com/jojoalpha/agent-harness/internal/tools/dexswap"
)

// priceCommand prints the USD price for one or more token addresses via
// odos_swap's get_price/get_prices actions, short-circuiting to $1 for
// known stablecoins without hitting Odos at all.
func priceCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("price", flag.ContinueOnError)
	tokenList := fs.String("token", "", "comma-separated token address(es)")
	network := fs.String("network", "ethereum", "network")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tokenList == "" {
		return harnesserr.New(harnesserr.InvalidArgument, "missing --token")
	}

	tokens := strings.Split(*tokenList, ",")
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}

	client := odos.New(nil, rate.NewLimiter(rate.Limit(5), 5))
	tool := dexswap.New(client, "")

	var payload map[string]any
	if len(tokens) == 1 {
		payload = map[string]any{"action": "get_price", "token": tokens[0], "network": *network}
	} else {
		payload = map[string]any{"action": "get_prices", "tokens": tokens, "network": *network}
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
