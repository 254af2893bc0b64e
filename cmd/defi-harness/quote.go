package main

import (
	"context"
	"encoding/json"
	"flag"

	"golang.org/x/time/rate"

	"github.com/jojoalpha/agent-harness/internal/harnesserr"
	"github.com/jojoalpha/agent-harness/internal/odos"
	"github.com/jojoalpha/agent-harness/internal/tools/dexswap"
	"github.com/jojoalpha/agent-harness/internal/wallet"
)

// quoteCommand issues a single odos_swap quote action and prints the Odos
// route, without preparing or signing a transaction.
func quoteCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("quote", flag.ContinueOnError)
	input := fs.String("input", "", "input token address")
	output := fs.String("output", "", "output token address")
	amount := fs.String("amount", "", "input amount in wei")
	network := fs.String("network", "ethereum", "network")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" || *output == "" || *amount == "" {
		return harnesserr.New(harnesserr.InvalidArgument, "missing --input, --output, or --amount")
	}

	client := odos.New(nil, rate.NewLimiter(rate.Limit(5), 5))
	tool := dexswap.New(client, resolveWalletAddress())

	reqArgs, err := json.Marshal(map[string]any{
		"action":       "quote",
		"input_token":  *input,
		"output_token": *output,
		"amount":       *amount,
		"network":      *network,
	})
	if err != nil {
		return err
	}

	result, err := tool.Execute(ctx, reqArgs)
	if err != nil {
		return err
	}
	return printJSON(result)
}

// resolveWalletAddress returns the configured wallet's public address, or
// an empty string when no wallet secret is configured. Quotes do not
// require a wallet; Odos only uses the address to tailor routing.
func resolveWalletAddress() string {
	w, err := wallet.FromEnv("WALLET_PRIVATE_KEY", true)
	if err != nil {
		return ""
	}
	return w.AddressString()
}
