package main

import (
	"context"
	"encoding/hex"
	"flag"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jojoalpha/agent-harness/internal/harnesserr"
	"github.com/jojoalpha/agent-harness/internal/rpcdir"
	"github.com/jojoalpha/agent-harness/internal/simulator"
	"github.com/jojoalpha/agent-harness/internal/subgraphconfig"
)

// simulateCommand runs a single eth_call + gas-estimate preflight against a
// chain's RPC, mirroring the simulation step every signed transaction goes
// through before dispatch.
func simulateCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	to := fs.String("to", "", "destination contract address")
	data := fs.String("data", "", "call data, hex encoded")
	from := fs.String("from", "", "sender address (optional)")
	value := fs.String("value", "0", "value in wei (decimal)")
	network := fs.String("network", "ethereum", "network")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *to == "" {
		return harnesserr.New(harnesserr.InvalidArgument, "missing --to")
	}

	callData, err := hex.DecodeString(strings.TrimPrefix(*data, "0x"))
	if err != nil {
		return harnesserr.NewWithCause(harnesserr.InvalidArgument, "invalid --data hex", err)
	}

	toAddr := common.HexToAddress(*to)
	var fromAddr *common.Address
	if *from != "" {
		addr := common.HexToAddress(*from)
		fromAddr = &addr
	}

	weiValue, ok := new(big.Int).SetString(*value, 10)
	if !ok {
		return harnesserr.Errorf(harnesserr.InvalidArgument, "invalid --value %q", *value)
	}

	net, ok := subgraphconfig.ParseNetwork(*network)
	if !ok {
		return harnesserr.Errorf(harnesserr.InvalidArgument, "unknown --network %q", *network)
	}
	rpc := rpcdir.FromEnv()
	rpcURL, ok := rpc.Get(net.ChainID())
	if !ok {
		return harnesserr.Errorf(harnesserr.Config, "no RPC URL resolved for chain %d", net.ChainID())
	}

	sim, err := simulator.New(rpcURL, net.ChainID())
	if err != nil {
		return err
	}

	result, err := sim.Simulate(ctx, simulator.Request{From: fromAddr, To: toAddr, Data: callData, Value: weiValue})
	if err != nil {
		return err
	}

	out := map[string]any{"success": result.Success}
	if result.GasUsed != nil {
		out["gas_used"] = *result.GasUsed
	}
	if result.RevertReason != nil {
		out["revert_reason"] = *result.RevertReason
	}
	if len(result.ReturnData) > 0 {
		out["return_data"] = "0x" + hex.EncodeToString(result.ReturnData)
	}
	return printJSON(out)
}
