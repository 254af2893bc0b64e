// Package simulator performs pre-flight eth_call + gas-estimate probes
// against a chain's RPC before any transaction is signed, and best-effort
// decodes a revert reason when the call fails.
package simulator

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/jojoalpha/agent-harness/internal/harnesserr"
)

// errorSelector is the 4-byte selector for Solidity's `Error(string)`.
const errorSelector = "08c379a0"

// Request describes a transaction to simulate without submitting it.
type Request struct {
	From  *common.Address
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Result is the outcome of a simulation. Success=false (the call reverted)
// is not an error — Simulate never fails because the chain rejected the
// call, only because the probe itself could not be issued.
type Result struct {
	Success      bool
	GasUsed      *uint64
	RevertReason *string
	ReturnData   []byte
}

// Simulator issues eth_call + EstimateGas against one chain's RPC endpoint.
type Simulator struct {
	rpcURL  string
	chainID uint64
}

// New constructs a Simulator bound to rpcURL for chainID.
func New(rpcURL string, chainID uint64) (*Simulator, error) {
	if rpcURL == "" {
		return nil, harnesserr.New(harnesserr.Simulation, "no RPC URL configured for chain")
	}
	return &Simulator{rpcURL: rpcURL, chainID: chainID}, nil
}

// Simulate performs the eth_call and gas estimate for req. A reverted call
// is reported as Result{Success:false, RevertReason:...}, not an error.
func (s *Simulator) Simulate(ctx context.Context, req Request) (Result, error) {
	client, err := ethclient.DialContext(ctx, s.rpcURL)
	if err != nil {
		return Result{}, harnesserr.NewWithCause(harnesserr.Simulation, "failed to connect to RPC", err)
	}
	defer client.Close()

	msg := ethereum.CallMsg{From: addrOrZero(req.From), To: &req.To, Data: req.Data, Value: req.Value}

	returnData, callErr := client.CallContract(ctx, msg, nil)
	if callErr != nil {
		var rpcErr rpc.Error
		if !errors.As(callErr, &rpcErr) {
			return Result{}, harnesserr.NewWithCause(harnesserr.Simulation, "eth_call could not be issued", callErr)
		}
		reason := parseRevertReason(callErr.Error())
		return Result{Success: false, RevertReason: &reason}, nil
	}

	gas, gasErr := client.EstimateGas(ctx, msg)
	if gasErr != nil {
		var rpcErr rpc.Error
		if !errors.As(gasErr, &rpcErr) {
			return Result{}, harnesserr.NewWithCause(harnesserr.Simulation, "gas estimate could not be issued", gasErr)
		}
		reason := parseRevertReason(gasErr.Error())
		return Result{Success: false, RevertReason: &reason}, nil
	}

	return Result{Success: true, GasUsed: &gas, ReturnData: returnData}, nil
}

func addrOrZero(a *common.Address) common.Address {
	if a == nil {
		return common.Address{}
	}
	return *a
}

// parseRevertReason follows a best-effort ladder: (1) textual "revert: "
// extraction; (2) ABI Error(string) selector decode; (3) hex passthrough
// with a marker; (4) the raw message.
func parseRevertReason(raw string) string {
	if idx := strings.Index(raw, "revert: "); idx != -1 {
		reason := strings.TrimSpace(raw[idx+len("revert: "):])
		return strings.Trim(reason, `"'`)
	}

	if hexData, ok := extractHexData(raw); ok {
		if decoded, ok := decodeErrorString(hexData); ok {
			return decoded
		}
		return fmt.Sprintf("Reverted with data: %s", hexData)
	}

	return raw
}

// extractHexData pulls a 0x-prefixed hex blob out of an RPC error message,
// if one is present.
func extractHexData(raw string) (string, bool) {
	idx := strings.Index(raw, "0x")
	if idx == -1 {
		return "", false
	}
	end := idx + 2
	for end < len(raw) && isHexChar(raw[end]) {
		end++
	}
	if end-idx <= 2 {
		return "", false
	}
	return raw[idx:end], true
}

func isHexChar(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// decodeErrorString decodes an ABI-encoded Error(string) revert payload:
// 4-byte selector + 32-byte offset + 32-byte length + UTF-8 payload.
func decodeErrorString(hexData string) (string, bool) {
	data := strings.TrimPrefix(hexData, "0x")
	if len(data) < 8 || data[:8] != errorSelector {
		return "", false
	}
	raw, err := hex.DecodeString(data[8:])
	if err != nil || len(raw) < 64 {
		return "", false
	}
	lengthWord := raw[32:64]
	length, err := strconv.ParseUint(hex.EncodeToString(trimLeadingZeros(lengthWord)), 16, 64)
	if err != nil {
		return "", false
	}
	if uint64(len(raw)) < 64+length {
		return "", false
	}
	return string(raw[64 : 64+length]), true
}

func trimLeadingZeros(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] == 0 {
		i++
	}
	if i == len(b) {
		return []byte{0}
	}
	return b[i:]
}
