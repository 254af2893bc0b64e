// Package walletsigning implements the signing-ladder tools (T5-T7):
// wallet_derive_address, wallet_sign_message, wallet_sign_tx. Every
// signature is produced by internal/wallet.Wallet.SignHash, so private key
// material never reaches this package. Adapted from
// original_source/src/tools/wallet_signing.rs.
package walletsigning

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/jojoalpha/agent-harness/internal/harnesserr"
	"github.com/jojoalpha/agent-harness/internal/toolname"
	"github.com/jojoalpha/agent-harness/internal/toolspec"
	"github.com/jojoalpha/agent-harness/internal/wallet"
)

func decodeHex(input string) ([]byte, error) {
	trimmed := strings.TrimPrefix(input, "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.InvalidArgument, "invalid hex string", err)
	}
	return decoded, nil
}

func encodeHexPrefixed(data []byte) string {
	return "0x" + hex.EncodeToString(data)
}

// eip191HashMessage reproduces Ethereum's "personal_sign" prefix digest,
// matching alloy's eip191_hash_message used by the original tool.
func eip191HashMessage(message []byte) [32]byte {
	prefix := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(message))
	hashed := crypto.Keccak256([]byte(prefix), message)
	var out [32]byte
	copy(out[:], hashed)
	return out
}

// DeriveAddressTool implements wallet_derive_address: returns the wallet's
// public address. Read-only, never policy-gated.
type DeriveAddressTool struct {
	wallet *wallet.Wallet
}

// NewDeriveAddressTool constructs the tool.
func NewDeriveAddressTool(w *wallet.Wallet) *DeriveAddressTool {
	return &DeriveAddressTool{wallet: w}
}

// Spec implements toolspec.Tool.
func (t *DeriveAddressTool) Spec() toolspec.Spec {
	return toolspec.Spec{
		Name:        toolname.MustParse("defi/wallet_derive_address"),
		Description: "Derive the public wallet address (read-only).",
		Payload:     toolspec.TypeSpec{Name: "WalletDeriveAddressArgs", Schema: []byte(`{"type":"object","properties":{},"additionalProperties":false}`)},
	}
}

// Execute implements toolspec.Tool.
func (t *DeriveAddressTool) Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	return json.Marshal(map[string]string{"address": t.wallet.AddressString()})
}

// SignMessageTool implements wallet_sign_message: signs an EIP-191 digest
// of an arbitrary UTF-8 message.
type SignMessageTool struct {
	wallet *wallet.Wallet
}

// NewSignMessageTool constructs the tool.
func NewSignMessageTool(w *wallet.Wallet) *SignMessageTool {
	return &SignMessageTool{wallet: w}
}

// Spec implements toolspec.Tool.
func (t *SignMessageTool) Spec() toolspec.Spec {
	return toolspec.Spec{
		Name:        toolname.MustParse("defi/wallet_sign_message"),
		Description: "Sign an EIP-191 message (policy-gated). Returns signature and message hash.",
		Payload: toolspec.TypeSpec{Name: "WalletSignMessageArgs", Schema: []byte(`{
			"type":"object",
			"properties":{"message":{"type":"string"}},
			"required":["message"],
			"additionalProperties":false
		}`)},
	}
}

// Execute implements toolspec.Tool.
func (t *SignMessageTool) Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(args, &parsed); err != nil || parsed.Message == "" {
		return nil, harnesserr.New(harnesserr.InvalidArgument, "missing message")
	}

	hash := eip191HashMessage([]byte(parsed.Message))
	sig, err := t.wallet.SignHash(hash)
	if err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.ToolExecution, "signing failed", err)
	}

	return json.Marshal(map[string]string{
		"address":      t.wallet.AddressString(),
		"message_hash": encodeHexPrefixed(hash[:]),
		"signature":    encodeHexPrefixed(sig[:]),
	})
}

// SignTxTool implements wallet_sign_tx: signs a caller-supplied 32-byte
// hash, or keccak256-hashes raw transaction bytes first.
type SignTxTool struct {
	wallet *wallet.Wallet
}

// NewSignTxTool constructs the tool.
func NewSignTxTool(w *wallet.Wallet) *SignTxTool {
	return &SignTxTool{wallet: w}
}

// Spec implements toolspec.Tool.
func (t *SignTxTool) Spec() toolspec.Spec {
	return toolspec.Spec{
		Name:        toolname.MustParse("defi/wallet_sign_tx"),
		Description: "Sign a transaction hash or raw bytes (policy-gated). Returns signature and hash.",
		Payload: toolspec.TypeSpec{Name: "WalletSignTxArgs", Schema: []byte(`{
			"type":"object",
			"properties":{"tx_hash":{"type":"string"},"tx_bytes":{"type":"string"}},
			"oneOf":[{"required":["tx_hash"]},{"required":["tx_bytes"]}],
			"additionalProperties":false
		}`)},
	}
}

// Execute implements toolspec.Tool.
func (t *SignTxTool) Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var parsed struct {
		TxHash  string `json:"tx_hash"`
		TxBytes string `json:"tx_bytes"`
	}
	if err := json.Unmarshal(args, &parsed); err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.InvalidArgument, "invalid args", err)
	}
	if parsed.TxHash != "" && parsed.TxBytes != "" {
		return nil, harnesserr.New(harnesserr.InvalidArgument, "exactly one of tx_hash or tx_bytes")
	}

	var hash [32]byte
	var source string
	switch {
	case parsed.TxHash != "":
		decoded, err := decodeHex(parsed.TxHash)
		if err != nil {
			return nil, err
		}
		if len(decoded) != 32 {
			return nil, harnesserr.New(harnesserr.InvalidArgument, "tx_hash must be 32 bytes")
		}
		copy(hash[:], decoded)
		source = "tx_hash"
	case parsed.TxBytes != "":
		decoded, err := decodeHex(parsed.TxBytes)
		if err != nil {
			return nil, err
		}
		copy(hash[:], crypto.Keccak256(decoded))
		source = "tx_bytes"
	default:
		return nil, harnesserr.New(harnesserr.InvalidArgument, "missing tx_hash or tx_bytes")
	}

	sig, err := t.wallet.SignHash(hash)
	if err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.ToolExecution, "signing failed", err)
	}

	return json.Marshal(map[string]string{
		"address":     t.wallet.AddressString(),
		"hash_source": source,
		"tx_hash":     encodeHexPrefixed(hash[:]),
		"signature":   encodeHexPrefixed(sig[:]),
	})
}
