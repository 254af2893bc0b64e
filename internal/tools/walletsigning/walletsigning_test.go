package walletsigning_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jojoalpha/agent-harness/internal/tools/walletsigning"
	"github.com/jojoalpha/agent-harness/internal/wallet"
)

const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func testWallet(t *testing.T) *wallet.Wallet {
	t.Helper()
	w, err := wallet.FromHex(testKey, false)
	require.NoError(t, err)
	return w
}

func TestDeriveAddressReturnsWalletAddress(t *testing.T) {
	w := testWallet(t)
	tool := walletsigning.NewDeriveAddressTool(w)

	out, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)

	var parsed struct {
		Address string `json:"address"`
	}
	require.NoError(t, json.Unmarshal(out, &parsed))
	require.Equal(t, w.AddressString(), parsed.Address)
}

func TestSignMessageReturnsSignatureAndHash(t *testing.T) {
	w := testWallet(t)
	tool := walletsigning.NewSignMessageTool(w)

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"message":"hello"}`))
	require.NoError(t, err)

	var parsed struct {
		Address     string `json:"address"`
		MessageHash string `json:"message_hash"`
		Signature   string `json:"signature"`
	}
	require.NoError(t, json.Unmarshal(out, &parsed))
	require.Equal(t, w.AddressString(), parsed.Address)
	require.Len(t, parsed.MessageHash, 66) // "0x" + 64 hex chars
	require.Len(t, parsed.Signature, 132)  // "0x" + 130 hex chars (65 bytes)
}

func TestSignMessageRejectsMissingMessage(t *testing.T) {
	tool := walletsigning.NewSignMessageTool(testWallet(t))
	_, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestSignTxAcceptsTxHash(t *testing.T) {
	tool := walletsigning.NewSignTxTool(testWallet(t))
	hash := "0x" + "11223344556677889900aabbccddeeff11223344556677889900aabbccddeeff"

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"tx_hash":"`+hash+`"}`))
	require.NoError(t, err)

	var parsed struct {
		HashSource string `json:"hash_source"`
		TxHash     string `json:"tx_hash"`
	}
	require.NoError(t, json.Unmarshal(out, &parsed))
	require.Equal(t, "tx_hash", parsed.HashSource)
	require.Equal(t, hash, parsed.TxHash)
}

func TestSignTxAcceptsTxBytesAndHashesThem(t *testing.T) {
	tool := walletsigning.NewSignTxTool(testWallet(t))
	out, err := tool.Execute(context.Background(), json.RawMessage(`{"tx_bytes":"0xdeadbeef"}`))
	require.NoError(t, err)

	var parsed struct {
		HashSource string `json:"hash_source"`
	}
	require.NoError(t, json.Unmarshal(out, &parsed))
	require.Equal(t, "tx_bytes", parsed.HashSource)
}

func TestSignTxRejectsWrongLengthHash(t *testing.T) {
	tool := walletsigning.NewSignTxTool(testWallet(t))
	_, err := tool.Execute(context.Background(), json.RawMessage(`{"tx_hash":"0xdead"}`))
	require.Error(t, err)
}

func TestSignTxRejectsMissingFields(t *testing.T) {
	tool := walletsigning.NewSignTxTool(testWallet(t))
	_, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestSignTxRejectsBothFieldsPresent(t *testing.T) {
	tool := walletsigning.NewSignTxTool(testWallet(t))
	hash := "0x" + "11223344556677889900aabbccddeeff11223344556677889900aabbccddeeff"
	_, err := tool.Execute(context.Background(), json.RawMessage(`{"tx_hash":"`+hash+`","tx_bytes":"0xdeadbeef"}`))
	require.Error(t, err)
}
