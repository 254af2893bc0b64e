package wallet_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jojoalpha/agent-harness/internal/wallet"
)

// Well-known test private key (Hardhat/Anvil account #0); never used for
// anything but deriving the matching well-known address in tests.
const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestFromHexDerivesKnownAddress(t *testing.T) {
	w, err := wallet.FromHex(testKey, false)
	require.NoError(t, err)
	require.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", w.AddressString())
}

func TestStringRedactsKey(t *testing.T) {
	w, err := wallet.FromHex(testKey, false)
	require.NoError(t, err)
	require.Contains(t, w.String(), "[REDACTED]")
	require.NotContains(t, w.String(), testKey)
}

func TestDryRunBlocksSigning(t *testing.T) {
	w, err := wallet.FromHex(testKey, true)
	require.NoError(t, err)

	var digest [32]byte
	_, err = w.SignHash(digest)
	require.ErrorIs(t, err, wallet.ErrDryRun)
}

func TestSignHashProducesSignature(t *testing.T) {
	w, err := wallet.FromHex(testKey, false)
	require.NoError(t, err)

	var digest [32]byte
	copy(digest[:], []byte("hello world, sign this digest!!"))
	sig, err := w.SignHash(digest)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(sig.Hex(), "0x"))
	require.Len(t, sig, 65)
}
