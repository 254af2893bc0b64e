// Package wallet owns the signing secret exclusively. No other package in
// this module ever sees the private key: callers present 32 bytes to sign
// and receive back a signature. Debug/string forms always redact the key.
package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/jojoalpha/agent-harness/internal/harnesserr"
)

// ErrDryRun is returned by SignHash when the wallet was constructed with
// DryRun enabled; real signing paths are disabled.
var ErrDryRun = harnesserr.New(harnesserr.Wallet, "signing disabled: wallet is in dry-run mode")

// Signature is a 65-byte secp256k1 signature (r || s || v).
type Signature [65]byte

// Hex returns the 0x-prefixed hex encoding of the signature.
func (s Signature) Hex() string {
	return "0x" + fmt.Sprintf("%x", s[:])
}

// Wallet holds signing material behind a narrow interface: Address,
// AddressString, and SignHash. The private key is never exposed by any
// method, and String/GoString redact it unconditionally.
type Wallet struct {
	mu      sync.Mutex
	key     *ecdsa.PrivateKey
	address [20]byte
	dryRun  bool
}

// FromHex constructs a Wallet from a hex-encoded private key (with or
// without a "0x" prefix). dryRun disables SignHash, returning ErrDryRun
// instead, so a caller can exercise read-only paths without ever wiring a
// real key into a signing-capable wallet.
func FromHex(keyHex string, dryRun bool) (*Wallet, error) {
	keyHex = strings.TrimPrefix(keyHex, "0x")
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.Wallet, "invalid private key", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	return &Wallet{key: key, address: addr, dryRun: dryRun}, nil
}

// FromEnv reads the secret from the environment variable named varName and
// constructs a Wallet. Absence of the variable is reported distinctly so
// callers can fall back to a read-only mode rather than failing hard.
func FromEnv(varName string, dryRun bool) (*Wallet, error) {
	value, ok := os.LookupEnv(varName)
	if !ok || value == "" {
		return nil, harnesserr.Errorf(harnesserr.Wallet, "environment variable %s is not set", varName)
	}
	return FromHex(value, dryRun)
}

// Address returns the wallet's 20-byte address.
func (w *Wallet) Address() [20]byte { return w.address }

// AddressString returns the EIP-55 checksummed hex address.
func (w *Wallet) AddressString() string {
	return crypto.PubkeyToAddress(w.key.PublicKey).Hex()
}

// SignHash signs a pre-computed 32-byte digest and returns the 65-byte
// signature. Reentrant: concurrent callers serialize on an internal mutex,
// matching the spec's requirement that signing be safe under concurrent use.
func (w *Wallet) SignHash(hash [32]byte) (Signature, error) {
	if w.dryRun {
		return Signature{}, ErrDryRun
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	sig, err := crypto.Sign(hash[:], w.key)
	if err != nil {
		return Signature{}, harnesserr.NewWithCause(harnesserr.Wallet, "signing failed", err)
	}
	var out Signature
	copy(out[:], sig)
	return out, nil
}

// String implements fmt.Stringer and deliberately never includes the key.
func (w *Wallet) String() string {
	return fmt.Sprintf("wallet{address=%s, key=[REDACTED]}", w.AddressString())
}

// GoString implements fmt.GoStringer for %#v formatting, also redacted.
func (w *Wallet) GoString() string { return w.String() }
