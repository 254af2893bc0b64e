package simulator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jojoalpha/agent-harness/internal/simulator"
)

func TestNewRequiresRPCURL(t *testing.T) {
	_, err := simulator.New("", 1)
	require.Error(t, err)
}

func TestNewSucceedsWithURL(t *testing.T) {
	s, err := simulator.New("https://example.invalid", 1)
	require.NoError(t, err)
	require.NotNil(t, s)
}

// Simulate itself requires a live RPC endpoint and is exercised by
// integration tests outside this package; these tests cover construction
// and error classification for the parts that don't require network I/O.
func TestSimulateFailsOnUnreachableRPC(t *testing.T) {
	s, err := simulator.New("http://127.0.0.1:1", 1)
	require.NoError(t, err)

	_, err = s.Simulate(context.Background(), simulator.Request{})
	require.Error(t, err)
}
