package runner_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jojoalpha/agent-harness/internal/policy"
	"github.com/jojoalpha/agent-harness/internal/provenance"
	"github.com/jojoalpha/agent-harness/internal/runner"
	"github.com/jojoalpha/agent-harness/internal/runnerconfig"
)

type countingBridge struct {
	polls int32
}

func (b *countingBridge) PollEventLoop(ctx context.Context) error {
	atomic.AddInt32(&b.polls, 1)
	return nil
}

func TestDryRunNeverPolls(t *testing.T) {
	cfg := runnerconfig.Default()
	cfg.CheckInterval = time.Millisecond
	r := runner.New(cfg, true)

	bridge := &countingBridge{}
	err := r.Run(context.Background(), bridge)
	require.NoError(t, err)
	require.EqualValues(t, 0, bridge.polls)
}

func TestRunPollsUntilCancelled(t *testing.T) {
	cfg := runnerconfig.Default()
	cfg.CheckInterval = time.Millisecond
	r := runner.New(cfg, false)

	bridge := &countingBridge{}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := r.Run(ctx, bridge)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Greater(t, bridge.polls, int32(0))
}

func TestBuildPipelineWiresGuardsAndDispatcher(t *testing.T) {
	cfg := runnerconfig.Default()
	r := runner.New(cfg, true)

	store := provenance.NewMemoryStore()
	err := r.BuildPipeline(context.Background(), policy.AllowAllConfig(), store)
	require.NoError(t, err)
	require.NotNil(t, r.Dispatcher)

	_, err = r.Dispatcher.Dispatch(context.Background(), "defi/odos_swap", "quote", []byte(`{}`), runner.NewContextID())
	require.Error(t, err) // unregistered tool
}
