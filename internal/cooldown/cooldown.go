// Package cooldown implements the Cooldown guard: enforces a minimum time
// between successful defi/odos_swap prepare_swap calls, to prevent
// rapid-fire trading. Adapted from
// original_source/src/interceptors/cooldown.rs.
package cooldown

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jojoalpha/agent-harness/internal/pipeline"
)

const (
	toolOdosSwap      = "defi/odos_swap"
	actionPrepareSwap = "prepare_swap"
)

// Guard enforces a minimum duration between trades.
type Guard struct {
	duration time.Duration

	mu        sync.Mutex
	lastTrade *time.Time
}

// New constructs a Cooldown guard requiring at least cooldownSeconds
// between successful trades.
func New(cooldownSeconds uint64) *Guard {
	return &Guard{duration: time.Duration(cooldownSeconds) * time.Second}
}

// Name implements pipeline.Guard.
func (g *Guard) Name() string { return "cooldown" }

func isTradeAction(args json.RawMessage) bool {
	var parsed struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(args, &parsed); err != nil {
		return false
	}
	return parsed.Action == actionPrepareSwap
}

// OnRequest implements pipeline.Guard.
func (g *Guard) OnRequest(ctx context.Context, call pipeline.ToolCallContext) (pipeline.Decision, error) {
	if call.ToolName != toolOdosSwap || !isTradeAction(call.Args) {
		return pipeline.Allow(), nil
	}

	g.mu.Lock()
	last := g.lastTrade
	g.mu.Unlock()

	if last != nil {
		elapsed := time.Since(*last)
		if elapsed < g.duration {
			remaining := g.duration - elapsed
			return pipeline.Block(fmt.Sprintf("Trading cooldown active. Please wait %d more seconds.", int(remaining.Seconds()))), nil
		}
	}
	return pipeline.Allow(), nil
}

// OnComplete implements pipeline.Guard: records the trade timestamp on
// success so the next prepare_swap is measured against it.
func (g *Guard) OnComplete(ctx context.Context, call pipeline.ToolCallContext, result json.RawMessage, callErr error, duration time.Duration) {
	if call.ToolName != toolOdosSwap || !isTradeAction(call.Args) || callErr != nil {
		return
	}
	now := time.Now()
	g.mu.Lock()
	g.lastTrade = &now
	g.mu.Unlock()
}
