// Package slippage implements the SlippageGuard (part of the fixed
// interceptor chain, spec.md §4.7): blocks defi/odos_swap calls whose
// requested slippage_percent exceeds a configured ceiling. Adapted from
// original_source/src/interceptors/slippage_guard.rs.
package slippage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jojoalpha/agent-harness/internal/pipeline"
)

const (
	toolOdosSwap     = "defi/odos_swap"
	defaultSlippage  = 0.5
)

// Guard blocks trades whose slippage tolerance exceeds MaxPercent.
type Guard struct {
	maxPercent float64
}

// New constructs a SlippageGuard with the given maximum allowed slippage
// percentage (e.g. 1.0 for 1%).
func New(maxPercent float64) *Guard {
	return &Guard{maxPercent: maxPercent}
}

// Name implements pipeline.Guard.
func (g *Guard) Name() string { return "slippage_guard" }

// OnRequest implements pipeline.Guard. A missing slippage_percent defaults
// to 0.5%, matching the original's conservative default.
func (g *Guard) OnRequest(ctx context.Context, call pipeline.ToolCallContext) (pipeline.Decision, error) {
	if call.ToolName != toolOdosSwap {
		return pipeline.Allow(), nil
	}

	var args struct {
		SlippagePercent *float64 `json:"slippage_percent"`
	}
	if err := json.Unmarshal(call.Args, &args); err != nil {
		return pipeline.Allow(), nil
	}

	slippage := defaultSlippage
	if args.SlippagePercent != nil {
		slippage = *args.SlippagePercent
	}

	if slippage > g.maxPercent {
		return pipeline.Block(fmt.Sprintf("Requested slippage %.2f%% exceeds maximum allowed %.2f%%", slippage, g.maxPercent)), nil
	}
	return pipeline.Allow(), nil
}

// OnComplete implements pipeline.Guard; the slippage guard takes no
// post-execution action.
func (g *Guard) OnComplete(ctx context.Context, call pipeline.ToolCallContext, result json.RawMessage, callErr error, duration time.Duration) {
}
