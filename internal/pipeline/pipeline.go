// Package pipeline implements the fixed-order interceptor chain every tool
// call traverses: Policy -> SpendLimit -> SlippageGuard -> Cooldown -> Audit
// -> Provenance. Guards are values implementing a two-hook capability, not a
// class hierarchy, following the teacher's features/policy/basic.Engine and
// runtime/agent/hooks.Bus shape (ordered, fail-fast fan-out), adapted here to
// short-circuit on Block rather than on first subscriber error.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jojoalpha/agent-harness/internal/harnesserr"
)

// ToolCallContext is the invariant payload passed to every guard. It is
// created by the dispatcher and never mutated by guards.
type ToolCallContext struct {
	ToolName     string
	FunctionName string // optional; empty when not applicable
	Args         json.RawMessage
	ContextID    string // opaque, non-empty
	Metadata     map[string]any
}

// Decision is the sum type a guard's on_request hook returns: either Allow
// or Block(reason). Guard is final on Block — no later guard runs and the
// tool body does not execute.
type Decision struct {
	blocked bool
	reason  string
}

// Allow constructs the non-blocking decision.
func Allow() Decision { return Decision{} }

// Block constructs a blocking decision carrying a user-visible reason.
func Block(reason string) Decision { return Decision{blocked: true, reason: reason} }

// Blocked reports whether this decision blocks dispatch.
func (d Decision) Blocked() bool { return d.blocked }

// Reason returns the block reason, or "" if this decision allows.
func (d Decision) Reason() string { return d.reason }

// Guard is the two-hook capability every interceptor implements.
type Guard interface {
	// Name identifies the guard for audit/provenance labeling.
	Name() string
	// OnRequest evaluates ctx before dispatch. It may suspend to acquire
	// shared state but must not hold a lock across outbound I/O.
	OnRequest(ctx context.Context, call ToolCallContext) (Decision, error)
	// OnComplete observes the result after the tool body ran. It never
	// fails the dispatch; implementations should log and swallow errors.
	OnComplete(ctx context.Context, call ToolCallContext, result json.RawMessage, callErr error, duration time.Duration)
}

// Pipeline is the fixed, ordered list of guards. Order is set once at
// construction and is not configurable at call time.
type Pipeline struct {
	guards []Guard
}

// New constructs a Pipeline with guards in dispatch order.
func New(guards ...Guard) *Pipeline {
	return &Pipeline{guards: guards}
}

// Dispatch runs call through every guard's OnRequest in order. On the first
// Block, it returns immediately without invoking body and without calling
// OnComplete on any guard. On Allow from every guard, it invokes body, then
// calls every guard's OnComplete in the same order.
//
// A guard's OnRequest returning a non-nil error aborts dispatch distinctly
// from a Block: it surfaces as a dispatch error, and no guard's OnComplete
// runs for this dispatch (the body never ran).
func (p *Pipeline) Dispatch(ctx context.Context, call ToolCallContext, body func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	for _, g := range p.guards {
		decision, err := g.OnRequest(ctx, call)
		if err != nil {
			return nil, err
		}
		if decision.Blocked() {
			return nil, harnesserr.New(harnesserr.Blocked, decision.Reason())
		}
	}

	start := time.Now()
	result, callErr := body(ctx)
	duration := time.Since(start)

	for _, g := range p.guards {
		g.OnComplete(ctx, call, result, callErr, duration)
	}

	return result, callErr
}
