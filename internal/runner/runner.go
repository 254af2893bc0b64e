// Package runner implements the Agent Runner (C11): builds the interceptor
// pipeline and tool registry, injects the wallet/paper-trading state, and
// cooperatively drives the sandboxed agent's event loop. Adapted from
// original_source/src/runner.rs, with the REDESIGN FLAG fix applied: the
// runtime bridge lock is held only for the duration of a single poll step,
// never across the inter-poll sleep.
package runner

import (
	"context"
	"sync"
	"time"

	"goa.design/clue/log"

	"github.com/jojoalpha/agent-harness/internal/audit"
	"github.com/jojoalpha/agent-harness/internal/cooldown"
	"github.com/jojoalpha/agent-harness/internal/papertrading"
	"github.com/jojoalpha/agent-harness/internal/pipeline"
	"github.com/jojoalpha/agent-harness/internal/policy"
	"github.com/jojoalpha/agent-harness/internal/provenance"
	"github.com/jojoalpha/agent-harness/internal/runnerconfig"
	"github.com/jojoalpha/agent-harness/internal/slippage"
	"github.com/jojoalpha/agent-harness/internal/spendlimit"
	"github.com/jojoalpha/agent-harness/internal/wallet"
)

// Bridge is the cooperative event-loop contract the hosted agent's sandbox
// runtime exposes. The sandbox itself (QuickJS/BAML) is out of scope for
// this repo (spec.md §1's "embedded script runtime" is opaque); Bridge is
// the seam a concrete embedding plugs into, and the seam this package's
// tests exercise with a fake.
type Bridge interface {
	// PollEventLoop advances the sandbox's pending timers/promises by one
	// tick. It must not block longer than a single cooperative step.
	PollEventLoop(ctx context.Context) error
}

// AgentRunner owns the resolved run configuration and the optional
// wallet/paper-trading state a trading agent needs, and drives dispatch
// plus the cooperative poll loop.
type AgentRunner struct {
	config    runnerconfig.Config
	dryRun    bool
	wallet    *wallet.Wallet
	portfolio *papertrading.Portfolio

	Dispatcher *Dispatcher

	// bridgeMu guards access to the Bridge across poll steps. It is never
	// held across the inter-poll sleep — the REDESIGN FLAG fix: the
	// original held an equivalent lock for the loop's entire lifetime.
	bridgeMu sync.Mutex
}

// New constructs an AgentRunner for config. dryRun suppresses the drive
// loop: Run resolves and logs the configuration, then returns immediately.
func New(config runnerconfig.Config, dryRun bool) *AgentRunner {
	return &AgentRunner{config: config, dryRun: dryRun}
}

// WithWallet attaches the wallet used for T2/T5 tool registration (address
// only; the runner never reads the private key).
func (r *AgentRunner) WithWallet(w *wallet.Wallet) *AgentRunner {
	r.wallet = w
	return r
}

// WithPaperTrading enables T4 against portfolio.
func (r *AgentRunner) WithPaperTrading(portfolio *papertrading.Portfolio) *AgentRunner {
	r.portfolio = portfolio
	return r
}

// BuildPipeline constructs the fixed-order guard chain (Policy -> SpendLimit
// -> SlippageGuard -> Cooldown -> Audit -> Provenance) from r.config and
// writer, and wires it into r.Dispatcher. Provenance is always last, so a
// Block from any earlier guard keeps it from ever recording that call.
// Mirrors AgentRunner::build_runtime's interceptor assembly.
func (r *AgentRunner) BuildPipeline(ctx context.Context, policyConfig policy.Config, writer provenance.Writer) error {
	guards := []pipeline.Guard{
		policy.NewGuard(policyConfig),
		spendlimit.NewWithMode(r.config.Risk.MaxTradeUSD, r.config.Risk.MaxDailyUSD, r.config.Risk.SpendLimitMode),
		slippage.New(r.config.Risk.MaxSlippagePercent),
		cooldown.New(r.config.Risk.CooldownSeconds),
	}

	if r.config.AuditLogPath != "" {
		auditGuard, err := audit.New(r.config.AuditLogPath)
		if err != nil {
			return err
		}
		guards = append(guards, auditGuard)
		log.Printf(ctx, "runner: added audit log interceptor path=%s", r.config.AuditLogPath)
	}

	guards = append(guards, provenance.NewGuard(writer))

	r.Dispatcher = NewDispatcher(pipeline.New(guards...))
	return nil
}

// Run starts the cooperative drive loop against bridge. In dry-run mode it
// logs the resolved configuration and returns without polling.
func (r *AgentRunner) Run(ctx context.Context, bridge Bridge) error {
	if r.dryRun {
		log.Printf(ctx, "runner: dry run, networks=%v protocols=%v check_interval=%s",
			r.config.Networks, r.config.Protocols, r.config.CheckInterval)
		return nil
	}

	log.Printf(ctx, "runner: starting drive loop check_interval=%s", r.config.CheckInterval)
	for {
		if err := r.pollOnce(ctx, bridge); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.config.CheckInterval):
		}
	}
}

// pollOnce acquires bridgeMu for exactly one PollEventLoop call. The lock
// is released before Run's sleep, so a concurrent caller (e.g. a CLI
// health-check invoking the bridge directly) is never blocked for the
// duration of a poll interval.
func (r *AgentRunner) pollOnce(ctx context.Context, bridge Bridge) error {
	r.bridgeMu.Lock()
	defer r.bridgeMu.Unlock()
	return bridge.PollEventLoop(ctx)
}
