package main

import (
	"context"
	"flag"
	"path/filepath"

	"github.com/jojoalpha/agent-harness/internal/rpcdir"
	"github.com/jojoalpha/agent-harness/internal/runnerconfig"
)

// configCommand resolves and prints the runtime configuration a `run`
// invocation would build: the QuickJS resource envelope, the risk/policy/
// audit settings (after any harness.yaml overlay), and the RPC directory's
// resolved chain set. Never signs, polls, or dispatches anything.
func configCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	agentDir := fs.String("agent", "", "agent root directory (for harness.yaml and policy.json)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := runnerconfig.Default()
	if *agentDir != "" {
		var err error
		cfg, err = runnerconfig.LoadYAMLOverrides(ctx, filepath.Join(*agentDir, "harness.yaml"), cfg)
		if err != nil {
			return err
		}
	}

	networks := make([]string, len(cfg.Networks))
	for i, n := range cfg.Networks {
		networks[i] = n.Name()
	}

	rpc := rpcdir.FromEnv()

	return printJSON(map[string]any{
		"quickjs":      runnerconfig.QuickJSConfigFromEnv(ctx),
		"networks":     networks,
		"check_interval_ms": cfg.CheckInterval.Milliseconds(),
		"risk": map[string]any{
			"max_trade_usd":        cfg.Risk.MaxTradeUSD,
			"max_daily_usd":        cfg.Risk.MaxDailyUSD,
			"max_slippage_percent": cfg.Risk.MaxSlippagePercent,
			"cooldown_seconds":     cfg.Risk.CooldownSeconds,
			"spend_limit_mode":     int(cfg.Risk.SpendLimitMode),
		},
		"policy": map[string]any{
			"default_mode": cfg.Policy.DefaultMode,
			"require_file": cfg.Policy.RequireFile,
		},
		"audit_log_path":       cfg.AuditLogPath,
		"provenance_log_path":  cfg.ProvenanceLogPath,
		"gateway_redis_addr":   cfg.RedisAddr,
		"rpc_chains_resolved":  rpc.Chains(),
	})
}
