// Package runnerconfig resolves the Agent Runner's (C11) env-driven
// configuration: the sandbox resource envelope and the top-level run
// settings (networks, protocols, risk limits, policy/audit paths). Adapted
// from original_source/src/runner.rs's quickjs_config_from_env/
// parse_u64_env and src/config/mod.rs's Config/RiskConfig.
package runnerconfig

import (
	"context"
	"os"
	"strconv"
	"time"

	"goa.design/clue/log"

	"github.com/jojoalpha/agent-harness/internal/policy"
	"github.com/jojoalpha/agent-harness/internal/spendlimit"
	"github.com/jojoalpha/agent-harness/internal/subgraphconfig"
)

// QuickJSConfig is the sandbox runtime's resource envelope. The sandbox
// itself is out of this repo's scope (spec.md §1); this type exists so a
// future embedding has somewhere concrete to receive these limits, and so
// BAML_QJS_* env vars have a single parse site shared by every binary.
type QuickJSConfig struct {
	MemoryLimitBytes *uint64
	MaxStackBytes    *uint64
	GCThreshold      *uint64
	GCInterval       *time.Duration
}

// QuickJSConfigFromEnv reads BAML_QJS_MEMORY_LIMIT_BYTES,
// BAML_QJS_MAX_STACK_BYTES, BAML_QJS_GC_THRESHOLD, and
// BAML_QJS_GC_INTERVAL_SECS, warning and ignoring any value that fails to
// parse as a non-negative integer.
func QuickJSConfigFromEnv(ctx context.Context) QuickJSConfig {
	var cfg QuickJSConfig

	if limit, ok := parseU64Env(ctx, "BAML_QJS_MEMORY_LIMIT_BYTES"); ok {
		cfg.MemoryLimitBytes = &limit
		log.Printf(ctx, "runnerconfig: configured QuickJS memory limit bytes=%d", limit)
	}
	if size, ok := parseU64Env(ctx, "BAML_QJS_MAX_STACK_BYTES"); ok {
		cfg.MaxStackBytes = &size
		log.Printf(ctx, "runnerconfig: configured QuickJS max stack bytes=%d", size)
	}
	if threshold, ok := parseU64Env(ctx, "BAML_QJS_GC_THRESHOLD"); ok {
		cfg.GCThreshold = &threshold
		log.Printf(ctx, "runnerconfig: configured QuickJS GC threshold=%d", threshold)
	}
	if secs, ok := parseU64Env(ctx, "BAML_QJS_GC_INTERVAL_SECS"); ok {
		interval := time.Duration(secs) * time.Second
		cfg.GCInterval = &interval
		log.Printf(ctx, "runnerconfig: configured QuickJS GC interval seconds=%d", secs)
	}

	return cfg
}

func parseU64Env(ctx context.Context, name string) (uint64, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		log.Printf(ctx, "runnerconfig: invalid %s=%q, ignoring: %s", name, raw, err)
		return 0, false
	}
	return value, true
}

// RiskConfig mirrors the original's RiskConfig: the parameters that seed
// the SpendLimit, SlippageGuard, and Cooldown guards.
type RiskConfig struct {
	MaxTradeUSD        float64
	MaxDailyUSD        float64
	MaxSlippagePercent float64
	CooldownSeconds    uint64
	SpendLimitMode     spendlimit.Mode
}

// PolicySettings mirrors the original's policy loader knobs (Config.policy).
type PolicySettings struct {
	DefaultMode policy.Mode
	RequireFile bool
}

// Config is the Agent Runner's resolved run configuration: which networks
// and protocols the trading loop considers, how often it polls, and the
// risk/policy/audit settings that seed the interceptor pipeline.
type Config struct {
	Networks        []subgraphconfig.Network
	Protocols       []subgraphconfig.Protocol
	CheckInterval   time.Duration
	Risk            RiskConfig
	Policy          PolicySettings
	AuditLogPath    string // empty disables the audit guard

	// ProvenanceLogPath, when set, fans provenance events out to a durable
	// JSONL file in addition to the in-memory store (C9).
	ProvenanceLogPath string
	// RedisAddr, when set, backs the Graph Gateway's cache (C6.G) with a
	// shared Redis tier instead of the in-process TTL cache alone.
	RedisAddr string
}

// Default returns the conservative baseline configuration: Ethereum +
// Arbitrum on Uniswap V3, a 30s poll interval, default-deny policy, and the
// original's default risk limits.
func Default() Config {
	return Config{
		Networks:      []subgraphconfig.Network{subgraphconfig.Ethereum, subgraphconfig.Arbitrum},
		Protocols:     []subgraphconfig.Protocol{subgraphconfig.UniswapV3},
		CheckInterval: 30 * time.Second,
		Risk: RiskConfig{
			MaxTradeUSD:        1000.0,
			MaxDailyUSD:        5000.0,
			MaxSlippagePercent: 1.0,
			CooldownSeconds:    60,
			SpendLimitMode:     spendlimit.FailClosed,
		},
		Policy: PolicySettings{DefaultMode: policy.DefaultDeny, RequireFile: false},
	}
}
