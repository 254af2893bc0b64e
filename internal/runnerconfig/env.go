package runnerconfig

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"goa.design/clue/log"
	"gopkg.in/yaml.v3"

	"github.com/jojoalpha/agent-harness/internal/policy"
	"github.com/jojoalpha/agent-harness/internal/spendlimit"
	"github.com/jojoalpha/agent-harness/internal/subgraphconfig"
)

// LoadDotEnv loads a .env file into the process environment before any
// other env-driven config is resolved, so BAML_QJS_* and
// the wallet/RPC provider vars behave the same whether set by the shell or
// by a .env file. Search order (first hit wins): the running executable's
// directory, walked up to three parents; then the current working
// directory. No .env found is not an error — the process falls back to
// whatever the system environment already provides.
func LoadDotEnv(ctx context.Context) {
	for _, candidate := range dotEnvCandidates() {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			log.Printf(ctx, "runnerconfig: failed to load .env from %s: %s", candidate, err)
			continue
		}
		log.Printf(ctx, "runnerconfig: loaded .env from %s", candidate)
		return
	}
	log.Printf(ctx, "runnerconfig: no .env file found, using system environment variables")
}

func dotEnvCandidates() []string {
	var candidates []string
	seen := map[string]bool{}
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			candidates = append(candidates, p)
		}
	}

	if exe, err := os.Executable(); err == nil {
		if real, err := filepath.EvalSymlinks(exe); err == nil {
			exe = real
		}
		dir := filepath.Dir(exe)
		for i := 0; i <= 3; i++ {
			add(filepath.Join(dir, ".env"))
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		add(filepath.Join(cwd, ".env"))
	}
	return candidates
}

// yamlOverrides mirrors the subset of Config a deployment typically wants to
// pin outside of env vars (risk limits, policy defaults, poll cadence),
// resolved from an optional harness.yaml under the agent root.
type yamlOverrides struct {
	Networks           []string `yaml:"networks"`
	Protocols          []string `yaml:"protocols"`
	CheckIntervalSecs  *int64   `yaml:"check_interval_seconds"`
	MaxTradeUSD        *float64 `yaml:"max_trade_usd"`
	MaxDailyUSD        *float64 `yaml:"max_daily_usd"`
	MaxSlippagePercent *float64 `yaml:"max_slippage_percent"`
	CooldownSeconds    *uint64  `yaml:"cooldown_seconds"`
	SpendLimitMode     string   `yaml:"spend_limit_mode"`
	PolicyMode         string   `yaml:"policy_mode"`
	PolicyRequireFile  *bool    `yaml:"policy_require_file"`
	AuditLogPath       string   `yaml:"audit_log_path"`
	ProvenanceLogPath  string   `yaml:"provenance_log_path"`
	RedisAddr          string   `yaml:"redis_addr"`
}

// LoadYAMLOverrides reads path (if present) and applies its fields onto base,
// returning the merged Config. A missing file is not an error: base is
// returned unchanged, matching the same "absence is the permissive default"
// posture as policy.Load.
func LoadYAMLOverrides(ctx context.Context, path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return Config{}, fmt.Errorf("runnerconfig: failed to read %s: %w", path, err)
	}

	var overrides yamlOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return Config{}, fmt.Errorf("runnerconfig: malformed %s: %w", path, err)
	}

	cfg := base
	if len(overrides.Networks) > 0 {
		cfg.Networks = parseNetworks(ctx, overrides.Networks)
	}
	if len(overrides.Protocols) > 0 {
		cfg.Protocols = []subgraphconfig.Protocol{subgraphconfig.UniswapV3}
	}
	if overrides.CheckIntervalSecs != nil {
		cfg.CheckInterval = time.Duration(*overrides.CheckIntervalSecs) * time.Second
	}
	if overrides.MaxTradeUSD != nil {
		cfg.Risk.MaxTradeUSD = *overrides.MaxTradeUSD
	}
	if overrides.MaxDailyUSD != nil {
		cfg.Risk.MaxDailyUSD = *overrides.MaxDailyUSD
	}
	if overrides.MaxSlippagePercent != nil {
		cfg.Risk.MaxSlippagePercent = *overrides.MaxSlippagePercent
	}
	if overrides.CooldownSeconds != nil {
		cfg.Risk.CooldownSeconds = *overrides.CooldownSeconds
	}
	switch overrides.SpendLimitMode {
	case "fail_open":
		cfg.Risk.SpendLimitMode = spendlimit.FailOpen
	case "fail_closed":
		cfg.Risk.SpendLimitMode = spendlimit.FailClosed
	case "":
	default:
		log.Printf(ctx, "runnerconfig: unknown spend_limit_mode %q in %s, keeping %d", overrides.SpendLimitMode, path, cfg.Risk.SpendLimitMode)
	}
	switch policy.Mode(overrides.PolicyMode) {
	case policy.AllowAll, policy.DefaultDeny:
		cfg.Policy.DefaultMode = policy.Mode(overrides.PolicyMode)
	case "":
	default:
		log.Printf(ctx, "runnerconfig: unknown policy_mode %q in %s, keeping %s", overrides.PolicyMode, path, cfg.Policy.DefaultMode)
	}
	if overrides.PolicyRequireFile != nil {
		cfg.Policy.RequireFile = *overrides.PolicyRequireFile
	}
	if overrides.AuditLogPath != "" {
		cfg.AuditLogPath = overrides.AuditLogPath
	}
	if overrides.ProvenanceLogPath != "" {
		cfg.ProvenanceLogPath = overrides.ProvenanceLogPath
	}
	if overrides.RedisAddr != "" {
		cfg.RedisAddr = overrides.RedisAddr
	}

	return cfg, nil
}

func parseNetworks(ctx context.Context, names []string) []subgraphconfig.Network {
	out := make([]subgraphconfig.Network, 0, len(names))
	for _, name := range names {
		network, ok := subgraphconfig.ParseNetwork(name)
		if !ok {
			log.Printf(ctx, "runnerconfig: unknown network %q in harness.yaml, skipping", name)
			continue
		}
		out = append(out, network)
	}
	return out
}
