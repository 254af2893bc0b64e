package policy_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jojoalpha/agent-harness/internal/pipeline"
	"github.com/jojoalpha/agent-harness/internal/policy"
	"github.com/jojoalpha/agent-harness/internal/toolname"
)

func TestLoadMissingFileAppliesFallback(t *testing.T) {
	cfg, err := policy.Load(context.Background(), policy.LoaderOptions{
		Path:     filepath.Join(t.TempDir(), "missing.json"),
		Fallback: policy.DefaultDeny,
	})
	require.NoError(t, err)
	require.Equal(t, policy.DefaultDeny, cfg.Mode)
}

func TestLoadMissingFileRequiredErrors(t *testing.T) {
	_, err := policy.Load(context.Background(), policy.LoaderOptions{
		Path:        filepath.Join(t.TempDir(), "missing.json"),
		RequireFile: true,
	})
	require.Error(t, err)
}

func TestLoadDiscardsInvalidToolNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.json")
	body := `{
		"mode": "default-deny",
		"rules": [
			{"tool": "defi/odos_swap", "allowed": true},
			{"tool": "Not A Valid Name!", "allowed": true}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := policy.Load(context.Background(), policy.LoaderOptions{Path: path, Fallback: policy.AllowAll})
	require.NoError(t, err)
	require.Equal(t, policy.DefaultDeny, cfg.Mode)
	require.Len(t, cfg.Rules, 1)
}

func TestGuardBlocksOnDefaultDenyMiss(t *testing.T) {
	cfg := policy.Config{Mode: policy.DefaultDeny, Rules: map[string]policy.Rule{}}
	g := policy.NewGuard(cfg)

	decision, err := g.OnRequest(context.Background(), pipeline.ToolCallContext{ToolName: "defi/odos_swap"})
	require.NoError(t, err)
	require.True(t, decision.Blocked())
	require.Contains(t, decision.Reason(), "Policy denied tool defi/odos_swap")
}

func TestGuardBlocksExplicitRuleWithRuleID(t *testing.T) {
	name := toolname.MustParse("defi/paper_trading")
	cfg := policy.Config{
		Mode: policy.DefaultDeny,
		Rules: map[string]policy.Rule{
			name.String(): {Allowed: false, RuleID: "blocklist-1", Reason: "disabled for this agent"},
		},
	}
	g := policy.NewGuard(cfg)

	decision, err := g.OnRequest(context.Background(), pipeline.ToolCallContext{ToolName: "defi/paper_trading"})
	require.NoError(t, err)
	require.True(t, decision.Blocked())
	require.Contains(t, decision.Reason(), "rule_id=blocklist-1")
}

func TestGuardAllowAllModeDefaultsToAllow(t *testing.T) {
	g := policy.NewGuard(policy.AllowAllConfig())
	decision, err := g.OnRequest(context.Background(), pipeline.ToolCallContext{ToolName: "defi/wallet_balance"})
	require.NoError(t, err)
	require.False(t, decision.Blocked())
}
