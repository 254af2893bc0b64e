// Package policy implements the Policy guard (C8): a declarative allow/deny
// rule set with a configurable fallback mode, loaded once at runtime build
// time. Adapted from the teacher's Options+constructor idiom
// (features/policy/basic/engine.go) and the original Rust
// interceptors/policy.rs semantics (mode + per-tool rule map).
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"goa.design/clue/log"

	"github.com/jojoalpha/agent-harness/internal/pipeline"
	"github.com/jojoalpha/agent-harness/internal/toolname"
)

// Mode is the fallback behavior applied when a tool has no explicit rule.
type Mode string

const (
	// AllowAll allows any tool without an explicit blocking rule.
	AllowAll Mode = "allow-all"
	// DefaultDeny blocks any tool without an explicit allowing rule.
	DefaultDeny Mode = "default-deny"
)

// Rule is one entry in a PolicyConfig's rule map.
type Rule struct {
	Allowed bool
	RuleID  string
	Reason  string
}

// Config is the resolved, in-memory policy: a fallback mode plus a map of
// per-tool rules keyed by validated tool name.
type Config struct {
	Mode  Mode
	Rules map[string]Rule // keyed by toolname.Name.String()
}

// AllowAllConfig returns the permissive default configuration.
func AllowAllConfig() Config {
	return Config{Mode: AllowAll, Rules: map[string]Rule{}}
}

// fileSchema mirrors the on-disk policy.json shape from spec.md §6.
type fileSchema struct {
	Mode  string      `json:"mode"`
	Rules []ruleEntry `json:"rules"`
}

type ruleEntry struct {
	Tool    string `json:"tool"`
	Allowed bool   `json:"allowed"`
	RuleID  string `json:"rule_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// LoaderOptions configures the Policy Loader (C8).
type LoaderOptions struct {
	// Path to policy.json, resolved relative to the agent root.
	Path string
	// RequireFile errors if Path does not exist instead of applying Fallback.
	RequireFile bool
	// Fallback is the mode applied when the file is missing (and
	// RequireFile is false) or when its "mode" field is unrecognized.
	Fallback Mode
}

// Load reads policy.json per opts and returns the resolved Config. Missing
// file: error if RequireFile, else Fallback with a warning. Unknown mode
// string: Fallback with a warning. Invalid tool names in rules: discarded
// with a warning, the rest of the file still loads.
func Load(ctx context.Context, opts LoaderOptions) (Config, error) {
	data, err := os.ReadFile(opts.Path)
	if err != nil {
		if opts.RequireFile {
			return Config{}, fmt.Errorf("policy: required file %s: %w", opts.Path, err)
		}
		log.Printf(ctx, "policy: %s not found, applying fallback mode %s", opts.Path, opts.Fallback)
		return Config{Mode: opts.Fallback, Rules: map[string]Rule{}}, nil
	}

	var parsed fileSchema
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Config{}, fmt.Errorf("policy: malformed %s: %w", opts.Path, err)
	}

	mode := opts.Fallback
	switch Mode(parsed.Mode) {
	case AllowAll, DefaultDeny:
		mode = Mode(parsed.Mode)
	default:
		log.Printf(ctx, "policy: unknown mode %q in %s, applying fallback %s", parsed.Mode, opts.Path, opts.Fallback)
	}

	rules := make(map[string]Rule, len(parsed.Rules))
	for _, entry := range parsed.Rules {
		name, err := toolname.Parse(entry.Tool)
		if err != nil {
			log.Printf(ctx, "policy: discarding rule with invalid tool name %q: %s", entry.Tool, err)
			continue
		}
		rules[name.String()] = Rule{Allowed: entry.Allowed, RuleID: entry.RuleID, Reason: entry.Reason}
	}

	return Config{Mode: mode, Rules: rules}, nil
}

// DecisionFor returns the resolved rule-or-fallback for name.
func (c Config) DecisionFor(name toolname.Name) Rule {
	if rule, ok := c.Rules[name.String()]; ok {
		return rule
	}
	switch c.Mode {
	case DefaultDeny:
		return Rule{Allowed: false, Reason: "denied by default policy"}
	default:
		return Rule{Allowed: true, Reason: "allowed by default policy"}
	}
}

// Guard is the pipeline.Guard implementation backed by a Config.
type Guard struct {
	config Config
}

// NewGuard constructs the Policy guard.
func NewGuard(config Config) *Guard { return &Guard{config: config} }

// Name implements pipeline.Guard.
func (g *Guard) Name() string { return "policy" }

// OnRequest implements pipeline.Guard: looks up ctx.ToolName, applying the
// fallback mode on miss. A Block message includes the tool name, the rule's
// reason, and the rule_id if present.
func (g *Guard) OnRequest(ctx context.Context, call pipeline.ToolCallContext) (pipeline.Decision, error) {
	name, err := toolname.Parse(call.ToolName)
	if err != nil {
		return pipeline.Block(fmt.Sprintf("invalid tool name %q", call.ToolName)), nil
	}

	decision := g.config.DecisionFor(name)
	if decision.Allowed {
		return pipeline.Allow(), nil
	}

	msg := fmt.Sprintf("Policy denied tool %s: %s", name.String(), decision.Reason)
	if decision.RuleID != "" {
		msg += fmt.Sprintf(" rule_id=%s", decision.RuleID)
	}
	return pipeline.Block(msg), nil
}

// OnComplete implements pipeline.Guard; Policy only observes, never acts on
// completion.
func (g *Guard) OnComplete(ctx context.Context, call pipeline.ToolCallContext, result json.RawMessage, callErr error, duration time.Duration) {
}
