// Package telemetry computes the deterministic Telemetry Snapshot (C10): a
// versioned aggregate projection over a provenance event window. Adapted
// from spec.md §4.10 and the naming of
// original_source/src/bin/telemetry_harness.rs's provenance assertions.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jojoalpha/agent-harness/internal/harnesserr"
	"github.com/jojoalpha/agent-harness/internal/policy"
	"github.com/jojoalpha/agent-harness/internal/provenance"
	"github.com/jojoalpha/agent-harness/internal/toolname"
)

// SchemaVersion is the fixed version tag for this snapshot shape. Any
// structural change to Snapshot requires bumping this and SchemaHash.
const SchemaVersion = "v1"

// schemaDescription is hashed to produce SchemaHash. It must change
// whenever Snapshot's shape changes.
const schemaDescription = "TelemetrySnapshot v1: {version,schema_hash,context_id,window_ms,totals{tool_calls,tool_successes,tool_failures,avg_duration_ms},tools[{tool,calls,successes,failures,avg_duration_ms,success_rate,error_classes,policy_decision,cost_hint}],policy{mode,rules[],violations[]},cost_usd}"

// SchemaHash is the hex SHA-256 of schemaDescription.
var SchemaHash = func() string {
	sum := sha256.Sum256([]byte(schemaDescription))
	return hex.EncodeToString(sum[:])
}()

// ErrNoToolCallTelemetry is returned when the event list contains no
// ToolCall events to aggregate.
var ErrNoToolCallTelemetry = harnesserr.New(harnesserr.InvalidArgument, "no tool-call events in the provenance window")

// ToolStats is the per-tool aggregate.
type ToolStats struct {
	Tool           string         `json:"tool"`
	Calls          int            `json:"calls"`
	Successes      int            `json:"successes"`
	Failures       int            `json:"failures"`
	AvgDurationMs  *float64       `json:"avg_duration_ms,omitempty"`
	SuccessRate    float64        `json:"success_rate"`
	ErrorClasses   map[string]int `json:"error_classes"`
	PolicyDecision string         `json:"policy_decision"`
	CostHint       float64        `json:"cost_hint"`
}

// Totals is the cross-tool aggregate.
type Totals struct {
	ToolCalls     int      `json:"tool_calls"`
	ToolSuccesses int      `json:"tool_successes"`
	ToolFailures  int      `json:"tool_failures"`
	AvgDurationMs *float64 `json:"avg_duration_ms,omitempty"`
}

// PolicySummary reports the loaded policy mode, its rules, and any
// violations observed during the window.
type PolicySummary struct {
	Mode       string           `json:"mode"`
	Rules      []PolicyRuleView `json:"rules"`
	Violations []string         `json:"violations"`
}

// PolicyRuleView is a sorted, display-oriented view of one policy rule.
type PolicyRuleView struct {
	Tool    string `json:"tool"`
	Allowed bool   `json:"allowed"`
	RuleID  string `json:"rule_id,omitempty"`
}

// Snapshot is the versioned aggregate telemetry report.
type Snapshot struct {
	Version    string         `json:"version"`
	SchemaHash string         `json:"schema_hash"`
	ContextID  string         `json:"context_id"`
	WindowMs   int64          `json:"window_ms"`
	Totals     Totals         `json:"totals"`
	Tools      []ToolStats    `json:"tools"`
	Policy     PolicySummary  `json:"policy"`
	CostUSD    float64        `json:"cost_usd"`
}

// CostTable maps a tool name to its estimated USD cost per call.
type CostTable map[string]float64

type accumulator struct {
	calls        int
	successes    int
	failures     int
	totalDurMs   int64
	haveDuration bool
	errorClasses map[string]int
}

func classifyToolCallEvent(data map[string]json.RawMessage) (success bool, durationMs int64, errorClass string) {
	var metadata map[string]json.RawMessage
	if raw, ok := data["metadata"]; ok {
		_ = json.Unmarshal(raw, &metadata)
	}

	if raw, ok := data["duration_ms"]; ok {
		_ = json.Unmarshal(raw, &durationMs)
	}
	if raw, ok := data["success"]; ok {
		_ = json.Unmarshal(raw, &success)
	}

	if metadata != nil {
		if raw, ok := metadata["error_class"]; ok {
			var s string
			if json.Unmarshal(raw, &s) == nil {
				switch s {
				case "transient", "permanent", "unknown":
					return success, durationMs, s
				}
			}
		}
	}
	if success {
		return success, durationMs, ""
	}

	var message string
	if metadata != nil {
		for _, key := range []string{"error", "error_message"} {
			if raw, ok := metadata[key]; ok {
				var s string
				if json.Unmarshal(raw, &s) == nil {
					message = strings.ToLower(s)
					break
				}
			}
		}
	}
	return success, durationMs, classifyErrorMessage(message)
}

func classifyErrorMessage(lower string) string {
	if lower == "" {
		return "unknown"
	}
	for _, kw := range []string{"timeout", "rate", "temporary", "retry"} {
		if strings.Contains(lower, kw) {
			return "transient"
		}
	}
	for _, kw := range []string{"invalid", "unauthorized", "forbidden", "not found"} {
		if strings.Contains(lower, kw) {
			return "permanent"
		}
	}
	return "unknown"
}

// Build computes a Snapshot over events, weighting per-tool cost estimates
// with costs, and reporting policy coverage against cfg.
func Build(events []provenance.Event, cfg policy.Config, costs CostTable) (Snapshot, error) {
	perTool := map[string]*accumulator{}
	var order []string

	var minTs, maxTs int64
	var haveTs bool
	var contextID string

	for _, evt := range events {
		if evt.EventType != provenance.ToolCallStarted && evt.EventType != provenance.ToolCallCompleted {
			continue
		}
		if !haveTs {
			minTs, maxTs = evt.TimestampMs, evt.TimestampMs
			haveTs = true
			contextID = evt.ContextID
		} else {
			if evt.TimestampMs < minTs {
				minTs = evt.TimestampMs
			}
			if evt.TimestampMs > maxTs {
				maxTs = evt.TimestampMs
			}
		}

		if evt.EventType != provenance.ToolCallCompleted {
			continue
		}

		var data map[string]json.RawMessage
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			continue
		}
		var toolNameStr string
		if raw, ok := data["tool_name"]; ok {
			_ = json.Unmarshal(raw, &toolNameStr)
		}
		if toolNameStr == "" {
			continue
		}
		if _, err := toolname.Parse(toolNameStr); err != nil {
			continue
		}

		acc, ok := perTool[toolNameStr]
		if !ok {
			acc = &accumulator{errorClasses: map[string]int{}}
			perTool[toolNameStr] = acc
			order = append(order, toolNameStr)
		}

		success, durationMs, errorClass := classifyToolCallEvent(data)
		acc.calls++
		if success {
			acc.successes++
		} else {
			acc.failures++
			acc.errorClasses[errorClass]++
		}
		acc.totalDurMs += durationMs
		acc.haveDuration = true
	}

	if len(perTool) == 0 {
		return Snapshot{}, ErrNoToolCallTelemetry
	}

	sort.Strings(order)

	var tools []ToolStats
	var totalCalls, totalSuccesses, totalFailures int
	var totalDurMs int64
	var haveAnyDuration bool
	var costUSD float64

	for _, name := range order {
		acc := perTool[name]
		stats := ToolStats{
			Tool:         name,
			Calls:        acc.calls,
			Successes:    acc.successes,
			Failures:     acc.failures,
			ErrorClasses: acc.errorClasses,
		}
		if acc.calls > 0 {
			stats.SuccessRate = float64(acc.successes) / float64(acc.calls)
		}
		if acc.haveDuration && acc.calls > 0 {
			avg := float64(acc.totalDurMs) / float64(acc.calls)
			stats.AvgDurationMs = &avg
			haveAnyDuration = true
		}

		parsed, _ := toolname.Parse(name)
		decision := cfg.DecisionFor(parsed)
		if decision.Allowed {
			stats.PolicyDecision = "allow"
		} else {
			stats.PolicyDecision = "deny"
		}

		if perCall, ok := costs[name]; ok {
			stats.CostHint = perCall * float64(acc.calls)
			costUSD += stats.CostHint
		}

		tools = append(tools, stats)

		totalCalls += acc.calls
		totalSuccesses += acc.successes
		totalFailures += acc.failures
		totalDurMs += acc.totalDurMs
	}

	totals := Totals{ToolCalls: totalCalls, ToolSuccesses: totalSuccesses, ToolFailures: totalFailures}
	if haveAnyDuration && totalCalls > 0 {
		avg := float64(totalDurMs) / float64(totalCalls)
		totals.AvgDurationMs = &avg
	}

	windowMs := int64(0)
	if haveTs {
		windowMs = maxTs - minTs
	}

	return Snapshot{
		Version:    SchemaVersion,
		SchemaHash: SchemaHash,
		ContextID:  contextID,
		WindowMs:   windowMs,
		Totals:     totals,
		Tools:      tools,
		Policy:     buildPolicySummary(cfg, tools),
		CostUSD:    costUSD,
	}, nil
}

func buildPolicySummary(cfg policy.Config, tools []ToolStats) PolicySummary {
	var rules []PolicyRuleView
	for toolKey, rule := range cfg.Rules {
		rules = append(rules, PolicyRuleView{Tool: toolKey, Allowed: rule.Allowed, RuleID: rule.RuleID})
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Tool < rules[j].Tool })

	var violations []string
	for _, ts := range tools {
		if ts.PolicyDecision == "deny" && ts.Calls > 0 {
			violations = append(violations, fmt.Sprintf("%s: %d call(s) recorded under a denying decision", ts.Tool, ts.Calls))
		}
	}

	return PolicySummary{Mode: string(cfg.Mode), Rules: rules, Violations: violations}
}

// Marshal serializes a Snapshot deterministically: struct field order is
// stable and encoding/json already sorts map keys lexicographically.
func Marshal(s Snapshot) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
