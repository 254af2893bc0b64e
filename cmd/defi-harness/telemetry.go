package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"

	"github.com/jojoalpha/agent-harness/internal/harnesserr"
	"github.com/jojoalpha/agent-harness/internal/policy"
	"github.com/jojoalpha/agent-harness/internal/provenance"
	"github.com/jojoalpha/agent-harness/internal/telemetry"
)

// telemetryCommand computes a Telemetry Snapshot (C10) over a durable
// provenance JSONL log produced by a prior `run --provenance-log <path>`
// invocation, and prints it. It builds no pipeline and dispatches nothing:
// a read-only aggregation over events a run already recorded.
func telemetryCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("telemetry", flag.ContinueOnError)
	logPath := fs.String("provenance-log", "", "path to a provenance JSONL log (see run --provenance-log)")
	agentDir := fs.String("agent", "", "agent root directory (for policy.json; omit for an allow-all policy summary)")
	costFile := fs.String("cost-file", "", "path to a JSON object mapping tool name to per-call USD cost")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *logPath == "" {
		return harnesserr.New(harnesserr.InvalidArgument, "missing --provenance-log")
	}

	events, err := readProvenanceLog(*logPath)
	if err != nil {
		return err
	}

	policyCfg := policy.AllowAllConfig()
	if *agentDir != "" {
		policyCfg, err = policy.Load(ctx, policy.LoaderOptions{
			Path:     filepath.Join(*agentDir, "policy.json"),
			Fallback: policy.DefaultDeny,
		})
		if err != nil {
			return err
		}
	}

	costs, err := loadCostTable(*costFile)
	if err != nil {
		return err
	}

	snapshot, err := telemetry.Build(events, policyCfg, costs)
	if err != nil {
		return err
	}
	return printJSON(snapshot)
}

// readProvenanceLog decodes a JSONLWriter-produced file back into events.
func readProvenanceLog(path string) ([]provenance.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.Config, "failed to open provenance log", err)
	}
	defer f.Close()

	var events []provenance.Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var evt provenance.Event
		if err := json.Unmarshal(line, &evt); err != nil {
			return nil, harnesserr.NewWithCause(harnesserr.Config, "malformed provenance log line", err)
		}
		events = append(events, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.Config, "failed to read provenance log", err)
	}
	return events, nil
}

func loadCostTable(path string) (telemetry.CostTable, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.Config, "failed to read cost file", err)
	}
	var costs telemetry.CostTable
	if err := json.Unmarshal(data, &costs); err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.Config, "malformed cost file", err)
	}
	return costs, nil
}
