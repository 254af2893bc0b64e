// Package audit implements the Audit interceptor: appends a JSONL entry
// for the start and completion of every tool call, never blocking.
// Adapted from original_source/src/interceptors/audit_log.rs, with the
// file writer narrowed to the teacher's append-only JSONL idiom
// (runtime/agent/runlog/inmem).
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"goa.design/clue/log"

	"github.com/jojoalpha/agent-harness/internal/pipeline"
)

// Entry is one audit-log record. Fields are nil/empty when not applicable
// to the entry's type.
type Entry struct {
	Timestamp    time.Time       `json:"timestamp"`
	EntryType    string          `json:"entry_type"`
	ContextID    string          `json:"context_id,omitempty"`
	ToolName     string          `json:"tool_name,omitempty"`
	FunctionName string          `json:"function_name,omitempty"`
	Args         json.RawMessage `json:"args,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	DurationMs   int64           `json:"duration_ms"`
	Status       string          `json:"status"`
}

const (
	maxArgsBytes   = 500
	maxResultBytes = 1000
)

// Guard appends every tool call's start and completion to a JSONL file.
type Guard struct {
	mu   sync.Mutex
	file *os.File
}

// New opens (creating if needed) the audit log at path in append mode.
func New(path string) (*Guard, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: opening %s: %w", path, err)
	}
	return &Guard{file: f}, nil
}

// Name implements pipeline.Guard.
func (g *Guard) Name() string { return "audit" }

func truncate(raw json.RawMessage, limit int) json.RawMessage {
	if len(raw) <= limit {
		return raw
	}
	truncated, _ := json.Marshal(string(raw[:limit]) + "... [truncated]")
	return truncated
}

func (g *Guard) write(ctx context.Context, entry Entry) {
	line, err := json.Marshal(entry)
	if err != nil {
		log.Printf(ctx, "audit: failed to marshal entry: %s", err)
		return
	}
	line = append(line, '\n')

	g.mu.Lock()
	_, err = g.file.Write(line)
	g.mu.Unlock()
	if err != nil {
		log.Printf(ctx, "audit: failed to write entry: %s", err)
	}
}

// OnRequest implements pipeline.Guard: logs start, never blocks.
func (g *Guard) OnRequest(ctx context.Context, call pipeline.ToolCallContext) (pipeline.Decision, error) {
	g.write(ctx, Entry{
		Timestamp:    time.Now().UTC(),
		EntryType:    "tool_call_start",
		ContextID:    call.ContextID,
		ToolName:     call.ToolName,
		FunctionName: call.FunctionName,
		Args:         truncate(call.Args, maxArgsBytes),
		Status:       "pending",
	})
	return pipeline.Allow(), nil
}

// OnComplete implements pipeline.Guard: logs the outcome.
func (g *Guard) OnComplete(ctx context.Context, call pipeline.ToolCallContext, result json.RawMessage, callErr error, duration time.Duration) {
	entry := Entry{
		Timestamp:    time.Now().UTC(),
		EntryType:    "tool_call_complete",
		ContextID:    call.ContextID,
		ToolName:     call.ToolName,
		FunctionName: call.FunctionName,
		Args:         truncate(call.Args, maxArgsBytes),
		DurationMs:   duration.Milliseconds(),
	}
	if callErr != nil {
		entry.Status = "error"
		entry.Error = callErr.Error()
	} else {
		entry.Status = "success"
		entry.Result = truncate(result, maxResultBytes)
	}
	g.write(ctx, entry)
}

// Close releases the underlying file handle.
func (g *Guard) Close() error {
	return g.file.Close()
}
