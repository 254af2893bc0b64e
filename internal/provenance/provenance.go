// Package provenance implements the Provenance Writer (C9): a sink for
// ProvEvent records with mandatory redaction, an in-memory queryable store,
// a JSONL file appender, and a fan-out composer. Adapted from
// runtime/agent/runlog/{runlog.go,inmem/inmem.go} (sequenced in-memory
// store shape) and original_source/src/bin/telemetry_harness.rs's
// JsonlProvenanceWriter/FanoutProvenanceWriter.
package provenance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"goa.design/clue/log"

	"github.com/jojoalpha/agent-harness/internal/harnesserr"
	"github.com/jojoalpha/agent-harness/internal/pipeline"
)

// EventType enumerates the provenance event kinds.
type EventType string

const (
	ToolCallStarted   EventType = "ToolCallStarted"
	ToolCallCompleted EventType = "ToolCallCompleted"
	LlmCallStarted    EventType = "LlmCallStarted"
	LlmCallCompleted  EventType = "LlmCallCompleted"
)

// Event is one immutable provenance record. Data's sensitive fields must be
// redacted via Redacted (see Sanitize) before the event reaches a Writer.
type Event struct {
	EventID     string          `json:"event_id"`
	ContextID   string          `json:"context_id"`
	TimestampMs int64           `json:"timestamp_ms"`
	EventType   EventType       `json:"event_type"`
	Data        json.RawMessage `json:"data"`
}

// Redacted replaces a sensitive field's value in the persisted record: the
// original bytes are never stored, only their presence and hash.
type Redacted struct {
	RedactedFlag bool   `json:"redacted"`
	Hash         string `json:"hash"`
}

func hashBytes(raw json.RawMessage) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// NewRedacted builds a Redacted record for raw.
func NewRedacted(raw json.RawMessage) Redacted {
	return Redacted{RedactedFlag: true, Hash: hashBytes(raw)}
}

// Sanitize rewrites the "args" (and "prompt") keys of a ToolCall/LlmCall
// event's Data to their Redacted form in place, and, when
// metadata.error_class is absent but args.error_class carries a recognized
// string, promotes it into metadata.error_class. It is mandatory before any
// event reaches a Writer.
func Sanitize(evt Event) (Event, error) {
	var data map[string]json.RawMessage
	if err := json.Unmarshal(evt.Data, &data); err != nil {
		return evt, fmt.Errorf("provenance: event data is not a JSON object: %w", err)
	}

	var promotedErrorClass string
	if raw, ok := data["args"]; ok {
		var args map[string]json.RawMessage
		if err := json.Unmarshal(raw, &args); err == nil {
			if ec, ok := args["error_class"]; ok {
				var s string
				if json.Unmarshal(ec, &s) == nil && isRecognizedErrorClass(s) {
					promotedErrorClass = s
				}
			}
		}
		redacted, err := json.Marshal(NewRedacted(raw))
		if err != nil {
			return evt, err
		}
		data["args"] = redacted
	}
	if raw, ok := data["prompt"]; ok {
		redacted, err := json.Marshal(NewRedacted(raw))
		if err != nil {
			return evt, err
		}
		data["prompt"] = redacted
	}

	if promotedErrorClass != "" {
		var meta map[string]json.RawMessage
		if raw, ok := data["metadata"]; ok {
			_ = json.Unmarshal(raw, &meta)
		}
		if meta == nil {
			meta = map[string]json.RawMessage{}
		}
		if _, hasErrorClass := meta["error_class"]; !hasErrorClass {
			ecRaw, err := json.Marshal(promotedErrorClass)
			if err != nil {
				return evt, err
			}
			meta["error_class"] = ecRaw
			metaRaw, err := json.Marshal(meta)
			if err != nil {
				return evt, err
			}
			data["metadata"] = metaRaw
		}
	}

	sanitized, err := json.Marshal(data)
	if err != nil {
		return evt, err
	}
	evt.Data = sanitized
	return evt, nil
}

func isRecognizedErrorClass(s string) bool {
	switch s {
	case "transient", "permanent", "unknown":
		return true
	default:
		return false
	}
}

// Writer is a single-method provenance sink.
type Writer interface {
	AddEvent(ctx context.Context, evt Event) error
}

// MemoryStore is an in-memory, queryable-by-context Writer. IDs are
// monotonically assigned sequence numbers, mirroring the teacher's inmem
// runlog.Store.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	events []Event
}

// NewMemoryStore constructs an empty in-memory provenance store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AddEvent implements Writer.
func (s *MemoryStore) AddEvent(ctx context.Context, evt Event) error {
	sanitized, err := Sanitize(evt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sanitized.EventID = fmt.Sprintf("%d", s.nextID)
	s.events = append(s.events, sanitized)
	return nil
}

// Events returns a snapshot of all stored events.
func (s *MemoryStore) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// EventsForContext returns a snapshot of the events recorded for contextID.
func (s *MemoryStore) EventsForContext(contextID string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.ContextID == contextID {
			out = append(out, e)
		}
	}
	return out
}

// JSONLWriter appends sanitized events to a line-delimited JSON file,
// created (truncating any existing content) on construction, with parent
// directories created as needed.
type JSONLWriter struct {
	mu   sync.Mutex
	file *os.File
}

// NewJSONLWriter opens path with create/truncate semantics.
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("provenance: creating %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("provenance: opening %s: %w", path, err)
	}
	return &JSONLWriter{file: f}, nil
}

// AddEvent implements Writer.
func (w *JSONLWriter) AddEvent(ctx context.Context, evt Event) error {
	sanitized, err := Sanitize(evt)
	if err != nil {
		return err
	}
	line, err := json.Marshal(sanitized)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.file.Write(line)
	return err
}

// Close releases the underlying file handle.
func (w *JSONLWriter) Close() error { return w.file.Close() }

// FanoutWriter delivers every event to all children in order, failing (and
// stopping) on the first child failure.
type FanoutWriter struct {
	children []Writer
}

// NewFanoutWriter composes children into a single Writer.
func NewFanoutWriter(children ...Writer) *FanoutWriter {
	return &FanoutWriter{children: children}
}

// AddEvent implements Writer.
func (f *FanoutWriter) AddEvent(ctx context.Context, evt Event) error {
	for _, child := range f.children {
		if err := child.AddEvent(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// NewEvent constructs an unsanitized Event with the current time. Callers
// pass contextID, the event type, and a pre-marshaled JSON object for data;
// Sanitize runs inside the Writer, not here, since only the Writer knows
// whether a given event type needs redaction applied.
func NewEvent(contextID string, eventType EventType, data json.RawMessage) Event {
	return Event{
		ContextID:   contextID,
		TimestampMs: time.Now().UnixMilli(),
		EventType:   eventType,
		Data:        data,
	}
}

// Guard implements pipeline.Guard: it records ToolCallStarted/ToolCallCompleted
// events to writer. Per spec.md §4.7's fixed chain, Provenance is always the
// last guard, so a Block decision from any earlier guard keeps this guard
// from ever running for that call. Events are handed to writer unsanitized;
// Sanitize runs inside the Writer, the single mandatory sanitization point.
type Guard struct {
	writer Writer
}

// NewGuard constructs a Provenance guard recording to writer.
func NewGuard(writer Writer) *Guard {
	return &Guard{writer: writer}
}

// Name implements pipeline.Guard.
func (g *Guard) Name() string { return "provenance" }

// OnRequest implements pipeline.Guard: records ToolCallStarted. A failure to
// encode or persist the event aborts dispatch, mirroring the original
// dispatcher's recordStarted behavior.
func (g *Guard) OnRequest(ctx context.Context, call pipeline.ToolCallContext) (pipeline.Decision, error) {
	data, err := json.Marshal(map[string]any{
		"tool_name":     call.ToolName,
		"function_name": call.FunctionName,
		"args":          call.Args,
	})
	if err != nil {
		return pipeline.Decision{}, harnesserr.NewWithCause(harnesserr.ToolExecution, "failed to encode ToolCallStarted payload", err)
	}
	if err := g.writer.AddEvent(ctx, NewEvent(call.ContextID, ToolCallStarted, data)); err != nil {
		return pipeline.Decision{}, harnesserr.NewWithCause(harnesserr.ToolExecution, "provenance writer failed for ToolCallStarted", err)
	}
	return pipeline.Allow(), nil
}

// OnComplete implements pipeline.Guard: records ToolCallCompleted. It is
// best-effort: write failures are logged and never surfaced as the
// dispatch's error, matching the audit guard's posture.
func (g *Guard) OnComplete(ctx context.Context, call pipeline.ToolCallContext, result json.RawMessage, callErr error, duration time.Duration) {
	payload := map[string]any{
		"tool_name":     call.ToolName,
		"function_name": call.FunctionName,
		"duration_ms":   duration.Milliseconds(),
		"success":       callErr == nil,
	}
	if callErr != nil {
		payload["metadata"] = map[string]any{"error": callErr.Error()}
	} else {
		payload["result"] = result
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf(ctx, "provenance: failed to encode ToolCallCompleted payload: %s", err)
		return
	}
	if err := g.writer.AddEvent(ctx, NewEvent(call.ContextID, ToolCallCompleted, data)); err != nil {
		log.Printf(ctx, "provenance: writer failed for ToolCallCompleted: %s", err)
	}
}
