package runner

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/jojoalpha/agent-harness/internal/harnesserr"
	"github.com/jojoalpha/agent-harness/internal/pipeline"
	"github.com/jojoalpha/agent-harness/internal/toolname"
	"github.com/jojoalpha/agent-harness/internal/toolspec"
)

// Dispatcher ties the registered tool set, schema validation, and the fixed
// interceptor pipeline together: the single host-facing entrypoint a
// sandboxed agent's __tool_invoke call resolves to. Adapted from the
// original's AgentRunner::register_tools (tool registry construction) and
// the pipeline's "dispatch contract" in spec.md §4.7. Provenance recording
// is not done here: it is the pipeline's last guard (see
// internal/provenance.Guard), so it is gated by the same short-circuit as
// every other guard.
type Dispatcher struct {
	tools    map[string]toolspec.Tool
	pipeline *pipeline.Pipeline

	mu        sync.Mutex
	specs     []toolspec.Spec
	validator *toolspec.Validator
}

// NewDispatcher constructs a Dispatcher over an already-built guard chain.
func NewDispatcher(p *pipeline.Pipeline) *Dispatcher {
	return &Dispatcher{tools: make(map[string]toolspec.Tool), pipeline: p}
}

// Register adds tool to the dispatch table, keyed by its declared Spec
// name, and recompiles the schema validator over every registered spec so
// Dispatch can validate args before the pipeline runs. Registering two tools
// under the same name overwrites the first.
func (d *Dispatcher) Register(tool toolspec.Tool) {
	spec := tool.Spec()
	d.tools[spec.Name.String()] = tool

	d.mu.Lock()
	defer d.mu.Unlock()
	d.specs = append(d.specs, spec)
	// A compile failure here is a static schema bug, not a runtime
	// condition: keep the previous validator rather than losing validation
	// for every already-registered tool over one bad spec.
	if validator, err := toolspec.NewValidator(d.specs); err == nil {
		d.validator = validator
	}
}

// Dispatch resolves toolName, validates args against its declared schema
// (C3), then runs the call through the interceptor pipeline and invokes the
// tool body on Allow.
func (d *Dispatcher) Dispatch(ctx context.Context, toolName, functionName string, args json.RawMessage, contextID string) (json.RawMessage, error) {
	tool, ok := d.tools[toolName]
	if !ok {
		return nil, harnesserr.Errorf(harnesserr.InvalidArgument, "unknown tool %q", toolName)
	}

	parsedName, err := toolname.Parse(toolName)
	if err != nil {
		return nil, harnesserr.NewWithCause(harnesserr.InvalidArgument, "invalid tool name", err)
	}

	d.mu.Lock()
	validator := d.validator
	d.mu.Unlock()
	if validator != nil {
		if err := validator.ValidatePayload(parsedName, args); err != nil {
			return nil, err
		}
	}

	call := pipeline.ToolCallContext{
		ToolName:     toolName,
		FunctionName: functionName,
		Args:         args,
		ContextID:    contextID,
	}

	return d.pipeline.Dispatch(ctx, call, func(ctx context.Context) (json.RawMessage, error) {
		return tool.Execute(ctx, args)
	})
}

// NewContextID generates a fresh opaque context_id for a dispatch that
// does not already belong to one (e.g. a CLI one-shot invocation).
func NewContextID() string {
	return uuid.NewString()
}
