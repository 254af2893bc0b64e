// Package toolspec describes tool identity and typed input/output schema,
// adapting the teacher's ToolSpec/TypeSpec/JSONCodec pattern
// (runtime/agent/tools/tools.go) to the bundle/local tool-name format and
// the jsonschema/v6 validator.
package toolspec

import (
	"context"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/jojoalpha/agent-harness/internal/harnesserr"
	"github.com/jojoalpha/agent-harness/internal/toolname"
)

// JSONCodec serializes and deserializes strongly typed values to and from
// JSON, mirroring the teacher's generic codec shape.
type JSONCodec[T any] struct {
	ToJSON   func(T) ([]byte, error)
	FromJSON func([]byte) (T, error)
}

// TypeSpec describes the payload or result schema for a tool.
type TypeSpec struct {
	Name   string
	Schema []byte // compiled JSON Schema source
}

// Spec enumerates the metadata for one registered tool.
type Spec struct {
	Name        toolname.Name
	Description string
	Payload     TypeSpec
	Result      TypeSpec
}

// Tool is the execution contract every concrete tool implements: a single
// typed entrypoint taking validated JSON input and returning a JSON result.
type Tool interface {
	Spec() Spec
	Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error)
}

// Validator validates raw JSON input against a tool's declared payload
// schema before Execute runs. Result schemas are not compiled or checked.
type Validator struct {
	compiled map[string]*jsonschema.Schema
}

// NewValidator compiles the payload schema for every spec in specs, keyed by
// tool name. A tool with an empty Payload.Schema is skipped (no input
// validation is imposed).
func NewValidator(specs []Spec) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiled := make(map[string]*jsonschema.Schema, len(specs))

	for _, spec := range specs {
		if len(spec.Payload.Schema) == 0 {
			continue
		}
		url := "mem://" + spec.Name.String() + "/payload.json"
		var doc any
		if err := json.Unmarshal(spec.Payload.Schema, &doc); err != nil {
			return nil, harnesserr.NewWithCause(harnesserr.Config, "invalid schema for "+spec.Name.String(), err)
		}
		if err := compiler.AddResource(url, doc); err != nil {
			return nil, harnesserr.NewWithCause(harnesserr.Config, "failed to register schema for "+spec.Name.String(), err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, harnesserr.NewWithCause(harnesserr.Config, "failed to compile schema for "+spec.Name.String(), err)
		}
		compiled[spec.Name.String()] = schema
	}

	return &Validator{compiled: compiled}, nil
}

// ValidatePayload checks args against the compiled schema for name, if one
// was registered. Returns an InvalidArgument error naming the offending
// field on mismatch.
func (v *Validator) ValidatePayload(name toolname.Name, args json.RawMessage) error {
	schema, ok := v.compiled[name.String()]
	if !ok {
		return nil
	}
	var instance any
	if err := json.Unmarshal(args, &instance); err != nil {
		return harnesserr.NewWithCause(harnesserr.InvalidArgument, "args is not valid JSON", err)
	}
	if err := schema.Validate(instance); err != nil {
		return harnesserr.NewWithCause(harnesserr.InvalidArgument, "args failed schema validation for "+name.String(), err)
	}
	return nil
}
