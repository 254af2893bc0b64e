// Package harnesserr defines the harness-wide error taxonomy: a small set of
// kinds (not concrete types) that every dispatch-facing failure classifies
// into, plus a chain-preserving Error type modeled on the teacher's
// toolerrors.ToolError.
package harnesserr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy surfaced to dispatch callers.
type Kind string

const (
	// InvalidArgument is malformed tool input, an unknown action, or an
	// unparsable address/amount. Surfaced to the caller; never retried.
	InvalidArgument Kind = "invalid_argument"
	// Blocked means an interceptor denied dispatch. Reason is user-visible.
	Blocked Kind = "blocked"
	// ToolExecution is an outbound I/O or remote-service failure.
	ToolExecution Kind = "tool_execution"
	// Wallet is a secret parse or signing failure. Fatal for the dispatch.
	Wallet Kind = "wallet"
	// Simulation is an eth_call preflight that could not be issued at all.
	// A reverted call is not this kind — it is a successful SimulationResult
	// with Success=false.
	Simulation Kind = "simulation"
	// Config is a missing/malformed configuration file or path.
	Config Kind = "config"
	// BamlRuntime is a script runtime build/evaluation failure.
	BamlRuntime Kind = "baml_runtime"
)

// Error is a structured harness failure carrying a Kind, a human-readable
// message, and an optional causal chain.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New constructs an Error of the given kind with no cause.
func New(kind Kind, message string) *Error {
	if message == "" {
		message = string(kind)
	}
	return &Error{Kind: kind, Message: message}
}

// Errorf formats a message and returns it as an Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// NewWithCause constructs an Error wrapping an underlying error.
func NewWithCause(kind Kind, message string, cause error) *Error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Cause.Error())
	}
	return e.Message
}

// Unwrap supports errors.Is/errors.As against the causal chain.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// KindOf extracts the Kind from err, walking the error chain. Returns
// ToolExecution for errors that never classified (the conservative default:
// outbound I/O failures are the most common unclassified case).
func KindOf(err error) Kind {
	var he *Error
	if errors.As(err, &he) {
		return he.Kind
	}
	return ToolExecution
}
