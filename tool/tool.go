// Package tool implements the tool calling subsystem: the capability
// contract every tool exposes, a registry enforcing the read-only/all-tools
// policy, and the built-in tools. The engine treats all tools
// polymorphically through the Tool interface regardless of origin.
package tool

import (
	"context"
	"fmt"

	"github.com/8agana/polychat/core"
)

// Spec describes a tool to the registry and, through the provider layer,
// to the model. Registered once at startup; immutable thereafter.
type Spec struct {
	// Name is the unique identifier within a registry (snake_case).
	Name string
	// Description tells the model when and how to use the tool.
	Description string
	// Parameters is a JSON Schema object describing the argument shape.
	Parameters map[string]any
	// ReadOnly marks tools without side effects; only these are callable
	// in planning mode.
	ReadOnly bool
}

// Tool is the capability contract consumed by the engine. Implementations
// should validate their arguments, handle errors gracefully, and be safe
// for sequential reuse across turns.
type Tool interface {
	// Spec returns the immutable descriptor of this tool.
	Spec() Spec

	// Call executes the tool with already-decoded arguments. The returned
	// value must be JSON-serializable; failures become the tool result's
	// content rather than aborting the run.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ExecutionError represents errors that occur during tool execution.
type ExecutionError struct {
	Tool    string `json:"tool"`    // Name of the tool that failed
	Message string `json:"message"` // Error message
	Code    string `json:"code"`    // Error code for categorization
}

func (e *ExecutionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// DuplicateError reports a second registration under an existing name.
type DuplicateError struct {
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

// UnknownError reports resolution of an unregistered tool name.
type UnknownError struct {
	Name string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// PolicyError reports a tool disallowed under the current mode or excluded
// by the configured allow-list. It is recovered locally: the engine feeds
// it back to the model as the tool's result.
type PolicyError struct {
	Tool   string
	Mode   core.Mode
	Reason string
}

func (e *PolicyError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("tool %q is not permitted: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("tool %q is disabled in %s mode", e.Tool, e.Mode)
}
