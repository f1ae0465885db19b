package tool

import (
	"context"
	"fmt"

	"github.com/8agana/polychat/internal/util"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a
// tool.
//
// Responsibilities:
//   - Holds a lightweight JSON-Schema-like parameter specification
//   - Validates model supplied arguments against that schema before execution
//   - Normalizes error handling so callers receive *ExecutionError with
//     consistent codes:
//     VALIDATION_ERROR  -> schema / argument mismatch
//     EXECUTION_ERROR   -> underlying function returned an error
//     (custom codes preserved if the function returns *ExecutionError directly)
//
// Concurrency:
//
//	A FunctionTool has no internal mutable state after construction and is
//	safe for concurrent use by multiple goroutines.
//
// Parameter Schema Expectations:
//
//	The parameters map should follow the minimal JSON Schema shape used
//	elsewhere in the project. Only the subset actually validated by
//	util.ValidateParameters needs to be supplied (type, properties,
//	required, enum, etc.).
type FunctionTool struct {
	// Tool identifier (snake_case recommended)
	name string
	// Human-readable description shown to models
	description string
	// JSON schema describing accepted arguments
	parameters map[string]any
	// Marks the tool safe for planning mode
	readOnly bool
	// User supplied implementation
	fn func(ctx context.Context, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Arguments:
//
//	name        - unique tool name (avoid collisions; snake_case suggested)
//	description - concise, imperative description ("Calculate the ...")
//	parameters  - minimal JSON-Schema-like map describing accepted arguments
//	readOnly    - whether the tool mutates nothing and may run in planning mode
//	fn          - implementation receiving already validated args
//
// Example:
//
//	sumTool := NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  true,
//	  func(ctx context.Context, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	readOnly bool,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		readOnly:    readOnly,
		fn:          fn,
	}
}

// Spec returns the declaration advertised to providers.
func (t *FunctionTool) Spec() Spec {
	return Spec{
		Name:        t.name,
		Description: t.description,
		Parameters:  t.parameters,
		ReadOnly:    t.readOnly,
	}
}

// Call validates the provided args against the declared schema then invokes
// the underlying function. Validation or execution failures are wrapped (or
// passed through) as *ExecutionError for uniform downstream handling.
//
// Error Semantics:
//
//	*ExecutionError (returned directly)  -> forwarded unchanged
//	validation failure                   -> *ExecutionError{Code: "VALIDATION_ERROR"}
//	other error                          -> *ExecutionError{Code: "EXECUTION_ERROR"}
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (any, error) {
	if err := util.ValidateParameters(args, t.parameters); err != nil {
		return nil, &ExecutionError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    "VALIDATION_ERROR",
		}
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		if execErr, ok := err.(*ExecutionError); ok {
			return nil, execErr
		}
		return nil, &ExecutionError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    "EXECUTION_ERROR",
		}
	}

	return result, nil
}
