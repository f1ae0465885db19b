package tool

import "context"

// NewEchoTool returns the echo built-in, which reflects its arguments back
// to the model. Useful for exercising the tool loop end to end without side
// effects.
func NewEchoTool() *FunctionTool {
	return NewFunctionTool(
		"echo",
		"Echo the provided text back unchanged",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{
					"type":        "string",
					"description": "Text to echo back",
				},
			},
			"required": []string{"text"},
		},
		true,
		func(_ context.Context, args map[string]any) (any, error) {
			return map[string]any{"echo": args}, nil
		},
	)
}
