package tool

import (
	"context"
	"fmt"
	"io"
	"os"
)

const (
	defaultReadBytes = 65536
	maxReadBytes     = 1048576
)

// NewReadFileTool returns the read_file built-in. It reads a local file up
// to a byte cap and reports whether the content was truncated. The tool is
// read-only and therefore available in planning mode.
func NewReadFileTool() *FunctionTool {
	return NewFunctionTool(
		"read_file",
		"Read the contents of a local file (UTF-8 text), optionally capped at max_bytes",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the file to read",
				},
				"max_bytes": map[string]any{
					"type":        "number",
					"description": "Maximum number of bytes to return (default 65536, cap 1048576)",
				},
			},
			"required": []string{"path"},
		},
		true,
		readFile,
	)
}

func readFile(_ context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("path must be a non-empty string")
	}

	limit := defaultReadBytes
	if raw, ok := args["max_bytes"]; ok {
		n, ok := raw.(float64)
		if !ok || n < 1 {
			return nil, fmt.Errorf("max_bytes must be a positive number")
		}
		limit = int(n)
		if limit > maxReadBytes {
			limit = maxReadBytes
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	// Read one byte past the limit to detect truncation.
	buf, err := io.ReadAll(io.LimitReader(f, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	truncated := len(buf) > limit
	if truncated {
		buf = buf[:limit]
	}

	return map[string]any{
		"path":      path,
		"bytes":     len(buf),
		"truncated": truncated,
		"content":   string(buf),
	}, nil
}
