// Package export writes conversation transcripts to files. The output
// format follows the target path's extension: .json for the raw log, .md
// for a readable transcript, .html for a minimal styled page.
package export

import (
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/8agana/polychat/core"
)

// Save writes the conversation to path in the format implied by its
// extension. Unknown extensions are an error.
func Save(path string, conv *core.Conversation) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = renderJSON(conv)
	case ".md":
		data = renderMarkdown(conv)
	case ".html":
		data = renderHTML(conv)
	default:
		return fmt.Errorf("unsupported export format %q (want .json, .md or .html)", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func renderJSON(conv *core.Conversation) ([]byte, error) {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func renderMarkdown(conv *core.Conversation) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# Session %s\n\n", conv.SessionID)
	for _, m := range conv.Messages {
		fmt.Fprintf(&b, "## %s\n\n", m.Role)
		if m.Content != "" {
			b.WriteString(m.Content)
			b.WriteString("\n\n")
		}
		for _, tc := range m.ToolCalls {
			fmt.Fprintf(&b, "- tool call `%s` (%s): `%s`\n", tc.Name, tc.ID, string(tc.Arguments))
		}
		if len(m.ToolCalls) > 0 {
			b.WriteString("\n")
		}
	}
	return []byte(b.String())
}

func renderHTML(conv *core.Conversation) []byte {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>Session %s</title>\n", html.EscapeString(conv.SessionID))
	b.WriteString("<style>body{font-family:sans-serif;max-width:48rem;margin:2rem auto}" +
		".msg{margin-bottom:1rem;padding:0.5rem 1rem;border-radius:6px}" +
		".user{background:#eef}.assistant{background:#efe}.system{background:#eee}.tool{background:#fee}" +
		".role{font-weight:bold;text-transform:capitalize}</style>\n</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>Session %s</h1>\n", html.EscapeString(conv.SessionID))
	for _, m := range conv.Messages {
		fmt.Fprintf(&b, "<div class=\"msg %s\">\n<div class=\"role\">%s</div>\n", m.Role, m.Role)
		if m.Content != "" {
			fmt.Fprintf(&b, "<pre>%s</pre>\n", html.EscapeString(m.Content))
		}
		for _, tc := range m.ToolCalls {
			fmt.Fprintf(&b, "<div class=\"call\"><code>%s(%s)</code></div>\n",
				html.EscapeString(tc.Name), html.EscapeString(string(tc.Arguments)))
		}
		b.WriteString("</div>\n")
	}
	b.WriteString("</body>\n</html>\n")
	return []byte(b.String())
}
