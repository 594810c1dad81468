package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// render writes value in the requested format. Text output comes from the
// text callback so each command can use its own layout.
func render(w io.Writer, format string, value any, text func() string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		_, err := fmt.Fprintln(w, text())
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		enc.SetIndent(2)
		return enc.Encode(value)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
