// Package output renders command results as a table, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is an output format name.
type Format string

// Supported formats.
const (
	Table Format = "table"
	JSON  Format = "json"
	YAML  Format = "yaml"
)

// ParseFormat resolves format name. Empty name means Table.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return Table, nil
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (table, json or yaml expected)", s)
	}
}

func (f Format) String() string {
	return string(f)
}

// Print writes v to w in format f. Table format requires v to implement
// Tabular; other values are written as JSON.
func Print(w io.Writer, f Format, v any) error {
	switch f {
	case Table:
		if t, ok := v.(Tabular); ok {
			return PrintTable(w, t)
		}
		return PrintJSON(w, v)
	case JSON:
		return PrintJSON(w, v)
	case YAML:
		return PrintYAML(w, v)
	default:
		return fmt.Errorf("unsupported output format %q", f)
	}
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintYAML writes v as YAML document.
func PrintYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(v)
	if err != nil {
		_ = enc.Close()
		return err
	}

	return enc.Close()
}
