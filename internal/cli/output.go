package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// writeOutput renders a JSON payload as indented JSON or YAML.
func writeOutput(w io.Writer, format string, data json.RawMessage) error {
	if len(bytes.TrimSpace(data)) == 0 {
		data = json.RawMessage("null")
	}
	switch format {
	case "", "json":
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return fmt.Errorf("format json: %w", err)
		}
		buf.WriteByte('\n')
		_, err := w.Write(buf.Bytes())
		return err
	case "yaml":
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return writeYAML(w, v)
	default:
		return fmt.Errorf("unsupported output format %q (use json or yaml)", format)
	}
}

// writeValue renders any value as JSON or YAML.
func writeValue(w io.Writer, format string, v any) error {
	if format == "yaml" {
		return writeYAML(w, v)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return writeOutput(w, format, data)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("format yaml: %w", err)
	}
	return enc.Close()
}
