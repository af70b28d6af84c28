package format

import (
	"encoding/json"
	"fmt"
	"io"
)

// Texter is implemented by values with a human-readable rendering.
type Texter interface {
	Text() string
}

// Write writes output in the requested format.
//
// Supported formats:
// - json (default)
// - text (falls back to pretty JSON for values without a text form)
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch format {
	case "", "json":
		return WriteJSON(w, v, pretty)
	case "text":
		if t, ok := v.(Texter); ok {
			_, err := fmt.Fprintln(w, t.Text())
			return err
		}
		return WriteJSON(w, v, true)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteJSON writes strict JSON output for CLI commands.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if raw, ok := v.(json.RawMessage); ok && pretty {
		var anyV any
		if err := json.Unmarshal(raw, &anyV); err == nil {
			v = anyV
		}
	}
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}
