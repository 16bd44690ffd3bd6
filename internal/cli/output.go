package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// write renders v as indented JSON, or calls text for the text format.
func write(w io.Writer, format string, v interface{}, text func(w io.Writer) error) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	}
	return text(w)
}

func line(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format+"\n", args...)
}
