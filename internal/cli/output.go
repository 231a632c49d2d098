package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/veracity/internal/model"
)

// printJSON writes v as indented JSON to stdout
func printJSON(v any) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// printSignals lists the signals behind a score on stderr
func printSignals(signals []model.Signal) {
	for _, s := range signals {
		fmt.Fprintf(os.Stderr, "  [%s] %s: %s\n", s.Severity, s.Type, s.Description)
	}
}
