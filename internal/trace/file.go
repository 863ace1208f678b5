package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadFile reads a trace from a JSON document. A trace without a trace_id is
// rejected; unknown event types are mapped to error events rather than
// failing the load.
func LoadFile(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace file: %w", err)
	}
	return Decode(data)
}

// Decode parses a trace from JSON bytes, applying the same validation as
// LoadFile.
func Decode(data []byte) (*Trace, error) {
	var tr Trace
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("parse trace: %w", err)
	}
	if tr.ID == "" {
		return nil, fmt.Errorf("trace has no trace_id")
	}
	tr.normalize()
	return &tr, nil
}

// SaveFile writes a trace as an indented JSON document, creating parent
// directories as needed.
func SaveFile(tr *Trace, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create trace directory: %w", err)
	}

	data, err := json.MarshalIndent(tr, "", "  ")
	if err != nil {
		return fmt.Errorf("encode trace: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write trace file: %w", err)
	}
	return nil
}
