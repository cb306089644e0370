// Package jsonutil contains small JSON helpers shared across the daemon.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MarshalIndentWithNewline marshals v with indentation and a trailing
// newline, so written files end the way editors and diff tools expect.
func MarshalIndentWithNewline(v any, prefix, indent string) ([]byte, error) {
	data, err := json.MarshalIndent(v, prefix, indent)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteFileAtomic marshals v and writes it to path via a temp file and
// rename, so readers never observe a partially written file.
func WriteFileAtomic(path string, v any) error {
	data, err := MarshalIndentWithNewline(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
