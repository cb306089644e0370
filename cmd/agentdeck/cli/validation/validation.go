// Package validation provides input validation for identifiers that end up
// in file paths or audit lines. It has no dependencies to avoid import cycles.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// sessionIDRegex matches alphanumeric characters, underscores, and hyphens
// only. Session IDs are used both as registry keys and as audit log
// filenames, so anything looser is a path traversal risk.
var sessionIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateSessionID validates a session ID received from a hook payload or
// an HTTP path segment.
func ValidateSessionID(id string) error {
	if id == "" {
		return errors.New("session ID cannot be empty")
	}
	if strings.ContainsRune(id, 0) {
		return fmt.Errorf("invalid session ID: contains NUL byte")
	}
	if !sessionIDRegex.MatchString(id) {
		return fmt.Errorf("invalid session ID %q: must be alphanumeric with underscores/hyphens only", id)
	}
	return nil
}

// ValidateToolUseID validates a tool use ID. Tool use IDs can be UUIDs or
// prefixed identifiers like "toolu_xxx". Empty is allowed (optional field).
func ValidateToolUseID(id string) error {
	if id == "" {
		return nil
	}
	if !sessionIDRegex.MatchString(id) {
		return fmt.Errorf("invalid tool use ID %q: must be alphanumeric with underscores/hyphens only", id)
	}
	return nil
}
