// Package auditlog records per-session hook and transition history as
// append-only text files. Writes are best-effort: audit loss must never
// fail a hook or hold up a transition.
package auditlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/validation"
)

// Log appends audit lines to one file per session under dir.
type Log struct {
	dir string

	mu     sync.Mutex
	inited map[string]bool // session IDs that already got their [init] line
	now    func() time.Time
}

// New creates an audit log rooted at dir. The directory is created lazily
// on first append.
func New(dir string) *Log {
	return &Log{
		dir:    dir,
		inited: make(map[string]bool),
		now:    time.Now,
	}
}

// RecordInit writes the one-time "[init] <state>" line for a session.
// Repeated calls for the same session within this process are ignored.
func (l *Log) RecordInit(sessionID, state string) {
	l.mu.Lock()
	if l.inited[sessionID] {
		l.mu.Unlock()
		return
	}
	l.inited[sessionID] = true
	l.mu.Unlock()

	l.append(sessionID, fmt.Sprintf("[init] %s", state))
}

// RecordHook writes a "[hook] <name>" line.
func (l *Log) RecordHook(sessionID, hookName string) {
	l.append(sessionID, fmt.Sprintf("[hook] %s", hookName))
}

// RecordTransition writes a state change line:
//
//	prev -> next event:STOP source:hook tool:Bash
//
// Extra key:value pairs come from meta in insertion order.
func (l *Log) RecordTransition(sessionID, prev, next, event, source string, meta [][2]string) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s -> %s event:%s source:%s", prev, next, event, source)
	for _, kv := range meta {
		if kv[1] != "" {
			fmt.Fprintf(&b, " %s:%s", kv[0], kv[1])
		}
	}
	l.append(sessionID, b.String())
}

// Path returns the audit file path for a session, or an error for IDs that
// are not safe to use as filenames.
func (l *Log) Path(sessionID string) (string, error) {
	if err := validation.ValidateSessionID(sessionID); err != nil {
		return "", err
	}
	return filepath.Join(l.dir, sessionID+".log"), nil
}

// Open opens a session's audit file for reading.
func (l *Log) Open(sessionID string) (*os.File, error) {
	path, err := l.Path(sessionID)
	if err != nil {
		return nil, err
	}
	return os.Open(path) //nolint:gosec // session ID validated by Path
}

// append writes one timestamped line, swallowing all errors.
func (l *Log) append(sessionID, line string) {
	path, err := l.Path(sessionID)
	if err != nil {
		return
	}
	if err := os.MkdirAll(l.dir, 0o750); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // validated path
	if err != nil {
		return
	}
	defer f.Close()

	fmt.Fprintf(f, "%s %s\n", l.now().UTC().Format(time.RFC3339), line)
}
