package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/logging"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/statemachine"
)

// ContentUpdate carries what the transcript tailer extracted from newly
// appended lines. Content updates touch metadata only; they never drive
// the machine.
type ContentUpdate struct {
	LastActivityAt time.Time
	MessageDelta   int
	Todo           *TodoProgress
	Recent         []string
	NewOffset      int64
}

// ApplyContent merges a tailer update into the session. The tail offset is
// monotonic: a re-read that lands behind the current offset is dropped so
// a slow read cannot roll counters back.
func (r *Registry) ApplyContent(sessionID string, u ContentUpdate) {
	s := r.get(sessionID)
	if s == nil {
		return
	}

	s.mu.Lock()
	if u.NewOffset <= s.logTailOffset {
		s.mu.Unlock()
		return
	}
	s.logTailOffset = u.NewOffset
	if u.MessageDelta > 0 {
		s.messageCount += u.MessageDelta
	}
	if !u.LastActivityAt.IsZero() && u.LastActivityAt.After(s.lastActivityAt) {
		s.lastActivityAt = u.LastActivityAt
	}
	if u.Todo != nil {
		todo := *u.Todo
		s.todoProgress = &todo
	}
	if len(u.Recent) > 0 {
		s.recentEntries = append(s.recentEntries, u.Recent...)
		if n := len(s.recentEntries); n > recentEntriesKeep {
			s.recentEntries = append([]string(nil), s.recentEntries[n-recentEntriesKeep:]...)
		}
	}
	s.mu.Unlock()

	r.notifyChanged(sessionID)
}

// BootstrapInfo describes a session recovered from an existing transcript
// at startup, before any hook has been seen for it.
type BootstrapInfo struct {
	LogFilePath    string
	Cwd            string
	OriginalPrompt string
	LastActivityAt time.Time
	MessageCount   int
	Todo           *TodoProgress
	Recent         []string
	Offset         int64
}

// Bootstrap registers a session found on disk during the initial scan.
// Recovered sessions start waiting: without live hooks there is no
// evidence the agent is doing anything. An already-known session ID is
// left alone except for content fields it is missing.
func (r *Registry) Bootstrap(ctx context.Context, sessionID string, info BootstrapInfo) {
	git := r.prober.Probe(info.Cwd)

	s, created := r.getOrCreate(sessionID, statemachine.StateWaiting)

	s.mu.Lock()
	if s.logFilePath == "" {
		s.logFilePath = info.LogFilePath
	}
	if s.cwd == "" && info.Cwd != "" {
		s.cwd = info.Cwd
		s.git = git
	}
	if s.originalPrompt == "" {
		s.originalPrompt = info.OriginalPrompt
	}
	if info.Offset > s.logTailOffset {
		s.logTailOffset = info.Offset
		s.messageCount = info.MessageCount
		if info.Todo != nil {
			todo := *info.Todo
			s.todoProgress = &todo
		}
		if len(info.Recent) > 0 {
			s.recentEntries = append([]string(nil), info.Recent...)
		}
	}
	if info.LastActivityAt.After(s.lastActivityAt) {
		s.lastActivityAt = info.LastActivityAt
	}
	s.mu.Unlock()

	if created {
		logging.Info(logging.WithSession(ctx, sessionID), "session recovered from transcript",
			slog.String("path", info.LogFilePath))
	}
	r.notifyChanged(sessionID)
}

// TailOffset returns the current transcript byte offset for a session.
func (r *Registry) TailOffset(sessionID string) int64 {
	s := r.get(sessionID)
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logTailOffset
}

// SessionForLogFile returns the ID of the session tailing the given
// transcript path, if any.
func (r *Registry) SessionForLogFile(path string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, s := range r.sessions {
		s.mu.Lock()
		match := s.logFilePath == path
		s.mu.Unlock()
		if match {
			return id, true
		}
	}
	return "", false
}
