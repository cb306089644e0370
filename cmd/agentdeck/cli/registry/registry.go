// Package registry owns all per-session state and is the only component
// that applies machine transitions. Hook dispatch, transcript content
// updates, debounce callbacks, and the stale sweep all converge here,
// serialized per session by that session's mutex.
package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/auditlog"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/gitinfo"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/statemachine"
)

// Prober resolves a working directory to repository info. Satisfied by
// *gitinfo.Prober.
type Prober interface {
	Probe(cwd string) gitinfo.Info
}

// Notifier receives registry change events. Satisfied by the publisher.
// Calls are made outside any session mutex.
type Notifier interface {
	SessionChanged(sessionID string)
	SessionRemoved(sessionID string)
}

// Config carries the registry tunables.
type Config struct {
	PermissionDelay time.Duration
	StaleThreshold  time.Duration
}

// Registry is the process-wide session map.
type Registry struct {
	cfg    Config
	audit  *auditlog.Log
	prober Prober

	mu       sync.RWMutex // guards sessions map membership
	sessions map[string]*session

	notifierMu sync.RWMutex
	notifier   Notifier

	ready atomic.Bool
	now   func() time.Time

	// Counters for the health endpoint and telemetry.
	hooksProcessed   atomic.Int64
	sessionsObserved atomic.Int64
}

// New creates an empty registry. Call SetNotifier before traffic arrives,
// then MarkReady once the initial transcript scan has run.
func New(cfg Config, audit *auditlog.Log, prober Prober) *Registry {
	if cfg.PermissionDelay <= 0 {
		cfg.PermissionDelay = 3 * time.Second
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = 60 * time.Second
	}
	return &Registry{
		cfg:      cfg,
		audit:    audit,
		prober:   prober,
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// SetNotifier wires the publisher. May be called once at startup.
func (r *Registry) SetNotifier(n Notifier) {
	r.notifierMu.Lock()
	r.notifier = n
	r.notifierMu.Unlock()
}

// MarkReady flips the readiness gate for the hook endpoint.
func (r *Registry) MarkReady() { r.ready.Store(true) }

// Ready reports whether the registry accepts hooks.
func (r *Registry) Ready() bool { return r.ready.Load() }

// HooksProcessed returns the number of accepted hook payloads.
func (r *Registry) HooksProcessed() int64 { return r.hooksProcessed.Load() }

// SessionsObserved returns the number of sessions ever created.
func (r *Registry) SessionsObserved() int64 { return r.sessionsObserved.Load() }

// Len returns the current number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Known reports whether sessionID is in the registry.
func (r *Registry) Known(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[sessionID]
	return ok
}

// get returns the live session or nil.
func (r *Registry) get(sessionID string) *session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[sessionID]
}

// getOrCreate returns the session, creating it in the given initial state
// when absent. created reports whether this call created it.
func (r *Registry) getOrCreate(sessionID string, initial statemachine.State) (s *session, created bool) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		s = newSession(sessionID, r.now())
		s.state = initial
		r.sessions[sessionID] = s
		r.sessionsObserved.Add(1)
		created = true
	}
	r.mu.Unlock()

	if created {
		r.audit.RecordInit(sessionID, string(initial))
	}
	return s, created
}

// Remove deletes a session (its log file was unlinked). The publisher gets
// exactly one SessionRemoved.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	s.cancelPermissionDebounceLocked()
	s.mu.Unlock()

	r.notifyRemoved(sessionID)
}

// View returns an immutable copy of one session.
func (r *Registry) View(sessionID string) (View, bool) {
	s := r.get(sessionID)
	if s == nil {
		return View{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked(), true
}

// Views returns copies of every live session.
func (r *Registry) Views() []View {
	r.mu.RLock()
	ids := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		ids = append(ids, s)
	}
	r.mu.RUnlock()

	views := make([]View, 0, len(ids))
	for _, s := range ids {
		s.mu.Lock()
		views = append(views, s.viewLocked())
		s.mu.Unlock()
	}
	return views
}

// notifyChanged delivers a change event outside all locks.
func (r *Registry) notifyChanged(sessionID string) {
	r.notifierMu.RLock()
	n := r.notifier
	r.notifierMu.RUnlock()
	if n != nil {
		n.SessionChanged(sessionID)
	}
}

func (r *Registry) notifyRemoved(sessionID string) {
	r.notifierMu.RLock()
	n := r.notifier
	r.notifierMu.RUnlock()
	if n != nil {
		n.SessionRemoved(sessionID)
	}
}
