package registry

import (
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/statemachine"
)

// auditMeta carries optional key:value pairs for the audit line.
type auditMeta struct {
	source string
	signal string
	tool   string
}

// transitionSession is the single call-site of the transition function.
// It returns true when the machine state changed. The publisher is
// notified after the session mutex is released.
func (r *Registry) transitionSession(sessionID string, event statemachine.Event, meta auditMeta) bool {
	s := r.get(sessionID)
	if s == nil {
		return false
	}

	s.mu.Lock()
	changed := r.transitionLocked(s, event, meta, 0)
	s.mu.Unlock()

	if changed {
		r.notifyChanged(sessionID)
	}
	return changed
}

// transitionLocked applies one event while holding s.mu. depth guards the
// auto-escalation recursion (at most one level).
func (r *Registry) transitionLocked(s *session, event statemachine.Event, meta auditMeta, depth int) bool {
	prev := s.state
	next := statemachine.Transition(prev, event, s.git.IsWorktree)
	if next == prev {
		return false
	}

	// On-exit side effects. Leaving any busy state makes outstanding
	// permission debounces stale; leaving needsApproval drops the pending
	// permission itself.
	if prev.Busy() && !next.Busy() {
		s.cancelPermissionDebounceLocked()
	}
	if prev == statemachine.StateNeedsApproval && next != statemachine.StateNeedsApproval {
		s.pendingPermission = nil
	}

	s.state = next
	r.audit.RecordTransition(s.id, string(prev), string(next), event.String(), meta.source, [][2]string{
		{"signal", meta.signal},
		{"tool", meta.tool},
	})

	// Auto-escalation: landing on working while sub-agent tasks are still
	// running means the observable state is really tasking. This is a
	// reconciliation rule for hooks arriving out of order, not a special
	// transition.
	if next == statemachine.StateWorking && len(s.activeTasks) > 0 && depth < 1 {
		r.transitionLocked(s, statemachine.EventTaskStarted, auditMeta{
			source: "auto-escalation",
		}, depth+1)
	}

	return true
}
