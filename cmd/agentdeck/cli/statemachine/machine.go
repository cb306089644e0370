// Package statemachine holds the pure session status machine.
//
// Transition is the only place that decides what the next machine state is.
// It performs no I/O and reads no clocks; callers own every side effect
// (timers, ledgers, audit lines, publication).
package statemachine

import "fmt"

// State represents the internal machine state of a session.
type State string

const (
	StateWorking       State = "working"
	StateTasking       State = "tasking"
	StateNeedsApproval State = "needsApproval"
	StateWaiting       State = "waiting"
	StateReview        State = "review"
	StateIdle          State = "idle"
)

// allStates is the canonical list of states for enumeration (tests, diagram).
var allStates = []State{
	StateWorking, StateTasking, StateNeedsApproval,
	StateWaiting, StateReview, StateIdle,
}

// States returns a copy of the canonical state list.
func States() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// Valid reports whether s is one of the known machine states.
func (s State) Valid() bool {
	switch s {
	case StateWorking, StateTasking, StateNeedsApproval, StateWaiting, StateReview, StateIdle:
		return true
	default:
		return false
	}
}

// Busy reports whether the state represents the agent actively doing work.
// Leaving a busy state invalidates any pending permission debounce.
func (s State) Busy() bool {
	return s == StateWorking || s == StateTasking || s == StateNeedsApproval
}

// Status is the externally published status. It collapses needsApproval
// into waiting; the pending-tool flag carries the distinction.
type Status string

const (
	StatusWorking Status = "working"
	StatusTasking Status = "tasking"
	StatusWaiting Status = "waiting"
	StatusReview  Status = "review"
	StatusIdle    Status = "idle"
)

// Published maps a machine state to its published status.
func (s State) Published() Status {
	switch s {
	case StateWorking:
		return StatusWorking
	case StateTasking:
		return StatusTasking
	case StateNeedsApproval, StateWaiting:
		return StatusWaiting
	case StateReview:
		return StatusReview
	case StateIdle:
		return StatusIdle
	default:
		return StatusIdle
	}
}

// Event represents something that happened to a session.
type Event int

const (
	EventWorking           Event = iota // Tool activity or prompt resumed the agent
	EventStop                           // Agent finished its turn
	EventEnded                          // Session process ended
	EventPermissionRequest              // Permission debounce fired
	EventTaskStarted                    // A sub-agent task began
	EventTasksDone                      // The last sub-agent task finished
	EventWorktreeDeleted                // The session's worktree directory vanished
)

// allEvents is the canonical list of events for enumeration.
var allEvents = []Event{
	EventWorking, EventStop, EventEnded, EventPermissionRequest,
	EventTaskStarted, EventTasksDone, EventWorktreeDeleted,
}

// Events returns a copy of the canonical event list.
func Events() []Event {
	out := make([]Event, len(allEvents))
	copy(out, allEvents)
	return out
}

// String returns the wire name of the event, as written to audit logs.
func (e Event) String() string {
	switch e {
	case EventWorking:
		return "WORKING"
	case EventStop:
		return "STOP"
	case EventEnded:
		return "ENDED"
	case EventPermissionRequest:
		return "PERMISSION_REQUEST"
	case EventTaskStarted:
		return "TASK_STARTED"
	case EventTasksDone:
		return "TASKS_DONE"
	case EventWorktreeDeleted:
		return "WORKTREE_DELETED"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Transition computes the next machine state for an event.
//
// Worktree sessions never reach idle via STOP or ENDED: their work stays in
// review until the worktree directory itself goes away. needsApproval
// absorbs repeated PERMISSION_REQUEST. Unknown states pass through
// unchanged so a corrupted session cannot wedge the caller.
func Transition(current State, event Event, isWorktree bool) State {
	switch current {
	case StateWorking:
		switch event {
		case EventStop:
			return stopTarget(isWorktree)
		case EventEnded:
			return endTarget(isWorktree)
		case EventPermissionRequest:
			return StateNeedsApproval
		case EventTaskStarted:
			return StateTasking
		}
	case StateTasking:
		switch event {
		case EventStop:
			return stopTarget(isWorktree)
		case EventEnded:
			return endTarget(isWorktree)
		case EventPermissionRequest:
			return StateNeedsApproval
		case EventTasksDone:
			return StateWorking
		}
	case StateNeedsApproval:
		switch event {
		case EventWorking:
			return StateWorking
		case EventStop:
			return stopTarget(isWorktree)
		case EventEnded:
			return endTarget(isWorktree)
		}
	case StateWaiting:
		switch event {
		case EventWorking:
			return StateWorking
		case EventEnded:
			return endTarget(isWorktree)
		case EventPermissionRequest:
			return StateNeedsApproval
		}
	case StateReview:
		switch event {
		case EventWorking:
			return StateWorking
		case EventWorktreeDeleted:
			return StateIdle
		}
	case StateIdle:
		if event == EventWorking {
			return StateWorking
		}
	}
	return current
}

// stopTarget is where a turn ends up after STOP.
func stopTarget(isWorktree bool) State {
	if isWorktree {
		return StateReview
	}
	return StateWaiting
}

// endTarget is where a session ends up after ENDED.
func endTarget(isWorktree bool) State {
	if isWorktree {
		return StateReview
	}
	return StateIdle
}
