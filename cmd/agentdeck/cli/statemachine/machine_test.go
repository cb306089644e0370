package statemachine

import (
	"strings"
	"testing"
)

// stay marks table cells where the state must not change.
const stay = State("·")

// expected encodes the full transition table. Rows are keyed by
// (state, worktree); columns follow the order of allEvents:
// WORKING, STOP, ENDED, PERMISSION_REQUEST, TASK_STARTED, TASKS_DONE, WORKTREE_DELETED.
var expected = map[State]map[bool][7]State{
	StateWorking: {
		false: {stay, StateWaiting, StateIdle, StateNeedsApproval, StateTasking, stay, stay},
		true:  {stay, StateReview, StateReview, StateNeedsApproval, StateTasking, stay, stay},
	},
	StateTasking: {
		false: {stay, StateWaiting, StateIdle, StateNeedsApproval, stay, StateWorking, stay},
		true:  {stay, StateReview, StateReview, StateNeedsApproval, stay, StateWorking, stay},
	},
	StateNeedsApproval: {
		false: {StateWorking, StateWaiting, StateIdle, stay, stay, stay, stay},
		true:  {StateWorking, StateReview, StateReview, stay, stay, stay, stay},
	},
	StateWaiting: {
		false: {StateWorking, stay, StateIdle, StateNeedsApproval, stay, stay, stay},
		true:  {StateWorking, stay, StateReview, StateNeedsApproval, stay, stay, stay},
	},
	StateReview: {
		false: {StateWorking, stay, stay, stay, stay, stay, StateIdle},
		true:  {StateWorking, stay, stay, stay, stay, stay, StateIdle},
	},
	StateIdle: {
		false: {StateWorking, stay, stay, stay, stay, stay, stay},
		true:  {StateWorking, stay, stay, stay, stay, stay, stay},
	},
}

func TestTransitionTable(t *testing.T) {
	for state, byWorktree := range expected {
		for _, worktree := range []bool{false, true} {
			row := byWorktree[worktree]
			for i, event := range Events() {
				want := row[i]
				if want == stay {
					want = state
				}
				got := Transition(state, event, worktree)
				if got != want {
					t.Errorf("Transition(%s, %s, worktree=%v) = %s, want %s",
						state, event, worktree, got, want)
				}
			}
		}
	}
}

func TestTransitionUnknownStatePassesThrough(t *testing.T) {
	bogus := State("banana")
	for _, event := range Events() {
		if got := Transition(bogus, event, false); got != bogus {
			t.Errorf("Transition(%s, %s) = %s, want pass-through", bogus, event, got)
		}
	}
}

func TestPublished(t *testing.T) {
	tests := []struct {
		state State
		want  Status
	}{
		{StateWorking, StatusWorking},
		{StateTasking, StatusTasking},
		{StateNeedsApproval, StatusWaiting},
		{StateWaiting, StatusWaiting},
		{StateReview, StatusReview},
		{StateIdle, StatusIdle},
	}
	for _, tt := range tests {
		if got := tt.state.Published(); got != tt.want {
			t.Errorf("%s.Published() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestBusy(t *testing.T) {
	busy := map[State]bool{
		StateWorking:       true,
		StateTasking:       true,
		StateNeedsApproval: true,
		StateWaiting:       false,
		StateReview:        false,
		StateIdle:          false,
	}
	for state, want := range busy {
		if got := state.Busy(); got != want {
			t.Errorf("%s.Busy() = %v, want %v", state, got, want)
		}
	}
}

func TestMermaidDiagramCoversAllStates(t *testing.T) {
	diagram := MermaidDiagram()
	if !strings.HasPrefix(diagram, "stateDiagram-v2") {
		t.Fatalf("diagram missing header: %q", diagram[:min(len(diagram), 40)])
	}
	for _, s := range States() {
		if !strings.Contains(diagram, string(s)) {
			t.Errorf("diagram does not mention state %s", s)
		}
	}
	// Worktree-dependent edges must be labeled.
	if !strings.Contains(diagram, "[worktree]") {
		t.Error("diagram missing worktree-variant edges")
	}
}
