package statemachine

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genState() gopter.Gen {
	states := States()
	items := make([]interface{}, len(states))
	for i, s := range states {
		items[i] = s
	}
	return gen.OneConstOf(items...)
}

func genEvent() gopter.Gen {
	events := Events()
	items := make([]interface{}, len(events))
	for i, e := range events {
		items[i] = e
	}
	return gen.OneConstOf(items...)
}

func TestTransitionProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 500
	properties := gopter.NewProperties(params)

	properties.Property("deterministic", prop.ForAll(
		func(s State, e Event, w bool) bool {
			return Transition(s, e, w) == Transition(s, e, w)
		},
		genState(), genEvent(), gen.Bool(),
	))

	properties.Property("total over valid states", prop.ForAll(
		func(s State, e Event, w bool) bool {
			return Transition(s, e, w).Valid()
		},
		genState(), genEvent(), gen.Bool(),
	))

	properties.Property("needsApproval only entered via PERMISSION_REQUEST", prop.ForAll(
		func(s State, e Event, w bool) bool {
			next := Transition(s, e, w)
			if next == StateNeedsApproval && s != StateNeedsApproval {
				return e == EventPermissionRequest
			}
			return true
		},
		genState(), genEvent(), gen.Bool(),
	))

	properties.Property("worktree sessions never idle via STOP or ENDED", prop.ForAll(
		func(s State, e Event) bool {
			if e != EventStop && e != EventEnded {
				return true
			}
			return Transition(s, e, true) != StateIdle
		},
		genState(), genEvent(),
	))

	properties.Property("WORKING always lands on working or stays", prop.ForAll(
		func(s State, w bool) bool {
			next := Transition(s, EventWorking, w)
			return next == StateWorking || next == s
		},
		genState(), gen.Bool(),
	))

	properties.TestingRun(t)
}
