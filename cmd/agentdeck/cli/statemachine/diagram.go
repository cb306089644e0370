package statemachine

import (
	"fmt"
	"strings"
)

// MermaidDiagram generates a Mermaid state diagram from the transition
// function. Edges are derived by calling Transition for both worktree
// variants, so the diagram cannot drift from the implementation.
func MermaidDiagram() string {
	var b strings.Builder
	b.WriteString("stateDiagram-v2\n")

	for _, s := range allStates {
		fmt.Fprintf(&b, "    state \"%s\" as %s\n", strings.ToUpper(string(s)), s)
	}
	b.WriteString("\n")

	for _, from := range allStates {
		for _, ev := range allEvents {
			plain := Transition(from, ev, false)
			wt := Transition(from, ev, true)

			if plain == wt {
				if plain != from {
					fmt.Fprintf(&b, "    %s --> %s : %s\n", from, plain, ev)
				}
				continue
			}
			if plain != from {
				fmt.Fprintf(&b, "    %s --> %s : %s [plain]\n", from, plain, ev)
			}
			if wt != from {
				fmt.Fprintf(&b, "    %s --> %s : %s [worktree]\n", from, wt, ev)
			}
		}
	}

	return b.String()
}
