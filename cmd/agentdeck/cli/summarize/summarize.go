// Package summarize derives the short goal/summary text shown next to a
// session. Backends are interchangeable: the Anthropic API, the local
// claude CLI, or nothing at all.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentdeck/agentdeck/redact"
)

// Backend names accepted in settings.
const (
	BackendAnthropic = "anthropic"
	BackendClaudeCLI = "claude-cli"
	BackendOff       = "off"
)

// Generator produces goal/summary text for a session from its opening
// prompt and a few recent transcript snippets. Implementations must be
// safe for concurrent use; the publisher coalesces calls per session but
// sessions run in parallel.
type Generator interface {
	Summarize(ctx context.Context, sessionID, prompt string, recent []string) (goal, summary string, err error)
}

// New returns the generator for the configured backend. Unknown backends
// fall back to off rather than failing startup.
func New(backend string) Generator {
	switch backend {
	case BackendAnthropic:
		return newAnthropicGenerator()
	case BackendClaudeCLI:
		return newCLIGenerator()
	default:
		return noopGenerator{}
	}
}

type noopGenerator struct{}

func (noopGenerator) Summarize(context.Context, string, string, []string) (string, string, error) {
	return "", "", nil
}

// systemPrompt steers the model toward the two-line format parseResponse
// expects.
const systemPrompt = `You describe a coding session from its opening request.
Reply with exactly two lines:
GOAL: <the user's objective, at most 10 words>
SUMMARY: <one sentence of what the session is doing>`

// buildUserPrompt sanitizes the raw prompt and recent transcript snippets
// before they leave the machine.
func buildUserPrompt(prompt string, recent []string) string {
	clean := redact.Prompt(prompt)
	if len(clean) > 2000 {
		clean = clean[:2000]
	}
	var b strings.Builder
	b.WriteString("The session opened with this request:\n\n")
	b.WriteString(clean)
	if len(recent) > 0 {
		b.WriteString("\n\nRecent activity:\n")
		for _, line := range recent {
			b.WriteString("- ")
			b.WriteString(redact.Prompt(line))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// parseResponse extracts the GOAL/SUMMARY lines from model output,
// tolerating surrounding chatter.
func parseResponse(text string) (goal, summary string, err error) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "GOAL:"):
			goal = strings.TrimSpace(strings.TrimPrefix(line, "GOAL:"))
		case strings.HasPrefix(line, "SUMMARY:"):
			summary = strings.TrimSpace(strings.TrimPrefix(line, "SUMMARY:"))
		}
	}
	if goal == "" && summary == "" {
		return "", "", fmt.Errorf("no GOAL/SUMMARY lines in model output")
	}
	return goal, summary, nil
}
