package summarize

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

const cliTimeout = 60 * time.Second

// cliGenerator shells out to the locally installed claude CLI, for users
// who have the agent but no standalone API key.
type cliGenerator struct {
	binary string
}

func newCLIGenerator() *cliGenerator {
	return &cliGenerator{binary: "claude"}
}

func (g *cliGenerator) Summarize(ctx context.Context, _ string, prompt string, recent []string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, cliTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.binary,
		"-p", systemPrompt+"\n\n"+buildUserPrompt(prompt, recent),
		"--model", "haiku",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", "", fmt.Errorf("claude CLI summarize: %w: %s", err, stderr.String())
	}
	return parseResponse(stdout.String())
}
