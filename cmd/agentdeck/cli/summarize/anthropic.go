package summarize

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

const (
	anthropicModel   = anthropic.ModelClaude3_5HaikuLatest
	anthropicTimeout = 30 * time.Second
	maxOutputTokens  = 200
)

// anthropicGenerator calls the Messages API directly. The SDK reads
// ANTHROPIC_API_KEY from the environment.
type anthropicGenerator struct {
	client anthropic.Client
}

func newAnthropicGenerator() *anthropicGenerator {
	return &anthropicGenerator{client: anthropic.NewClient()}
}

func (g *anthropicGenerator) Summarize(ctx context.Context, _ string, prompt string, recent []string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, anthropicTimeout)
	defer cancel()

	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropicModel,
		MaxTokens: maxOutputTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildUserPrompt(prompt, recent))),
		},
	})
	if err != nil {
		return "", "", fmt.Errorf("anthropic summarize: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += tb.Text
		}
	}
	return parseResponse(text)
}
