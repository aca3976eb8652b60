// Package llm asks a language model for a short narrative over a quality
// digest.
package llm

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"inspectmetrics/internal/httpx"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

const narrativeSystemPrompt = `You summarize manufacturing inspection quality digests for process engineers.
Reply with at most two plain sentences and no markdown.
Call out the use case whose accuracy or automation rate is lowest, and any defect class the model misses most.
Only use numbers that appear in the digest.`

type Usage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
}

type Narrator struct {
	apiKey string
	model  string
	opts   []option.RequestOption
}

// NewNarrator builds an Anthropic-backed narrator. Extra options are applied
// after the API key and shared HTTP client.
func NewNarrator(apiKey, model string, opts ...option.RequestOption) *Narrator {
	if strings.TrimSpace(model) == "" {
		model = defaultAnthropicModel
	}
	return &Narrator{apiKey: apiKey, model: model, opts: opts}
}

// Narrate returns a two-sentence summary of digestMarkdown.
func (n *Narrator) Narrate(ctx context.Context, digestMarkdown string) (string, Usage, error) {
	text, usage, err := n.callAnthropic(ctx, narrativeSystemPrompt, buildNarrativePrompt(digestMarkdown))
	if err != nil {
		return "", usage, err
	}
	return strings.TrimSpace(text), usage, nil
}

func buildNarrativePrompt(digestMarkdown string) string {
	var b strings.Builder
	b.WriteString("Here is this period's inspection quality digest.\n\n")
	b.WriteString(strings.TrimSpace(digestMarkdown))
	b.WriteString("\n\nWrite the summary now.")
	return b.String()
}

func (n *Narrator) callAnthropic(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, error) {
	opts := append([]option.RequestOption{
		option.WithAPIKey(n.apiKey),
		option.WithHTTPClient(httpx.ExternalHTTPClient()),
	}, n.opts...)
	client := anthropic.NewClient(opts...)

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(n.model),
		MaxTokens: 512,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return "", Usage{}, fmt.Errorf("Anthropic API error: %w", err)
	}
	usage := Usage{
		InputTokens:              message.Usage.InputTokens,
		OutputTokens:             message.Usage.OutputTokens,
		CacheCreationInputTokens: message.Usage.CacheCreationInputTokens,
		CacheReadInputTokens:     message.Usage.CacheReadInputTokens,
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm anthropic response size=%d tokens_in=%d tokens_out=%d", len(block.Text), usage.InputTokens, usage.OutputTokens)
			return block.Text, usage, nil
		}
	}
	return "", usage, fmt.Errorf("no text content in Anthropic response")
}
