package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go/v2"
	oaioption "github.com/openai/openai-go/v2/option"

	"taskforge/internal/model"
)

// AnthropicBackend synthesizes tool source text via the Anthropic Messages
// API, grounded on manifold's anthropic.go handler (same SDK, same
// NewUserMessage/NewTextBlock construction).
type AnthropicBackend struct {
	client anthropic.Client
	model  string
}

// NewAnthropicBackend builds a Backend backed by model (e.g.
// "claude-3-5-sonnet-latest"), authenticating with apiKey.
func NewAnthropicBackend(apiKey, model string) *AnthropicBackend {
	return &AnthropicBackend{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (b *AnthropicBackend) Synthesize(ctx context.Context, req Request) (string, error) {
	prompt := synthesisPrompt(req)
	msg, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: anthropic synthesis: %v", model.ErrSynthesis, err)
	}
	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("%w: anthropic response had no text content", model.ErrSynthesis)
}

// OpenAIBackend synthesizes tool source text via OpenAI's chat completions
// API, grounded on manifold's completions.go callOpenAI helper.
type OpenAIBackend struct {
	client openai.Client
	model  string
}

// NewOpenAIBackend builds a Backend backed by model (e.g. "gpt-4o-mini").
func NewOpenAIBackend(apiKey, baseURL, model string) *OpenAIBackend {
	opts := []oaioption.RequestOption{oaioption.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, oaioption.WithBaseURL(baseURL))
	}
	return &OpenAIBackend{client: openai.NewClient(opts...), model: model}
}

func (b *OpenAIBackend) Synthesize(ctx context.Context, req Request) (string, error) {
	prompt := synthesisPrompt(req)
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: b.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai synthesis: %v", model.ErrSynthesis, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai response had no choices", model.ErrSynthesis)
	}
	return resp.Choices[0].Message.Content, nil
}

func synthesisPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Write a single function named ")
	b.WriteString(req.Name)
	b.WriteString(" implementing the ")
	b.WriteString(string(ChooseFamily(req.Name)))
	b.WriteString(" behavior for parameters:\n")
	for name, schema := range req.Parameters {
		fmt.Fprintf(&b, "- %s: %s (required=%v)\n", name, schema.Type, schema.Required)
	}
	if len(req.Existing) > 0 {
		b.WriteString("Preserve these prior parameter names and positions:\n")
		for _, name := range req.ExistingOrder {
			b.WriteString("- " + name + "\n")
		}
	}
	return b.String()
}

// Select picks a Backend by model name prefix, mirroring manifold's pattern
// of routing between Anthropic and OpenAI endpoints by configured model
// string (completions.go / anthropic.go). Falls back to TemplateBackend
// when no API key is configured, keeping synthesis deterministic and
// dependency-free for tests and offline operation.
func Select(modelName, apiKey, apiBase string) Backend {
	if apiKey == "" {
		return TemplateBackend{}
	}
	lower := strings.ToLower(modelName)
	switch {
	case strings.HasPrefix(lower, "claude"):
		return NewAnthropicBackend(apiKey, modelName)
	case strings.HasPrefix(lower, "gpt") || strings.HasPrefix(lower, "o1") || strings.HasPrefix(lower, "o3"):
		return NewOpenAIBackend(apiKey, apiBase, modelName)
	default:
		return TemplateBackend{}
	}
}
