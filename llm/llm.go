// Package llm wraps an OpenAI-compatible chat completion endpoint behind
// a small provider interface used by query expansion and answer
// generation.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/autoversio/ragcore/config"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

type Options struct {
	// Temperature overrides the model default when non-nil.
	Temperature *float64
	MaxTokens   int
}

// Provider issues chat completions. Stream calls onDelta once per content
// fragment in arrival order; returning an error from onDelta aborts the
// stream.
type Provider interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
	Stream(ctx context.Context, messages []Message, opts Options, onDelta func(delta string) error) error
}

type OpenAI struct {
	client openai.Client
	model  string
}

func NewOpenAI(cfg config.LLMConfig) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...), model: cfg.Model}
}

func (p *OpenAI) params(messages []Message, opts Options) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	params := openai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: msgs,
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	return params
}

func (p *OpenAI) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.params(messages, opts))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAI) Stream(ctx context.Context, messages []Message, opts Options, onDelta func(string) error) error {
	stream := p.client.Chat.Completions.NewStreaming(ctx, p.params(messages, opts))
	defer stream.Close()
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := onDelta(delta); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("chat stream: %w", err)
	}
	return nil
}
