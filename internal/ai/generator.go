// Package ai adapts the upstream generative model behind a small
// Generator interface so the prediction client can be tested against
// fakes and the retry wrapper can classify failures without touching
// provider types.
package ai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"virtus/internal/config"
)

// GenOptions tune a single generation call.
type GenOptions struct {
	Temperature float32
	MaxTokens   int
	// WebSearch asks the provider to ground the answer with live search
	// results. Scans depend on this for fixture lists and start times.
	WebSearch bool
	// JSONOnly constrains the response format to a JSON document.
	JSONOnly bool
}

// Generator produces raw model text for a system+user prompt pair.
// Rate-limit failures are returned as *retry.RateLimitedError.
type Generator interface {
	Generate(ctx context.Context, system, user string, opts GenOptions) (string, error)
}

type OpenAIGenerator struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func NewOpenAIGenerator(cfg config.AIConfig, logger *zap.Logger) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ai.api_key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, system, user string, opts GenOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.WebSearch {
		req.Tools = []openai.Tool{{Type: openai.ToolType("web_search")}}
	}
	if opts.JSONOnly {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if g.logger != nil {
			g.logger.Warn("model call failed", zap.String("model", g.model), zap.Error(err))
		}
		return "", classifyProviderError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
