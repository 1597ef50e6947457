package provider

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/translatd/translatd/internal/config"
	"github.com/translatd/translatd/internal/resilience"
)

// OpenAIClient talks to OpenAI or any compatible endpoint (Ollama, vLLM)
// through the official SDK with a single API key.
type OpenAIClient struct {
	client openai.Client
}

func NewOpenAIClient(cfg config.Provider, apiKey string) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(resilience.NewHTTPClient(0)),
		// The relay reports failures immediately instead of retrying.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	return &OpenAIClient{client: openai.NewClient(opts...)}
}

func (c *OpenAIClient) ListModels(ctx context.Context) ([]Model, error) {
	return resilience.WithTimeout(ctx, resilience.DefaultCallTimeout, func(ctx context.Context) ([]Model, error) {
		page, err := c.client.Models.List(ctx)
		if err != nil {
			return nil, err
		}
		models := make([]Model, 0, len(page.Data))
		for _, m := range page.Data {
			models = append(models, Model{ID: m.ID, DisplayName: m.ID})
		}
		return models, nil
	})
}

func (c *OpenAIClient) Translate(ctx context.Context, req TranslateRequest) (TranslateResult, error) {
	return resilience.WithTimeout(ctx, resilience.DefaultCallTimeout, func(ctx context.Context) (TranslateResult, error) {
		completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: shared.ChatModel(req.Model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemInstruction(req.TargetLanguage)),
				openai.UserMessage(userPrompt(req.TargetLanguage, req.Text)),
			},
		})
		if err != nil {
			return TranslateResult{}, err
		}
		if len(completion.Choices) == 0 {
			return TranslateResult{}, NewError(CodeUnknown, "the provider returned no completion choices", statusFor(CodeUnknown))
		}

		out := TranslateResult{
			Text:         strings.TrimSpace(completion.Choices[0].Message.Content),
			Model:        completion.Model,
			InputTokens:  int32(completion.Usage.PromptTokens),
			OutputTokens: int32(completion.Usage.CompletionTokens),
		}
		if out.Model == "" {
			out.Model = req.Model
		}
		return out, nil
	})
}
