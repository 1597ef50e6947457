package provider

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"google.golang.org/genai"

	"github.com/translatd/translatd/internal/config"
	"github.com/translatd/translatd/internal/resilience"
)

// GeminiClient talks to the Gemini API through the official SDK with a
// single API key.
type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, cfg config.Provider, apiKey string) (*GeminiClient, error) {
	httpOpts := genai.HTTPOptions{}
	if cfg.BaseURL != "" {
		httpOpts.BaseURL = cfg.BaseURL
	}
	if len(cfg.Headers) > 0 {
		httpOpts.Headers = http.Header{}
		for k, v := range cfg.Headers {
			httpOpts.Headers.Set(k, v)
		}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  resilience.NewHTTPClient(0),
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiClient{client: client}, nil
}

// ListModels returns the generateContent-capable models in catalogue order.
func (c *GeminiClient) ListModels(ctx context.Context) ([]Model, error) {
	return resilience.WithTimeout(ctx, resilience.DefaultCallTimeout, func(ctx context.Context) ([]Model, error) {
		var models []Model
		for m, err := range c.client.Models.All(ctx) {
			if err != nil {
				return nil, err
			}
			if !slices.Contains(m.SupportedActions, "generateContent") {
				continue
			}
			models = append(models, Model{
				ID:               strings.TrimPrefix(m.Name, "models/"),
				DisplayName:      m.DisplayName,
				Description:      m.Description,
				InputTokenLimit:  m.InputTokenLimit,
				OutputTokenLimit: m.OutputTokenLimit,
			})
		}
		return models, nil
	})
}

func (c *GeminiClient) Translate(ctx context.Context, req TranslateRequest) (TranslateResult, error) {
	return resilience.WithTimeout(ctx, resilience.DefaultCallTimeout, func(ctx context.Context) (TranslateResult, error) {
		genCfg := &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction(req.TargetLanguage), genai.RoleUser),
		}
		resp, err := c.client.Models.GenerateContent(ctx, req.Model, genai.Text(userPrompt(req.TargetLanguage, req.Text)), genCfg)
		if err != nil {
			return TranslateResult{}, err
		}

		out := TranslateResult{
			Text:  strings.TrimSpace(resp.Text()),
			Model: req.Model,
		}
		if usage := resp.UsageMetadata; usage != nil {
			out.InputTokens = usage.PromptTokenCount
			out.OutputTokens = usage.CandidatesTokenCount
		}
		return out, nil
	})
}
