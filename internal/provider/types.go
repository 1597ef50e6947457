// Package provider implements the vendor clients and the credential-failover
// registry that routes translation calls to them.
package provider

import (
	"context"
	"fmt"

	"github.com/translatd/translatd/internal/config"
)

// Model describes one translation-capable model advertised by a vendor.
type Model struct {
	ID               string `json:"id"`
	DisplayName      string `json:"display_name,omitempty"`
	Description      string `json:"description,omitempty"`
	InputTokenLimit  int32  `json:"input_token_limit,omitempty"`
	OutputTokenLimit int32  `json:"output_token_limit,omitempty"`
	// Preset marks models that completed a translation before.
	Preset bool `json:"preset"`
}

// TranslateRequest is a single translation call against one model.
type TranslateRequest struct {
	Model          string
	Text           string
	TargetLanguage string
}

// TranslateResult carries the translated text plus the usage the vendor
// reported for the call.
type TranslateResult struct {
	Text         string
	Model        string
	InputTokens  int32
	OutputTokens int32
}

// Client is one vendor endpoint reachable with a single credential.
type Client interface {
	ListModels(ctx context.Context) ([]Model, error)
	Translate(ctx context.Context, req TranslateRequest) (TranslateResult, error)
}

// Factory builds a Client for one credential of a configured vendor.
type Factory func(ctx context.Context, cfg config.Provider, apiKey string) (Client, error)

// NewClient dispatches on the configured vendor type.
func NewClient(ctx context.Context, cfg config.Provider, apiKey string) (Client, error) {
	switch cfg.Type {
	case config.ProviderTypeGemini:
		return NewGeminiClient(ctx, cfg, apiKey)
	case config.ProviderTypeOpenAI:
		return NewOpenAIClient(cfg, apiKey), nil
	default:
		return nil, NewError(CodeInvalidRequest, fmt.Sprintf("unsupported provider type %q", cfg.Type), statusFor(CodeInvalidRequest))
	}
}
