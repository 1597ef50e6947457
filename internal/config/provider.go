package config

import "strings"

// ProviderType defines the type of translation vendor.
type ProviderType string

const (
	// ProviderTypeGemini uses Google's Gemini API with dynamic model discovery.
	ProviderTypeGemini ProviderType = "gemini"

	// ProviderTypeOpenAI uses OpenAI or OpenAI-compatible chat completion APIs.
	ProviderTypeOpenAI ProviderType = "openai"
)

// Provider represents a configured translation vendor.
type Provider struct {
	// Type specifies the vendor type (gemini, openai).
	Type ProviderType `yaml:"type" json:"type"`

	// Name is a display name for this provider instance.
	// Falls back to the type when unset.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Enabled allows disabling a provider without removing it. Default: true.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// APIKey is the primary credential for this provider.
	// For providers with multiple credentials, use APIKeys instead.
	APIKey string `yaml:"api-key,omitempty" json:"api-key,omitempty"`

	// APIKeys holds multiple credentials tried in list order.
	// The first key that authorizes a call wins.
	APIKeys []string `yaml:"api-keys,omitempty" json:"api-keys,omitempty"`

	// BaseURL overrides the vendor's default API endpoint.
	// Useful for OpenAI-compatible backends and regional Gemini endpoints.
	BaseURL string `yaml:"base-url,omitempty" json:"base-url,omitempty"`

	// Headers adds custom HTTP headers to vendor requests.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// FallbackModels lists model IDs served when live catalogue discovery
	// fails, so the UI still renders a usable picker.
	FallbackModels []string `yaml:"fallback-models,omitempty" json:"fallback-models,omitempty"`

	// RequestsPerMinute caps outbound calls to this vendor. 0 disables the cap.
	RequestsPerMinute int `yaml:"requests-per-minute,omitempty" json:"requests-per-minute,omitempty"`
}

// IsEnabled returns true if the provider is enabled (default: true).
func (p *Provider) IsEnabled() bool {
	if p.Enabled == nil {
		return true
	}
	return *p.Enabled
}

// GetAPIKeys returns the ordered credential list for this provider.
// If APIKey is set and APIKeys is empty, returns APIKey as a single entry.
func (p *Provider) GetAPIKeys() []string {
	if len(p.APIKeys) > 0 {
		return p.APIKeys
	}
	if p.APIKey != "" {
		return []string{p.APIKey}
	}
	return nil
}

// GetDisplayName returns the display name for this provider.
// Falls back to type if name is not set.
func (p *Provider) GetDisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return string(p.Type)
}

// Validate checks if the provider configuration is valid.
func (p *Provider) Validate() error {
	if p.Type == "" {
		return &ProviderValidationError{Field: "type", Message: "type is required"}
	}
	switch p.Type {
	case ProviderTypeGemini, ProviderTypeOpenAI:
	default:
		return &ProviderValidationError{Field: "type", Message: "unknown provider type " + string(p.Type)}
	}
	if p.APIKey == "" && len(p.APIKeys) == 0 {
		return &ProviderValidationError{Field: "api-key", Message: "api-key or api-keys is required"}
	}
	return nil
}

// ProviderValidationError represents a validation error for provider config.
type ProviderValidationError struct {
	Field   string
	Message string
}

func (e *ProviderValidationError) Error() string {
	return "provider config error: " + e.Field + ": " + e.Message
}

// NormalizeHeaders trims header names and values and drops empty entries.
func NormalizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	result := make(map[string]string, len(headers))
	for k, v := range headers {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k != "" && v != "" {
			result[k] = v
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// SanitizeProviders normalizes and validates the providers list.
// Disabled or invalid entries are dropped; duplicates collapse to the first.
func SanitizeProviders(providers []Provider) []Provider {
	if len(providers) == 0 {
		return nil
	}

	result := make([]Provider, 0, len(providers))
	seen := make(map[string]struct{})

	for i := range providers {
		p := &providers[i]

		if !p.IsEnabled() {
			continue
		}

		p.Type = ProviderType(strings.TrimSpace(strings.ToLower(string(p.Type))))
		p.Name = strings.TrimSpace(p.Name)
		p.APIKey = strings.TrimSpace(p.APIKey)
		p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
		p.Headers = NormalizeHeaders(p.Headers)

		validKeys := make([]string, 0, len(p.APIKeys))
		for _, k := range p.APIKeys {
			if k = strings.TrimSpace(k); k != "" {
				validKeys = append(validKeys, k)
			}
		}
		p.APIKeys = validKeys

		validModels := make([]string, 0, len(p.FallbackModels))
		for _, m := range p.FallbackModels {
			if m = strings.TrimSpace(m); m != "" {
				validModels = append(validModels, m)
			}
		}
		p.FallbackModels = validModels

		if err := p.Validate(); err != nil {
			continue
		}

		uniqueKey := string(p.Type) + "|" + p.Name + "|" + p.BaseURL
		if _, exists := seen[uniqueKey]; exists {
			continue
		}
		seen[uniqueKey] = struct{}{}

		result = append(result, *p)
	}

	return result
}

// GetProviderByName returns a provider by its display name.
func (cfg *Config) GetProviderByName(name string) *Provider {
	if cfg == nil {
		return nil
	}
	for i := range cfg.Providers {
		if cfg.Providers[i].GetDisplayName() == name {
			return &cfg.Providers[i]
		}
	}
	return nil
}
