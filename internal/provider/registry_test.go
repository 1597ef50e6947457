package provider

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"github.com/translatd/translatd/internal/config"
)

type scriptedClient struct {
	models  []Model
	listErr error
	result  TranslateResult
	err     error
	calls   int
}

func (c *scriptedClient) ListModels(context.Context) ([]Model, error) {
	c.calls++
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.models, nil
}

func (c *scriptedClient) Translate(context.Context, TranslateRequest) (TranslateResult, error) {
	c.calls++
	if c.err != nil {
		return TranslateResult{}, c.err
	}
	return c.result, nil
}

func scriptedFactory(clients map[string]*scriptedClient) Factory {
	return func(_ context.Context, _ config.Provider, apiKey string) (Client, error) {
		client, ok := clients[apiKey]
		if !ok {
			return nil, errors.New("no client scripted for key")
		}
		return client, nil
	}
}

func newTestRegistry(clients map[string]*scriptedClient, provider config.Provider) *Registry {
	return NewRegistry([]config.Provider{provider}, scriptedFactory(clients))
}

func TestTranslateFailsOverToNextCredential(t *testing.T) {
	clients := map[string]*scriptedClient{
		"k1": {err: genai.APIError{Code: 401}},
		"k2": {result: TranslateResult{Text: "hola", Model: "gemini-2.0-flash"}},
	}
	registry := newTestRegistry(clients, config.Provider{
		Type:    config.ProviderTypeGemini,
		APIKeys: []string{"k1", "k2"},
	})

	result, err := registry.Translate(context.Background(), "gemini", TranslateRequest{
		Model: "gemini-2.0-flash", Text: "hello", TargetLanguage: "Spanish",
	})
	if err != nil {
		t.Fatalf("expected failover to succeed, got %v", err)
	}
	if result.Text != "hola" {
		t.Errorf("expected translated text from second credential, got %q", result.Text)
	}
	if clients["k1"].calls != 1 || clients["k2"].calls != 1 {
		t.Errorf("expected one call per credential, got %d and %d", clients["k1"].calls, clients["k2"].calls)
	}
}

func TestTranslateAbortsOnNonAuthError(t *testing.T) {
	clients := map[string]*scriptedClient{
		"k1": {err: genai.APIError{Code: 429}},
		"k2": {result: TranslateResult{Text: "never reached"}},
	}
	registry := newTestRegistry(clients, config.Provider{
		Type:    config.ProviderTypeGemini,
		APIKeys: []string{"k1", "k2"},
	})

	_, err := registry.Translate(context.Background(), "gemini", TranslateRequest{Model: "m", Text: "t", TargetLanguage: "French"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if Classify(err).Code != CodeProviderRateLimited {
		t.Errorf("expected %s, got %s", CodeProviderRateLimited, Classify(err).Code)
	}
	if clients["k2"].calls != 0 {
		t.Error("a non-auth failure must not try the next credential")
	}
}

func TestTranslateAllCredentialsRejected(t *testing.T) {
	clients := map[string]*scriptedClient{
		"k1": {err: genai.APIError{Code: 401}},
		"k2": {err: genai.APIError{Code: 403}},
	}
	registry := newTestRegistry(clients, config.Provider{
		Type:    config.ProviderTypeGemini,
		APIKeys: []string{"k1", "k2"},
	})

	_, err := registry.Translate(context.Background(), "gemini", TranslateRequest{Model: "m", Text: "t", TargetLanguage: "German"})
	if err == nil {
		t.Fatal("expected an error")
	}
	relayErr := Classify(err)
	if relayErr.Code != CodeProviderAuth {
		t.Errorf("expected %s, got %s", CodeProviderAuth, relayErr.Code)
	}
	if relayErr.HTTPStatus != 502 {
		t.Errorf("expected 502, got %d", relayErr.HTTPStatus)
	}
	if clients["k1"].calls != 1 || clients["k2"].calls != 1 {
		t.Error("expected every credential to be tried once")
	}
}

func TestTranslateSkipsCredentialsWhoseClientCannotBuild(t *testing.T) {
	clients := map[string]*scriptedClient{
		// "broken" is deliberately missing so the factory fails for it.
		"k2": {result: TranslateResult{Text: "ciao"}},
	}
	registry := newTestRegistry(clients, config.Provider{
		Type:    config.ProviderTypeGemini,
		APIKeys: []string{"broken", "k2"},
	})

	result, err := registry.Translate(context.Background(), "gemini", TranslateRequest{Model: "m", Text: "t", TargetLanguage: "Italian"})
	if err != nil {
		t.Fatalf("expected the second credential to serve the call, got %v", err)
	}
	if result.Text != "ciao" {
		t.Errorf("unexpected result %q", result.Text)
	}
}

func TestTranslateUnknownProvider(t *testing.T) {
	registry := newTestRegistry(nil, config.Provider{Type: config.ProviderTypeGemini, APIKeys: []string{"k"}})

	_, err := registry.Translate(context.Background(), "nope", TranslateRequest{Model: "m", Text: "t", TargetLanguage: "Dutch"})
	if Classify(err).Code != CodeInvalidRequest {
		t.Errorf("expected %s, got %v", CodeInvalidRequest, err)
	}
}

func TestTranslateNoCredentials(t *testing.T) {
	registry := newTestRegistry(nil, config.Provider{Type: config.ProviderTypeGemini})

	_, err := registry.Translate(context.Background(), "gemini", TranslateRequest{Model: "m", Text: "t", TargetLanguage: "Polish"})
	if Classify(err).Code != CodeProviderAuth {
		t.Errorf("expected %s, got %v", CodeProviderAuth, err)
	}
}

func TestTranslateHonorsLocalPacing(t *testing.T) {
	clients := map[string]*scriptedClient{
		"k1": {result: TranslateResult{Text: "ok"}},
	}
	registry := newTestRegistry(clients, config.Provider{
		Type:              config.ProviderTypeGemini,
		APIKeys:           []string{"k1"},
		RequestsPerMinute: 1,
	})

	if _, err := registry.Translate(context.Background(), "gemini", TranslateRequest{Model: "m", Text: "t", TargetLanguage: "Czech"}); err != nil {
		t.Fatalf("first call should pass the limiter, got %v", err)
	}
	_, err := registry.Translate(context.Background(), "gemini", TranslateRequest{Model: "m", Text: "t", TargetLanguage: "Czech"})
	if Classify(err).Code != CodeProviderRateLimited {
		t.Errorf("expected %s, got %v", CodeProviderRateLimited, err)
	}
	if clients["k1"].calls != 1 {
		t.Errorf("the paced call must not reach the vendor, got %d calls", clients["k1"].calls)
	}
}

func TestListModelsReturnsCatalogueOrder(t *testing.T) {
	clients := map[string]*scriptedClient{
		"k1": {models: []Model{{ID: "m-b"}, {ID: "m-a"}, {ID: "m-c"}}},
	}
	registry := newTestRegistry(clients, config.Provider{Type: config.ProviderTypeGemini, APIKeys: []string{"k1"}})

	models, err := registry.ListModels(context.Background(), "gemini")
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	want := []string{"m-b", "m-a", "m-c"}
	for i, m := range models {
		if m.ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], m.ID)
		}
	}
}

func TestListModelsOpensBreakerAfterRepeatedFailures(t *testing.T) {
	failing := &scriptedClient{listErr: genai.APIError{Code: 500}}
	registry := newTestRegistry(map[string]*scriptedClient{"k1": failing},
		config.Provider{Type: config.ProviderTypeGemini, APIKeys: []string{"k1"}})

	for i := 0; i < 4; i++ {
		if _, err := registry.ListModels(context.Background(), "gemini"); err == nil {
			t.Fatalf("call %d: expected an error", i+1)
		}
	}
	if failing.calls != 4 {
		t.Fatalf("expected 4 upstream attempts before the breaker opens, got %d", failing.calls)
	}

	_, err := registry.ListModels(context.Background(), "gemini")
	if Classify(err).Code != CodeProviderUnavailable {
		t.Errorf("expected %s from the open breaker, got %v", CodeProviderUnavailable, err)
	}
	if failing.calls != 4 {
		t.Errorf("the open breaker must not reach the vendor, got %d calls", failing.calls)
	}
}

func TestVendorsReportConfigurationOrder(t *testing.T) {
	registry := NewRegistry([]config.Provider{
		{Type: config.ProviderTypeOpenAI, Name: "local-llm", APIKey: "a"},
		{Type: config.ProviderTypeGemini, APIKeys: []string{"b", "c"}, FallbackModels: []string{"gemini-2.0-flash"}},
	}, scriptedFactory(nil))

	infos := registry.Vendors()
	if len(infos) != 2 {
		t.Fatalf("expected 2 vendors, got %d", len(infos))
	}
	if infos[0].Name != "local-llm" || infos[1].Name != "gemini" {
		t.Errorf("unexpected order: %s, %s", infos[0].Name, infos[1].Name)
	}
	if infos[1].Credentials != 2 {
		t.Errorf("expected 2 credentials, got %d", infos[1].Credentials)
	}
	if len(infos[1].FallbackModels) != 1 {
		t.Errorf("expected fallback models to surface, got %v", infos[1].FallbackModels)
	}
}
