package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/stack-advisor/internal/ai"
	"github.com/spigell/stack-advisor/internal/ai/gemini"
	"github.com/spigell/stack-advisor/internal/ai/openai"
	"github.com/spigell/stack-advisor/internal/prefs"
	"github.com/spigell/stack-advisor/internal/secrets"
)

type assistantClient interface {
	ai.Assistant
	ai.ModelLister
}

var apiKeyEnv = map[ai.Provider]string{
	ai.ProviderOpenAI: "OPENAI_API_KEY",
	ai.ProviderGemini: "GEMINI_API_KEY",
}

var errNoAPIKey = errors.New("api key is not configured")

func providerConfig(cfg *AIConfig, provider ai.Provider) *ProviderConfig {
	if provider == ai.ProviderOpenAI {
		return cfg.OpenAI
	}
	return cfg.Gemini
}

// resolveAPIKey looks up the key in the configured file, then the provider
// environment variable, then the preference store.
func resolveAPIKey(ctx context.Context, provider ai.Provider, cfg *ProviderConfig, p *prefs.Preferences) (string, error) {
	name := fmt.Sprintf("%s api key", provider)

	key, err := secrets.Load(secrets.Source{
		Name: name,
		File: cfg.APIKeyFile,
		Env:  apiKeyEnv[provider],
	})
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, secrets.ErrNotConfigured) {
		return "", err
	}

	key, err = p.APIKey(ctx, provider)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("%s: %w (set ai.%s.api-key-file, %s or run '%s prefs set-key -p %s')",
			name, errNoAPIKey, provider, apiKeyEnv[provider], app, provider)
	}
	return key, nil
}

// resolveModel prefers the explicit model, then the configured one, then the
// last selection stored in preferences.
func resolveModel(ctx context.Context, provider ai.Provider, explicit string, cfg *ProviderConfig, p *prefs.Preferences) (string, error) {
	if model := strings.TrimSpace(explicit); model != "" {
		return model, nil
	}
	if model := strings.TrimSpace(cfg.Model); model != "" {
		return model, nil
	}
	return p.SelectedModel(ctx, provider)
}

func newAssistant(ctx context.Context, provider ai.Provider, apiKey, model string, cfg *ProviderConfig, logger *zap.Logger) (assistantClient, error) {
	switch provider {
	case ai.ProviderOpenAI:
		return openai.New(openai.Config{
			APIKey:       apiKey,
			Model:        model,
			BaseURL:      cfg.BaseURL,
			Timeout:      cfg.Timeout,
			MaxLogLength: cfg.MaxLogLength,
		}, logger)
	case ai.ProviderGemini:
		return gemini.NewGenerator(ctx, gemini.Config{
			APIKey:       apiKey,
			Model:        model,
			MaxRetries:   cfg.MaxRetries,
			MaxLogLength: cfg.MaxLogLength,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", provider)
	}
}
