package ai

import (
	"fmt"
	"strings"
)

type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

var Providers = []Provider{ProviderOpenAI, ProviderGemini}

// ParseProvider normalizes a provider id. An empty value selects Gemini.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ProviderGemini, nil
	case ProviderOpenAI, ProviderGemini:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported ai provider: %s", s)
	}
}

func (p Provider) DisplayName() string {
	switch p {
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderGemini:
		return "Gemini"
	default:
		return string(p)
	}
}

// DefaultModels returns the built-in model list of p. The first entry is the
// default selection.
func DefaultModels(p Provider) []Model {
	var models []Model
	switch p {
	case ProviderOpenAI:
		models = []Model{
			{ID: "gpt-4o-mini", Name: "GPT-4o Mini (Fast & Cheap)"},
			{ID: "gpt-4o", Name: "GPT-4o (Most Capable)"},
			{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo (Legacy)"},
		}
	case ProviderGemini:
		models = []Model{
			{ID: "gemini-2.0-flash-exp", Name: "Gemini 2.0 Flash (Latest)"},
			{ID: "gemini-1.5-flash-latest", Name: "Gemini 1.5 Flash"},
			{ID: "gemini-1.5-pro-latest", Name: "Gemini 1.5 Pro"},
		}
	}
	return models
}

// DefaultModel returns the id of the first built-in model of p.
func DefaultModel(p Provider) string {
	models := DefaultModels(p)
	if len(models) == 0 {
		return ""
	}
	return models[0].ID
}
