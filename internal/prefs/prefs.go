package prefs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/stack-advisor/internal/ai"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("preference not found")

// Store is a flat key/value store of user preferences.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context, key string) error
}

const (
	apiKeyPrefix = "techstack_api_key_"
	modelPrefix  = "techstack_model_"
)

func APIKeyKey(p ai.Provider) string { return apiKeyPrefix + string(p) }

func ModelKey(p ai.Provider) string { return modelPrefix + string(p) }

// Preferences exposes typed accessors on top of a Store.
type Preferences struct {
	store Store
}

func New(store Store) *Preferences {
	return &Preferences{store: store}
}

// APIKey returns the stored credential of p, or "" when none is stored.
func (p *Preferences) APIKey(ctx context.Context, provider ai.Provider) (string, error) {
	return p.get(ctx, APIKeyKey(provider))
}

func (p *Preferences) SetAPIKey(ctx context.Context, provider ai.Provider, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("api key must not be empty")
	}
	return p.store.Set(ctx, APIKeyKey(provider), key)
}

func (p *Preferences) ClearAPIKey(ctx context.Context, provider ai.Provider) error {
	return p.store.Clear(ctx, APIKeyKey(provider))
}

// SelectedModel returns the last selected model of provider, defaulting to the
// first built-in model.
func (p *Preferences) SelectedModel(ctx context.Context, provider ai.Provider) (string, error) {
	model, err := p.get(ctx, ModelKey(provider))
	if err != nil {
		return "", err
	}
	if model == "" {
		model = ai.DefaultModel(provider)
	}
	return model, nil
}

func (p *Preferences) SetSelectedModel(ctx context.Context, provider ai.Provider, model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return errors.New("model must not be empty")
	}
	return p.store.Set(ctx, ModelKey(provider), model)
}

func (p *Preferences) get(ctx context.Context, key string) (string, error) {
	value, err := p.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading preference %q: %w", key, err)
	}
	return value, nil
}
