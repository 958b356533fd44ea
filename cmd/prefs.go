package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/stack-advisor/internal/ai"
	"github.com/spigell/stack-advisor/internal/prefs"
)

const (
	prefsBackendFile   = "file"
	prefsBackendRedis  = "redis"
	prefsBackendMemory = "memory"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Manage stored API keys and selected models",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show stored preferences for every provider",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		withPrefs(func(ctx context.Context, logger *zap.Logger, p *prefs.Preferences, _ ai.Provider) error {
			for _, provider := range ai.Providers {
				key, err := p.APIKey(ctx, provider)
				if err != nil {
					return err
				}
				model, err := p.SelectedModel(ctx, provider)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n  api key: %s\n  model:   %s\n", provider.DisplayName(), maskKey(key), model)
			}
			return nil
		})
	},
}

var prefsSetKeyCmd = &cobra.Command{
	Use:   "set-key [key]",
	Short: "Store the API key of the selected provider. Prompts when the key is not given",
	Args:  cobra.MaximumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		withPrefs(func(ctx context.Context, logger *zap.Logger, p *prefs.Preferences, provider ai.Provider) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				prompt := promptui.Prompt{
					Label:    fmt.Sprintf("%s API key", provider.DisplayName()),
					Mask:     '*',
					Validate: notBlank,
				}
				var err error
				if key, err = prompt.Run(); err != nil {
					return err
				}
			}

			if err := p.SetAPIKey(ctx, provider, key); err != nil {
				return err
			}
			logger.Info("api key saved", zap.String("provider", string(provider)))
			return nil
		})
	},
}

var prefsClearKeyCmd = &cobra.Command{
	Use:   "clear-key",
	Short: "Remove the stored API key of the selected provider",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		withPrefs(func(ctx context.Context, logger *zap.Logger, p *prefs.Preferences, provider ai.Provider) error {
			if err := p.ClearAPIKey(ctx, provider); err != nil {
				return err
			}
			logger.Info("api key removed", zap.String("provider", string(provider)))
			return nil
		})
	},
}

var prefsSetModelCmd = &cobra.Command{
	Use:   "set-model <model>",
	Short: "Remember the model of the selected provider",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		withPrefs(func(ctx context.Context, logger *zap.Logger, p *prefs.Preferences, provider ai.Provider) error {
			if err := p.SetSelectedModel(ctx, provider, args[0]); err != nil {
				return err
			}
			logger.Info("model selected", zap.String("provider", string(provider)), zap.String("model", args[0]))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(prefsCmd)
	prefsCmd.AddCommand(prefsShowCmd, prefsSetKeyCmd, prefsClearKeyCmd, prefsSetModelCmd)

	prefsCmd.PersistentFlags().String("backend", "", "preference store: file, redis or memory")
	prefsCmd.PersistentFlags().String("path", "", "preferences file (default is stack-advisor/prefs.yaml in the user config dir)")
	viper.BindPFlag("prefs.backend", prefsCmd.PersistentFlags().Lookup("backend"))
	viper.BindPFlag("prefs.path", prefsCmd.PersistentFlags().Lookup("path"))
}

func withPrefs(fn func(ctx context.Context, logger *zap.Logger, p *prefs.Preferences, provider ai.Provider) error) {
	ctx := context.Background()
	logger, config := setup()

	provider, err := ai.ParseProvider(config.AI.Provider)
	if err != nil {
		logger.Fatal("selecting provider", zap.Error(err))
	}

	store, closeStore, err := newPrefsStore(ctx, config.Prefs)
	if err != nil {
		logger.Fatal("opening preference store", zap.Error(err))
	}
	defer closeStore()

	if err := fn(ctx, logger, prefs.New(store), provider); err != nil {
		logger.Fatal("updating preferences", zap.Error(err))
	}
}

// newPrefsStore opens the configured preference store. The returned func
// releases its resources.
func newPrefsStore(ctx context.Context, cfg *PrefsConfig) (prefs.Store, func(), error) {
	noop := func() {}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", prefsBackendFile:
		path := cfg.Path
		if path == "" {
			var err error
			if path, err = prefs.DefaultPath(); err != nil {
				return nil, noop, err
			}
		}
		return prefs.NewFileStore(path), noop, nil
	case prefsBackendRedis:
		client, err := prefs.Connect(cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("ping redis: %w", err)
		}
		store := prefs.NewRedisStore(client, "")
		return store, func() { _ = store.Close() }, nil
	case prefsBackendMemory:
		return prefs.NewMemoryStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown preference backend %q", cfg.Backend)
	}
}

func maskKey(key string) string {
	if key == "" {
		return "not set"
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

func notBlank(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("must not be empty")
	}
	return nil
}
