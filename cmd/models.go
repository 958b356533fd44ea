package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/stack-advisor/internal/ai"
	"github.com/spigell/stack-advisor/internal/prefs"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models of the selected provider",
	Long: "List the models of the selected provider. Without an API key the built-in list is shown.\n" +
		"With --select the chosen model is remembered for the next chat.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		listModels(cmd)
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)

	modelsCmd.Flags().BoolP("select", "s", false, "choose a model interactively and store the choice")
}

func listModels(cmd *cobra.Command) {
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
	p := prefs.New(store)

	pcfg := providerConfig(config.AI, provider)

	selected, err := resolveModel(ctx, provider, "", pcfg, p)
	if err != nil {
		logger.Fatal("resolving model", zap.Error(err))
	}

	models := ai.DefaultModels(provider)

	key, err := resolveAPIKey(ctx, provider, pcfg, p)
	switch {
	case errors.Is(err, errNoAPIKey):
		logger.Info("no api key configured, showing built-in models", zap.String("provider", string(provider)))
	case err != nil:
		logger.Fatal("loading api key", zap.Error(err))
	default:
		client, err := newAssistant(ctx, provider, key, selected, pcfg, logger)
		if err != nil {
			logger.Fatal("creating ai client", zap.Error(err))
		}
		if models, err = client.ListModels(ctx); err != nil {
			logger.Fatal("listing models", zap.Error(err))
		}
	}

	if interactive, _ := cmd.Flags().GetBool("select"); interactive {
		chooseModel(ctx, logger, p, provider, models, selected)
		return
	}

	for _, m := range models {
		marker := " "
		if m.ID == selected {
			marker = "*"
		}
		if m.Name != m.ID {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", marker, m.ID, m.Name)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, m.ID)
	}
}

func chooseModel(ctx context.Context, logger *zap.Logger, p *prefs.Preferences, provider ai.Provider, models []ai.Model, selected string) {
	cursor := 0
	for i, m := range models {
		if m.ID == selected {
			cursor = i
		}
	}

	prompt := promptui.Select{
		Label:     fmt.Sprintf("%s model", provider.DisplayName()),
		Items:     models,
		CursorPos: cursor,
		Size:      10,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "▸ {{ .Name | cyan }} {{ if ne .Name .ID }}({{ .ID }}){{ end }}",
			Inactive: "  {{ .Name }} {{ if ne .Name .ID }}({{ .ID }}){{ end }}",
			Selected: "model: {{ .ID | green }}",
		},
	}

	i, _, err := prompt.Run()
	if err != nil {
		logger.Fatal("exiting", zap.Error(err))
	}

	if err := p.SetSelectedModel(ctx, provider, models[i].ID); err != nil {
		logger.Fatal("saving model", zap.Error(err))
	}
	logger.Info("model selected", zap.String("provider", string(provider)), zap.String("model", models[i].ID))
}
