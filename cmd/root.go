package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/stack-advisor/internal/logger"
	"github.com/spigell/stack-advisor/internal/scoring"
)

const (
	app = "stack-advisor"
)

type Config struct {
	CatalogFile string         `mapstructure:"catalog-file"`
	Scoring     *ScoringConfig `mapstructure:"scoring"`
	Filters     *FiltersConfig `mapstructure:"filters"`
	AI          *AIConfig      `mapstructure:"ai"`
	Prefs       *PrefsConfig   `mapstructure:"prefs"`
}

type ScoringConfig struct {
	Top     int             `mapstructure:"top"`
	Weights scoring.Weights `mapstructure:"weights"`
}

type FiltersConfig struct {
	Exclude     []string `mapstructure:"exclude"`
	ExcludeFile string   `mapstructure:"exclude-file"`
}

type AIConfig struct {
	Provider string          `mapstructure:"provider"`
	OpenAI   *ProviderConfig `mapstructure:"openai"`
	Gemini   *ProviderConfig `mapstructure:"gemini"`
}

type ProviderConfig struct {
	APIKeyFile   string        `mapstructure:"api-key-file"`
	Model        string        `mapstructure:"model"`
	MaxRetries   int           `mapstructure:"max-retries"`
	MaxLogLength int           `mapstructure:"max-log-length"`
	BaseURL      string        `mapstructure:"base-url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type PrefsConfig struct {
	Backend  string `mapstructure:"backend"`
	Path     string `mapstructure:"path"`
	RedisURL string `mapstructure:"redis-url"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "stack-advisor recommends a technology stack for your project, from a quick quiz or a chat with an AI model",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is stack-advisor.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().StringP("provider", "p", "", "ai provider: openai or gemini")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable bold text in the output")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("ai.provider", rootCmd.PersistentFlags().Lookup("provider"))
	viper.BindPFlag("no-color", rootCmd.PersistentFlags().Lookup("no-color"))

	if err := viper.BindEnv("no-color", "NO_COLOR"); err != nil {
		log.Fatalf("binding NO_COLOR environment variable: %v", err)
	}

	viper.SetEnvPrefix("STACK_ADVISOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("scoring.top", scoring.DefaultTop)
	viper.SetDefault("scoring.weights.project-type", scoring.DefaultWeights.ProjectType)
	viper.SetDefault("scoring.weights.scale", scoring.DefaultWeights.Scale)
	viper.SetDefault("scoring.weights.experience", scoring.DefaultWeights.Experience)
	viper.SetDefault("scoring.weights.priority", scoring.DefaultWeights.Priority)
	viper.SetDefault("scoring.weights.features", scoring.DefaultWeights.Features)
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("prefs.backend", prefsBackendFile)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional unless it is set explicitly.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.Scoring == nil {
		config.Scoring = &ScoringConfig{Top: scoring.DefaultTop, Weights: scoring.DefaultWeights}
	}
	if config.Filters == nil {
		config.Filters = &FiltersConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.OpenAI == nil {
		config.AI.OpenAI = &ProviderConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &ProviderConfig{}
	}
	if config.Prefs == nil {
		config.Prefs = &PrefsConfig{Backend: prefsBackendFile}
	}

	return config, nil
}

// setup builds the logger and reads the configuration. Errors are fatal.
func setup() (*zap.Logger, *Config) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug("using config file", zap.String("path", used))
	}

	return logger, config
}

func color() bool {
	return !viper.GetBool("no-color")
}
