package cmd

import (
	"errors"
	"io/fs"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spigell/candidate-matcher/internal/ai/gemini"
	"github.com/spigell/candidate-matcher/internal/documents"
	"github.com/spigell/candidate-matcher/internal/filtering"
	"github.com/spigell/candidate-matcher/internal/ranking"
	"github.com/spigell/candidate-matcher/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "candidate-matcher"
)

type Config struct {
	JDFile         string               `mapstructure:"jd-file"`
	CSVColumn      string               `mapstructure:"csv-column"`
	CSVIDColumn    string               `mapstructure:"csv-id-column"`
	ExcludeFile    string               `mapstructure:"exclude-file"`
	TopK           int                  `mapstructure:"top-k" validate:"gte=0"`
	MinimumScore   float64              `mapstructure:"minimum-score"`
	Concurrency    int                  `mapstructure:"concurrency" validate:"gte=1,lte=64"`
	DisableFilters []string             `mapstructure:"disable-filters"`
	Weights        ranking.WeightConfig `mapstructure:"weights"`
	Analysis       AnalysisConfig       `mapstructure:"analysis"`
	AI             AIConfig             `mapstructure:"ai"`
	Server         server.Config        `mapstructure:"server"`
}

type AnalysisConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider" validate:"omitempty,oneof=gemini"`
	Cache    int           `mapstructure:"cache-size" validate:"gte=0"`
	Gemini   gemini.Config `mapstructure:"gemini"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "candidate-matcher ranks resumes against a job description by semantic similarity",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	viper.SetDefault("csv-column", documents.DefaultCSVColumn)
	viper.SetDefault("top-k", filtering.DefaultTopK)
	viper.SetDefault("concurrency", ranking.DefaultConcurrency)
	viper.SetDefault("weights.keyword", 1.0)
	viper.SetDefault("ai.provider", gemini.Provider)
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8080)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is candidate-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// A missing .env is fine, a broken one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if rankCmd.CalledAs() == "" && serveCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Without an explicit --config the file is optional and flags/defaults are enough.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, err
	}

	if err := validator.New().Struct(config); err != nil {
		return config, err
	}

	if err := config.Weights.Validate(); err != nil {
		return config, err
	}

	return config, nil
}
