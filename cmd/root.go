package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "entervio"
)

type Config struct {
	// Profile is the path to the candidate profile YAML file.
	Profile       string               `mapstructure:"profile"`
	Search        *SearchConfig        `mapstructure:"search"`
	FranceTravail *FranceTravailConfig `mapstructure:"france-travail"`
	AI            *AIConfig            `mapstructure:"ai"`
}

// SearchConfig holds request defaults stamped onto every planned search.
type SearchConfig struct {
	RadiusKM       int    `mapstructure:"radius-km"`
	PublishedSince int    `mapstructure:"published-since"`
	Domain         string `mapstructure:"domain"`
	Sort           *int   `mapstructure:"sort"`
	Limit          int    `mapstructure:"limit"`
}

// FranceTravailConfig holds the job-board credentials. Inline values are
// excluded from the config debug dump; prefer the file sources.
type FranceTravailConfig struct {
	ClientID          string  `mapstructure:"client-id" json:"-"`
	ClientIDFile      string  `mapstructure:"client-id-file"`
	ClientSecret      string  `mapstructure:"client-secret" json:"-"`
	ClientSecretFile  string  `mapstructure:"client-secret-file"`
	RequestsPerSecond float64 `mapstructure:"requests-per-second"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api-key" json:"-"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
	MaxLogLength   int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "entervio is a smart cli for searching job offers on francetravail.fr",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("france-travail.client-id-file", "FT_CLIENT_ID_FILE"); err != nil {
		log.Fatalf("binding FT_CLIENT_ID_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("france-travail.client-secret-file", "FT_CLIENT_SECRET_FILE"); err != nil {
		log.Fatalf("binding FT_CLIENT_SECRET_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is entervio.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config is needed only for the search command. If there is no config,
	// we can skip initialization.
	if searchCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
