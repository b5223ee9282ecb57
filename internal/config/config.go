// internal/config/config.go
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`
	DBURL    string `mapstructure:"DB_URL"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`

	GithubClientID     string `mapstructure:"GITHUB_CLIENT_ID"`
	GithubClientSecret string `mapstructure:"GITHUB_CLIENT_SECRET"`
	GithubPerPage      int    `mapstructure:"GITHUB_PER_PAGE"`
	SyncConcurrency    int    `mapstructure:"SYNC_CONCURRENCY"`

	ClusterWindowDays       int     `mapstructure:"CLUSTER_WINDOW_DAYS"`
	ClusterShallowThreshold float64 `mapstructure:"CLUSTER_SHALLOW_THRESHOLD"`

	AIProvider   string `mapstructure:"AI_PROVIDER"`
	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel  string `mapstructure:"GEMINI_MODEL"`
	OllamaURL    string `mapstructure:"OLLAMA_URL"`
	OllamaModel  string `mapstructure:"OLLAMA_MODEL"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("GITHUB_PER_PAGE", 100)
	viper.SetDefault("SYNC_CONCURRENCY", 10)
	viper.SetDefault("CLUSTER_WINDOW_DAYS", 7)
	viper.SetDefault("CLUSTER_SHALLOW_THRESHOLD", 5.0)
	viper.SetDefault("AI_PROVIDER", "gemini")
	viper.SetDefault("GEMINI_MODEL", "gemini-flash-latest")
	viper.SetDefault("OLLAMA_URL", "http://localhost:11434")
	viper.SetDefault("OLLAMA_MODEL", "llama3.2")

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.GithubClientID == "" || cfg.GithubClientSecret == "" {
		return nil, errors.New("GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET are required configuration fields")
	}
	if cfg.GithubPerPage <= 0 || cfg.GithubPerPage > 100 {
		return nil, errors.New("GITHUB_PER_PAGE must be between 1 and 100")
	}
	if cfg.SyncConcurrency <= 0 {
		return nil, errors.New("SYNC_CONCURRENCY must be a positive integer")
	}
	if cfg.ClusterWindowDays <= 0 {
		return nil, errors.New("CLUSTER_WINDOW_DAYS must be a positive integer")
	}
	if cfg.AIProvider == "gemini" && cfg.GeminiAPIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required when AI_PROVIDER is gemini")
	}

	return &cfg, nil
}
