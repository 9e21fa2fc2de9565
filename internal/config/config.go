// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (RECALL_* plus DATABASE_URL)
//  2. Config file (~/.recall/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, summarizer model, embedder model and dimension
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: similarity threshold, auto-detect size ratio
//   - Identity: team id and the local user-id file (see identity.go)
//   - Observability: optional OTLP trace export
//
// Sensitive data (passwords) is never logged. Validation fails fast with
// sentinel errors checked via errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	// ErrMissingTeamID indicates no team id was configured.
	ErrMissingTeamID = errors.New("missing team id")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidEmbedderModel indicates the embedder model is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidDimension indicates the embedding dimension is out of range.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrInvalidThreshold indicates the similarity threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidAutoDetectRatio indicates the auto-detect size ratio is out of range.
	ErrInvalidAutoDetectRatio = errors.New("invalid auto-detect ratio")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrMissingHostedURL indicates the hosted provider has no inference URL.
	ErrMissingHostedURL = errors.New("missing hosted inference URL")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderHosted = "hosted"
)

// Defaults for tuning knobs. The threshold and ratio values are tuning
// choices carried over from production, not correctness constraints.
const (
	DefaultEmbedderModel       = "gemini-embedding-001"
	DefaultEmbeddingDimension  = 384
	DefaultSimilarityThreshold = 0.7
	DefaultAutoDetectRatio     = 1.5
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider"`       // "gemini" (default), "ollama", "openai", "hosted"
	ModelName     string `mapstructure:"model_name"`     // summarizer model
	EmbedderModel string `mapstructure:"embedder_model"` // embedding model

	// EmbeddingDimension must match the vector column in the schema.
	EmbeddingDimension int `mapstructure:"embedding_dimension"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host"`

	// Hosted inference configuration (only used when provider is "hosted")
	HostedEmbedURL     string `mapstructure:"hosted_embed_url"`
	HostedSummarizeURL string `mapstructure:"hosted_summarize_url"`
	HostedAPIKeyEnv    string `mapstructure:"hosted_api_key_env"`

	// Retrieval tuning
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	AutoDetectRatio     float64 `mapstructure:"auto_detect_ratio"`

	// Identity
	TeamID        string `mapstructure:"team_id"`
	WorkspaceRoot string `mapstructure:"workspace_root"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"` // SENSITIVE: never logged
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// Logging
	LogLevel  string `mapstructure:"log_level"` // debug, info, warn, error
	LogJSON   bool   `mapstructure:"log_json"`
	LogPretty bool   `mapstructure:"log_pretty"`

	// Observability (optional OTLP trace export)
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
	Environment  string `mapstructure:"environment"`

	// configDir is resolved at load time (~/.recall); the identity file
	// lives beneath it.
	configDir string
}

// Dir returns the configuration directory resolved during Load.
func (c *Config) Dir() string {
	return c.configDir
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	// Best-effort .env loading for local development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Debug("skipping .env", "error", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".recall")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("RECALL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	cfg.configDir = configDir

	// DATABASE_URL wins over individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("embedding_dimension", DefaultEmbeddingDimension)

	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("hosted_api_key_env", "RECALL_INFERENCE_API_KEY")

	v.SetDefault("similarity_threshold", DefaultSimilarityThreshold)
	v.SetDefault("auto_detect_ratio", DefaultAutoDetectRatio)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "recall")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_db_name", "recall")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("log_pretty", false)

	v.SetDefault("service_name", "recall")
	v.SetDefault("environment", "")
}

// Validate checks the configuration for invalid values (fail-fast).
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderOllama, ProviderOpenAI, ProviderHosted:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProvider, c.Provider)
	}

	if c.TeamID == "" {
		return fmt.Errorf("%w: set team_id or RECALL_TEAM_ID", ErrMissingTeamID)
	}

	if c.EmbedderModel == "" && c.Provider != ProviderHosted {
		return ErrInvalidEmbedderModel
	}
	if c.EmbeddingDimension < 1 || c.EmbeddingDimension > 4096 {
		return fmt.Errorf("%w: %d (must be 1-4096)", ErrInvalidDimension, c.EmbeddingDimension)
	}

	if c.SimilarityThreshold < 0 || c.SimilarityThreshold >= 1 {
		return fmt.Errorf("%w: %.2f (must be in [0, 1))", ErrInvalidThreshold, c.SimilarityThreshold)
	}
	if c.AutoDetectRatio <= 1.0 || c.AutoDetectRatio > 10 {
		return fmt.Errorf("%w: %.2f (must be in (1, 10])", ErrInvalidAutoDetectRatio, c.AutoDetectRatio)
	}

	if c.Provider == ProviderHosted && c.HostedEmbedURL == "" {
		return ErrMissingHostedURL
	}

	if c.PostgresHost == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return ErrInvalidPostgresDBName
	}

	return nil
}

// SlogLevel maps the configured log level string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
