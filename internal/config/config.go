// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.askdocs/config.yaml or ./config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider, model selection, temperature, token budgets, embedder
//   - Rewrite: conversational query rewriting (model, budgets, toggle)
//   - Retrieval: top-k, chunk size bounds
//   - Storage: PostgreSQL + pgvector connection
//   - Sessions: history window and TTL
//   - Observability: OTLP trace export
//
// Security: sensitive data (passwords) is never logged; the config directory
// uses 0750 permissions.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidTopK indicates the retrieval top-k value is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidChunkBounds indicates chunking size bounds are inconsistent.
	ErrInvalidChunkBounds = errors.New("invalid chunk size bounds")

	// ErrInvalidHistoryTurns indicates the history window is out of range.
	ErrInvalidHistoryTurns = errors.New("invalid max history turns")

	// ErrInvalidSessionTTL indicates the session TTL is out of range.
	ErrInvalidSessionTTL = errors.New("invalid session TTL")

	// ErrInvalidTimeout indicates an LLM timeout value is out of range.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

const (
	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default, but supports
	// truncation to 768 via OutputDimensionality. Our pgvector schema uses
	// 768 dimensions; see store.VectorDimension.
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultAddr is the default HTTP listen address for serve mode.
	DefaultAddr = ":8080"
)

// OtelConfig configures OTLP trace export. Empty Endpoint disables export.
type OtelConfig struct {
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"` // e.g. "localhost:4318"
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider      string  `mapstructure:"provider" json:"provider"`     // "gemini" (default), "ollama", "openai"
	ModelName     string  `mapstructure:"model_name" json:"model_name"` // e.g. "gemini-2.5-flash", "llama3.3", "gpt-4o"
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"`
	Temperature   float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Query rewriting configuration. RewriteModel falls back to ModelName
	// when empty.
	RewriteEnabled     bool    `mapstructure:"rewrite_enabled" json:"rewrite_enabled"`
	RewriteModel       string  `mapstructure:"rewrite_model" json:"rewrite_model"`
	RewriteMaxTokens   int     `mapstructure:"rewrite_max_tokens" json:"rewrite_max_tokens"`
	RewriteTemperature float32 `mapstructure:"rewrite_temperature" json:"rewrite_temperature"`

	// Retrieval and chunking configuration
	TopK           int    `mapstructure:"top_k" json:"top_k"`
	MinChunkSize   int    `mapstructure:"min_chunk_size" json:"min_chunk_size"`     // words
	MaxSectionSize int    `mapstructure:"max_section_size" json:"max_section_size"` // words
	DocsPath       string `mapstructure:"docs_path" json:"docs_path"`

	// Conversation configuration
	MaxHistoryTurns   int `mapstructure:"max_history_turns" json:"max_history_turns"`
	SessionTTLSeconds int `mapstructure:"session_ttl_seconds" json:"session_ttl_seconds"`

	// LLM call timeouts
	LLMTimeoutSeconds        int `mapstructure:"llm_timeout_seconds" json:"llm_timeout_seconds"`
	LLMConnectTimeoutSeconds int `mapstructure:"llm_connect_timeout_seconds" json:"llm_connect_timeout_seconds"`

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server configuration
	Addr string `mapstructure:"addr" json:"addr"`

	// Observability configuration
	Otel OtelConfig `mapstructure:"otel" json:"otel"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.askdocs/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".askdocs")

	// Ensure directory exists (0750 for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	viper.SetDefault("temperature", 0.1)
	viper.SetDefault("max_tokens", 1024)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Rewrite defaults: smaller budget, same model unless overridden
	viper.SetDefault("rewrite_enabled", true)
	viper.SetDefault("rewrite_model", "")
	viper.SetDefault("rewrite_max_tokens", 256)
	viper.SetDefault("rewrite_temperature", 0.0)

	// Retrieval and chunking defaults
	viper.SetDefault("top_k", 5)
	viper.SetDefault("min_chunk_size", 100)
	viper.SetDefault("max_section_size", 1000)
	viper.SetDefault("docs_path", "./docs")

	// Conversation defaults
	viper.SetDefault("max_history_turns", 10)
	viper.SetDefault("session_ttl_seconds", 3600)

	// LLM timeout defaults
	viper.SetDefault("llm_timeout_seconds", 300)
	viper.SetDefault("llm_connect_timeout_seconds", 10)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "askdocs")
	viper.SetDefault("postgres_password", "askdocs_dev_password")
	viper.SetDefault("postgres_db_name", "askdocs")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// HTTP server defaults
	viper.SetDefault("addr", DefaultAddr)

	// OTel defaults (endpoint empty: export disabled)
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.service_name", "askdocs")
	viper.SetDefault("otel.environment", "dev")
}

// bindEnvVariables binds environment variable overrides explicitly.
// API keys are NOT routed through Viper:
//   - GEMINI_API_KEY is read directly by the Genkit Google plugin
//   - OPENAI_API_KEY is read directly by the Genkit OpenAI plugin
//
// Validation checks their presence based on the selected provider.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "ASKDOCS_PROVIDER")
	mustBind("model_name", "ASKDOCS_MODEL_NAME")
	mustBind("embedder_model", "ASKDOCS_EMBEDDER_MODEL")
	mustBind("ollama_host", "ASKDOCS_OLLAMA_HOST")
	mustBind("docs_path", "ASKDOCS_DOCS_PATH")
	mustBind("addr", "ASKDOCS_ADDR")

	mustBind("postgres_host", "ASKDOCS_POSTGRES_HOST")
	mustBind("postgres_port", "ASKDOCS_POSTGRES_PORT")
	mustBind("postgres_user", "ASKDOCS_POSTGRES_USER")
	mustBind("postgres_password", "ASKDOCS_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "ASKDOCS_POSTGRES_DB_NAME")

	mustBind("otel.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full-width blocks U+2588) to avoid substring matching.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: secrets <= 8 chars are fully masked to prevent substring attacks.
//
// THREAT MODEL: this defends against accidental logging of real secrets.
// It is NOT cryptographically secure; if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3", "openai/gpt-4o".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	return c.qualify(c.ModelName)
}

// FullRewriteModelName returns the provider-qualified model used for query
// rewriting. Falls back to the answer model when rewrite_model is unset.
func (c *Config) FullRewriteModelName() string {
	if c.RewriteModel == "" {
		return c.FullModelName()
	}
	return c.qualify(c.RewriteModel)
}

func (c *Config) qualify(model string) string {
	if strings.Contains(model, "/") {
		return model
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + model
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + model
	default:
		return ProviderGoogleAI + "/" + model
	}
}

// LLMTimeout returns the total per-call LLM timeout as a Duration.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

// LLMConnectTimeout returns the connection-establishment timeout as a Duration.
func (c *Config) LLMConnectTimeout() time.Duration {
	return time.Duration(c.LLMConnectTimeoutSeconds) * time.Second
}

// SessionTTL returns the session idle TTL as a Duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// DatabaseURL builds the PostgreSQL connection URL for pgx.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword,
		c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode)
}
