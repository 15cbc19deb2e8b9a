package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	// 0. Check for nil config (defensive programming)
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider and API key validation
	switch c.Provider {
	case ProviderGemini, ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required", ErrMissingAPIKey)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host cannot be empty", ErrInvalidOllamaHost)
		}
	default:
		return fmt.Errorf("%w: %q is not supported, must be one of: gemini, ollama, openai",
			ErrInvalidProvider, c.Provider)
	}

	// 2. Model configuration validation
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	// Temperature range: 0.0 (deterministic) to 2.0 (maximum creativity)
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}
	if c.RewriteTemperature < 0.0 || c.RewriteTemperature > 2.0 {
		return fmt.Errorf("%w: rewrite_temperature must be between 0.0 and 2.0, got %.2f",
			ErrInvalidTemperature, c.RewriteTemperature)
	}

	if c.MaxTokens < 1 || c.MaxTokens > 2097152 {
		return fmt.Errorf("%w: must be between 1 and 2,097,152, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}
	if c.RewriteMaxTokens < 1 || c.RewriteMaxTokens > c.MaxTokens {
		return fmt.Errorf("%w: rewrite_max_tokens must be between 1 and max_tokens (%d), got %d",
			ErrInvalidMaxTokens, c.MaxTokens, c.RewriteMaxTokens)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// 3. Retrieval and chunking validation
	if c.TopK <= 0 || c.TopK > 20 {
		return fmt.Errorf("%w: must be between 1 and 20, got %d", ErrInvalidTopK, c.TopK)
	}

	if c.MinChunkSize < 0 {
		return fmt.Errorf("%w: min_chunk_size cannot be negative, got %d", ErrInvalidChunkBounds, c.MinChunkSize)
	}
	if c.MaxSectionSize <= c.MinChunkSize {
		return fmt.Errorf("%w: max_section_size (%d) must exceed min_chunk_size (%d)",
			ErrInvalidChunkBounds, c.MaxSectionSize, c.MinChunkSize)
	}

	// 4. Conversation validation
	if c.MaxHistoryTurns < 1 || c.MaxHistoryTurns > 100 {
		return fmt.Errorf("%w: must be between 1 and 100, got %d", ErrInvalidHistoryTurns, c.MaxHistoryTurns)
	}
	if c.SessionTTLSeconds < 1 {
		return fmt.Errorf("%w: session_ttl_seconds must be positive, got %d", ErrInvalidSessionTTL, c.SessionTTLSeconds)
	}

	// 5. Timeout validation
	if c.LLMTimeoutSeconds < 1 {
		return fmt.Errorf("%w: llm_timeout_seconds must be positive, got %d", ErrInvalidTimeout, c.LLMTimeoutSeconds)
	}
	if c.LLMConnectTimeoutSeconds < 1 || c.LLMConnectTimeoutSeconds > c.LLMTimeoutSeconds {
		return fmt.Errorf("%w: llm_connect_timeout_seconds must be between 1 and llm_timeout_seconds (%d), got %d",
			ErrInvalidTimeout, c.LLMTimeoutSeconds, c.LLMConnectTimeoutSeconds)
	}

	// 6. PostgreSQL validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml", ErrInvalidPostgresPassword)
	}

	// Warn on the default dev password but don't block (user might be in dev).
	if c.PostgresPassword == "askdocs_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// Modern SSL modes only; allow/prefer are deprecated (MITM vulnerable).
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
