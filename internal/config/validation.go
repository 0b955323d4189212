package config

import (
	"fmt"
	"os"
	"strings"
)

// validSSLModes are the PostgreSQL SSL modes pgx accepts.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate performs fail-fast validation of the configuration.
// All failures return sentinel errors suitable for errors.Is() checks.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY or GOOGLE_API_KEY", ErrMissingAPIKey)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (must be in [0, 2])", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens <= 0 || c.MaxTokens > 1_000_000 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model is empty", ErrInvalidEmbedderModel)
	}
	if c.EmbedBatchSize <= 0 {
		return fmt.Errorf("%w: embed_batch_size %d", ErrInvalidEmbedderModel, c.EmbedBatchSize)
	}
	if c.EmbedRateLimit <= 0 {
		return fmt.Errorf("%w: embed_rate_limit %d", ErrInvalidEmbedderModel, c.EmbedRateLimit)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be in [0, chunk_size)", ErrInvalidChunking, c.ChunkOverlap)
	}
	if c.TopK <= 0 || c.TopK > MaxTopK {
		return fmt.Errorf("%w: %d (must be in [1, %d])", ErrInvalidTopK, c.TopK, MaxTopK)
	}

	if c.Regen.MinSamples < 2 {
		return fmt.Errorf("%w: min_samples %d (need at least 2 to form a trend)", ErrInvalidRegenThresholds, c.Regen.MinSamples)
	}
	if c.Regen.WeightEpsilonKg < 0 {
		return fmt.Errorf("%w: weight_epsilon_kg %v", ErrInvalidRegenThresholds, c.Regen.WeightEpsilonKg)
	}
	if c.Regen.AdherenceThreshold < 0 || c.Regen.AdherenceThreshold > 1 {
		return fmt.Errorf("%w: adherence_threshold %v (must be in [0, 1])", ErrInvalidRegenThresholds, c.Regen.AdherenceThreshold)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: password is empty", ErrInvalidPostgresPassword)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	return nil
}
