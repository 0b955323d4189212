// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.fitplanner/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: generation model, temperature, max tokens, embedder model
//   - Storage: PostgreSQL connection (see storage.go)
//   - RAG: chunking, retrieval, and embedding-call parameters
//   - Regeneration: progress-trend trigger thresholds
//
// Every tunable the pipeline depends on (chunk size, overlap, top-K,
// retry/rate-limit parameters, regeneration thresholds) is an explicit
// field here and is passed into components at construction; there is no
// hidden process-wide state.
//
// Security: sensitive data (passwords) are never logged; the config
// directory uses 0750 permissions. Validation is fail-fast with sentinel
// errors checked via errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidChunking indicates chunk size/overlap values are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidTopK indicates the retrieval top-K is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidRegenThresholds indicates regeneration trigger thresholds are invalid.
	ErrInvalidRegenThresholds = errors.New("invalid regeneration thresholds")

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
)

const (
	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	// text-embedding-004 outputs 768 dimensions, matching the pgvector
	// schema; see vecstore.VectorDimension.
	DefaultGeminiEmbedderModel = "text-embedding-004"

	// DefaultChunkSize is the maximum chunk length in bytes.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the byte overlap between adjacent chunks so a
	// concept spanning a boundary stays retrievable from at least one chunk.
	DefaultChunkOverlap = 200

	// DefaultTopK is the default number of chunks returned per retrieval.
	DefaultTopK = 5

	// MaxTopK is the absolute maximum retrieval size.
	MaxTopK = 20
)

// RegenConfig holds the progress-trend trigger thresholds for automatic
// plan regeneration. The exact values are policy, not algorithm: the
// mapping from trend to adjustment is deterministic for any setting.
type RegenConfig struct {
	// MinSamples is the minimum number of progress samples required before
	// a trend is considered sustained.
	MinSamples int `mapstructure:"min_samples" json:"min_samples"`

	// WeightEpsilonKg is the dead band around zero weight change; trends
	// inside it count as flat.
	WeightEpsilonKg float64 `mapstructure:"weight_epsilon_kg" json:"weight_epsilon_kg"`

	// AdherenceThreshold is the workout-completion ratio below which the
	// controller biases toward lower-volume plans.
	AdherenceThreshold float64 `mapstructure:"adherence_threshold" json:"adherence_threshold"`

	// AutoTrigger enables trend-driven regeneration without a manual request.
	AutoTrigger bool `mapstructure:"auto_trigger" json:"auto_trigger"`
}

// TracingConfig holds OpenTelemetry export settings. Spans are shipped
// over OTLP HTTP to a local collector; the collector handles auth and
// forwarding, so no API key lives in the application.
type TracingConfig struct {
	// Enabled turns span export on. Off by default; local development
	// rarely runs a collector.
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// OTLPEndpoint is the collector's OTLP HTTP endpoint (host:port).
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`

	// Environment is the deployment environment tag (dev, staging, prod).
	Environment string `mapstructure:"environment" json:"environment"`

	// ServiceName is the service name shown in the tracing backend.
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI model configuration
	ModelName   string  `mapstructure:"model_name" json:"model_name"`
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Embedding configuration
	EmbedderModel  string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedBatchSize int    `mapstructure:"embed_batch_size" json:"embed_batch_size"`
	EmbedRateLimit int    `mapstructure:"embed_rate_limit" json:"embed_rate_limit"` // requests per second

	// RAG configuration
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	TopK         int `mapstructure:"top_k" json:"top_k"`

	// Regeneration trigger policy
	Regen RegenConfig `mapstructure:"regen" json:"regen"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server configuration (serve mode)
	HTTPAddr string `mapstructure:"http_addr" json:"http_addr"`

	// Tracing configuration (see observability package)
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".fitplanner")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

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

	// DATABASE_URL, when set, overrides individual postgres_* values
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.3)
	viper.SetDefault("max_tokens", 4096)

	// Embedding defaults
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	viper.SetDefault("embed_batch_size", 32)
	viper.SetDefault("embed_rate_limit", 5)

	// RAG defaults
	viper.SetDefault("chunk_size", DefaultChunkSize)
	viper.SetDefault("chunk_overlap", DefaultChunkOverlap)
	viper.SetDefault("top_k", DefaultTopK)

	// Regeneration defaults
	viper.SetDefault("regen.min_samples", 4)
	viper.SetDefault("regen.weight_epsilon_kg", 0.5)
	viper.SetDefault("regen.adherence_threshold", 0.6)
	viper.SetDefault("regen.auto_trigger", true)

	// PostgreSQL defaults (local development)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "fitplanner")
	viper.SetDefault("postgres_password", "fitplanner_dev_password")
	viper.SetDefault("postgres_db_name", "fitplanner")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// HTTP defaults
	viper.SetDefault("http_addr", "127.0.0.1:3500")

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.otlp_endpoint", "localhost:4318")
	viper.SetDefault("tracing.environment", "dev")
	viper.SetDefault("tracing.service_name", "fitplanner")
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit (not via Viper); its presence
// is checked in Validate().
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "FITPLANNER_MODEL_NAME")
	mustBind("embedder_model", "FITPLANNER_EMBEDDER_MODEL")
	mustBind("http_addr", "FITPLANNER_HTTP_ADDR")
	mustBind("regen.auto_trigger", "FITPLANNER_AUTO_REGEN")
	mustBind("tracing.enabled", "FITPLANNER_TRACING_ENABLED")
	mustBind("tracing.otlp_endpoint", "FITPLANNER_OTLP_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked to prevent substring
// matching; longer secrets show the first and last 2 characters.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
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

// FullModelName returns the provider-qualified model name for Genkit.
// Example: "googleai/gemini-2.5-flash". If ModelName already contains a
// "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return "googleai/" + c.ModelName
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
