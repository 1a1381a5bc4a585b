// Package config provides configuration management for Recollect. Settings
// come from an optional YAML file overlaid by environment variables with the
// RECOLLECT_ prefix; environment wins. All options have working defaults, so
// an empty environment yields a usable local setup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Recollect system.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// StorageConfig contains database and vector backend configuration.
type StorageConfig struct {
	// Engine selects the persistence backend: sqlite or postgres
	// (default: sqlite).
	Engine string `yaml:"engine"`

	// DataPath is the SQLite database path (default: ./data/recollect.db).
	DataPath string `yaml:"data_path"`

	// PostgresDSN is the connection string for the postgres engine.
	PostgresDSN string `yaml:"postgres_dsn"`

	// EmbeddingDimension is the vector length the index is built for
	// (default: 768, matching nomic-embed-text).
	EmbeddingDimension int `yaml:"embedding_dimension"`
}

// LLMConfig contains model collaborator configuration.
type LLMConfig struct {
	// OllamaURL is the Ollama API base URL (default: http://localhost:11434).
	OllamaURL string `yaml:"ollama_url"`

	// Model is the completion model for query enhancement (default: phi3:mini).
	Model string `yaml:"model"`

	// EmbeddingModel is the embedding model (default: nomic-embed-text).
	EmbeddingModel string `yaml:"embedding_model"`

	// Timeout bounds each collaborator call (default: 5s).
	Timeout time.Duration `yaml:"timeout"`

	// EmbedRatePerSecond caps embedding requests per second; 0 disables
	// the limit (default: 0).
	EmbedRatePerSecond float64 `yaml:"embed_rate_per_second"`

	// LearningEnabled turns on model-backed query enhancement and
	// interaction recording (default: true).
	LearningEnabled bool `yaml:"learning_enabled"`
}

// RetrievalConfig tunes the retrieval pipeline.
type RetrievalConfig struct {
	// DefaultLimit is the result cap when the caller does not set one
	// (default: 10).
	DefaultLimit int `yaml:"default_limit"`

	// MinRelevance drops results below this score (default: 0).
	MinRelevance float64 `yaml:"min_relevance"`
}

// Load builds configuration from defaults, an optional YAML file, and the
// environment, in increasing precedence. An empty path skips the file;
// a missing file at an explicit path is an error.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Storage: StorageConfig{
			Engine:             "sqlite",
			DataPath:           "./data/recollect.db",
			EmbeddingDimension: 768,
		},
		LLM: LLMConfig{
			OllamaURL:       "http://localhost:11434",
			Model:           "phi3:mini",
			EmbeddingModel:  "nomic-embed-text",
			Timeout:         5 * time.Second,
			LearningEnabled: true,
		},
		Retrieval: RetrievalConfig{
			DefaultLimit: 10,
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Storage.Engine = getEnv("RECOLLECT_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.DataPath = getEnv("RECOLLECT_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.PostgresDSN = getEnv("RECOLLECT_POSTGRES_DSN", cfg.Storage.PostgresDSN)
	cfg.Storage.EmbeddingDimension = getEnvInt("RECOLLECT_EMBEDDING_DIMENSION", cfg.Storage.EmbeddingDimension)

	cfg.LLM.OllamaURL = getEnv("RECOLLECT_OLLAMA_URL", cfg.LLM.OllamaURL)
	cfg.LLM.Model = getEnv("RECOLLECT_MODEL", cfg.LLM.Model)
	cfg.LLM.EmbeddingModel = getEnv("RECOLLECT_EMBEDDING_MODEL", cfg.LLM.EmbeddingModel)
	cfg.LLM.Timeout = getEnvDuration("RECOLLECT_LLM_TIMEOUT", cfg.LLM.Timeout)
	cfg.LLM.LearningEnabled = getEnvBool("RECOLLECT_LEARNING_ENABLED", cfg.LLM.LearningEnabled)

	cfg.Retrieval.DefaultLimit = getEnvInt("RECOLLECT_DEFAULT_LIMIT", cfg.Retrieval.DefaultLimit)
	cfg.Retrieval.MinRelevance = getEnvFloat("RECOLLECT_MIN_RELEVANCE", cfg.Retrieval.MinRelevance)
}

func (c *Config) validate() error {
	switch c.Storage.Engine {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.Engine)
	}
	if c.Storage.Engine == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("config: postgres engine requires RECOLLECT_POSTGRES_DSN")
	}
	if c.Storage.EmbeddingDimension < 1 {
		return fmt.Errorf("config: embedding dimension must be positive")
	}
	if c.Retrieval.DefaultLimit < 1 {
		return fmt.Errorf("config: default limit must be positive")
	}
	return nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparsable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value. Unparsable values fall back to the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. Recognises "true", "1", "yes" and "false", "0", "no".
func getEnvBool(key string, defaultValue bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
		return true
	case "false", "0", "no", "False", "FALSE", "No", "NO":
		return false
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable ("5s", "1m") or
// returns a default value. Unparsable values fall back to the default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
