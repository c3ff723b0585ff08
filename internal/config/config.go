// Package config loads agentkb configuration from the environment with an
// optional YAML file overlay.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LLM provider identifiers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderBedrock   = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`

	// LLM transport
	LLMProvider     string  `yaml:"llm_provider"`
	LLMModel        string  `yaml:"llm_model"`
	LLMMaxTokens    int     `yaml:"llm_max_tokens"`
	LLMTemperature  float64 `yaml:"llm_temperature"`
	AnthropicAPIKey string  `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string  `yaml:"openai_api_key"`
	OllamaHost      string  `yaml:"ollama_host"`

	// Metered client policy
	LLMMaxRetries     int `yaml:"llm_max_retries"`
	LLMTimeoutSeconds int `yaml:"llm_timeout_seconds"`

	// Job guardrails (system ceilings; per-job config may lower, never raise)
	MaxJobRuntimeMinutes float64 `yaml:"max_job_runtime_minutes"`
	MaxJobCostUSD        float64 `yaml:"max_job_cost_usd"`

	// Orchestrator
	JobConcurrency int `yaml:"job_concurrency"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Load reads configuration from environment variables, applying the YAML file
// named by AGENTKB_CONFIG (if any) between defaults and environment.
func Load() Config {
	cfg := Config{
		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "agentkb",
		SurrealDBDatabase:  "kb",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",
		SurrealDBAuthLevel: "root",

		LLMProvider:    ProviderAnthropic,
		LLMModel:       "claude-sonnet-4-20250514",
		LLMMaxTokens:   4096,
		LLMTemperature: 1.0,
		OllamaHost:     "http://localhost:11434",

		LLMMaxRetries:     3,
		LLMTimeoutSeconds: 60,

		MaxJobRuntimeMinutes: 120,
		MaxJobCostUSD:        5.0,

		JobConcurrency: 4,

		LogFile:  "/tmp/agentkb.log",
		LogLevel: slog.LevelInfo,
	}

	if path := os.Getenv("AGENTKB_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			slog.Warn("failed to load config file, using defaults", "path", path, "error", err)
		}
	}

	cfg.SurrealDBURL = getEnv("SURREALDB_URL", cfg.SurrealDBURL)
	cfg.SurrealDBNamespace = getEnv("SURREALDB_NAMESPACE", cfg.SurrealDBNamespace)
	cfg.SurrealDBDatabase = getEnv("SURREALDB_DATABASE", cfg.SurrealDBDatabase)
	cfg.SurrealDBUser = getEnv("SURREALDB_USER", cfg.SurrealDBUser)
	cfg.SurrealDBPass = getEnv("SURREALDB_PASS", cfg.SurrealDBPass)
	cfg.SurrealDBAuthLevel = getEnv("SURREALDB_AUTH_LEVEL", cfg.SurrealDBAuthLevel)

	cfg.LLMProvider = getEnv("AGENTKB_LLM_PROVIDER", cfg.LLMProvider)
	cfg.LLMModel = getEnv("AGENTKB_LLM_MODEL", cfg.LLMModel)
	cfg.LLMMaxTokens = getEnvInt("AGENTKB_LLM_MAX_TOKENS", cfg.LLMMaxTokens)
	cfg.LLMTemperature = getEnvFloat("AGENTKB_LLM_TEMPERATURE", cfg.LLMTemperature)
	cfg.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OllamaHost = getEnv("OLLAMA_HOST", cfg.OllamaHost)

	cfg.LLMMaxRetries = getEnvInt("AGENTKB_LLM_MAX_RETRIES", cfg.LLMMaxRetries)
	cfg.LLMTimeoutSeconds = getEnvInt("AGENTKB_LLM_TIMEOUT_SECONDS", cfg.LLMTimeoutSeconds)

	cfg.MaxJobRuntimeMinutes = getEnvFloat("AGENTKB_MAX_JOB_RUNTIME_MINUTES", cfg.MaxJobRuntimeMinutes)
	cfg.MaxJobCostUSD = getEnvFloat("AGENTKB_MAX_JOB_COST_USD", cfg.MaxJobCostUSD)

	cfg.JobConcurrency = getEnvInt("AGENTKB_JOB_CONCURRENCY", cfg.JobConcurrency)

	cfg.LogFile = getEnv("AGENTKB_LOG_FILE", cfg.LogFile)
	cfg.LogLevel = parseLogLevel(getEnv("AGENTKB_LOG_LEVEL", "INFO"))

	return cfg
}

// applyFile overlays values from a YAML config file.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
