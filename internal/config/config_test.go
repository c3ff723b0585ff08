package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg := Load()

	if cfg.SurrealDBURL != "ws://localhost:8000/rpc" {
		t.Errorf("SurrealDBURL = %q", cfg.SurrealDBURL)
	}
	if cfg.LLMProvider != ProviderAnthropic {
		t.Errorf("LLMProvider = %q, want anthropic", cfg.LLMProvider)
	}
	if cfg.LLMMaxRetries != 3 {
		t.Errorf("LLMMaxRetries = %d, want 3", cfg.LLMMaxRetries)
	}
	if cfg.MaxJobRuntimeMinutes != 120 {
		t.Errorf("MaxJobRuntimeMinutes = %v, want 120", cfg.MaxJobRuntimeMinutes)
	}
	if cfg.MaxJobCostUSD != 5.0 {
		t.Errorf("MaxJobCostUSD = %v, want 5.0", cfg.MaxJobCostUSD)
	}
	if cfg.JobConcurrency != 4 {
		t.Errorf("JobConcurrency = %d, want 4", cfg.JobConcurrency)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SURREALDB_URL", "ws://db.internal:9000/rpc")
	t.Setenv("AGENTKB_LLM_MODEL", "gpt-4o-mini")
	t.Setenv("AGENTKB_LLM_MAX_RETRIES", "5")
	t.Setenv("AGENTKB_MAX_JOB_COST_USD", "1.25")
	t.Setenv("AGENTKB_LOG_LEVEL", "debug")

	cfg := Load()

	if cfg.SurrealDBURL != "ws://db.internal:9000/rpc" {
		t.Errorf("SurrealDBURL = %q", cfg.SurrealDBURL)
	}
	if cfg.LLMModel != "gpt-4o-mini" {
		t.Errorf("LLMModel = %q", cfg.LLMModel)
	}
	if cfg.LLMMaxRetries != 5 {
		t.Errorf("LLMMaxRetries = %d, want 5", cfg.LLMMaxRetries)
	}
	if cfg.MaxJobCostUSD != 1.25 {
		t.Errorf("MaxJobCostUSD = %v, want 1.25", cfg.MaxJobCostUSD)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
}

func TestLoadInvalidNumericEnvFallsBack(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("AGENTKB_LLM_MAX_RETRIES", "not-a-number")
	t.Setenv("AGENTKB_MAX_JOB_COST_USD", "also-bad")

	cfg := Load()

	if cfg.LLMMaxRetries != 3 {
		t.Errorf("LLMMaxRetries = %d, want default 3", cfg.LLMMaxRetries)
	}
	if cfg.MaxJobCostUSD != 5.0 {
		t.Errorf("MaxJobCostUSD = %v, want default 5.0", cfg.MaxJobCostUSD)
	}
}

func TestLoadYAMLFileOverlay(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "agentkb.yaml")
	content := []byte("surrealdb_namespace: staging\nllm_model: claude-3-5-haiku-latest\nmax_job_cost_usd: 2.0\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AGENTKB_CONFIG", path)

	cfg := Load()

	if cfg.SurrealDBNamespace != "staging" {
		t.Errorf("SurrealDBNamespace = %q, want staging", cfg.SurrealDBNamespace)
	}
	if cfg.LLMModel != "claude-3-5-haiku-latest" {
		t.Errorf("LLMModel = %q", cfg.LLMModel)
	}
	if cfg.MaxJobCostUSD != 2.0 {
		t.Errorf("MaxJobCostUSD = %v, want 2.0", cfg.MaxJobCostUSD)
	}
	// Untouched keys keep their defaults.
	if cfg.SurrealDBDatabase != "kb" {
		t.Errorf("SurrealDBDatabase = %q, want kb", cfg.SurrealDBDatabase)
	}
}

func TestEnvWinsOverYAMLFile(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "agentkb.yaml")
	if err := os.WriteFile(path, []byte("llm_model: from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AGENTKB_CONFIG", path)
	t.Setenv("AGENTKB_LLM_MODEL", "from-env")

	cfg := Load()
	if cfg.LLMModel != "from-env" {
		t.Errorf("LLMModel = %q, want env to win over file", cfg.LLMModel)
	}
}

// clearConfigEnv unsets every variable Load reads so tests see clean defaults.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"AGENTKB_CONFIG",
		"SURREALDB_URL", "SURREALDB_NAMESPACE", "SURREALDB_DATABASE",
		"SURREALDB_USER", "SURREALDB_PASS", "SURREALDB_AUTH_LEVEL",
		"AGENTKB_LLM_PROVIDER", "AGENTKB_LLM_MODEL", "AGENTKB_LLM_MAX_TOKENS",
		"AGENTKB_LLM_TEMPERATURE", "ANTHROPIC_API_KEY", "OPENAI_API_KEY",
		"OLLAMA_HOST", "AGENTKB_LLM_MAX_RETRIES", "AGENTKB_LLM_TIMEOUT_SECONDS",
		"AGENTKB_MAX_JOB_RUNTIME_MINUTES", "AGENTKB_MAX_JOB_COST_USD",
		"AGENTKB_JOB_CONCURRENCY", "AGENTKB_LOG_FILE", "AGENTKB_LOG_LEVEL",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}
