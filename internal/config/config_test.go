package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Storage.Engine != "sqlite" {
		t.Errorf("Engine = %q, want sqlite", cfg.Storage.Engine)
	}
	if cfg.Storage.EmbeddingDimension != 768 {
		t.Errorf("EmbeddingDimension = %d, want 768", cfg.Storage.EmbeddingDimension)
	}
	if cfg.LLM.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.LLM.Timeout)
	}
	if !cfg.LLM.LearningEnabled {
		t.Error("LearningEnabled should default to true")
	}
	if cfg.Retrieval.DefaultLimit != 10 {
		t.Errorf("DefaultLimit = %d, want 10", cfg.Retrieval.DefaultLimit)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recollect.yaml")
	yaml := `
storage:
  data_path: /var/lib/recollect/graph.db
  embedding_dimension: 384
llm:
  model: llama3.2:3b
retrieval:
  default_limit: 25
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Storage.DataPath != "/var/lib/recollect/graph.db" {
		t.Errorf("DataPath = %q, file value should win over default", cfg.Storage.DataPath)
	}
	if cfg.Storage.EmbeddingDimension != 384 {
		t.Errorf("EmbeddingDimension = %d, want 384", cfg.Storage.EmbeddingDimension)
	}
	if cfg.LLM.Model != "llama3.2:3b" {
		t.Errorf("Model = %q, want llama3.2:3b", cfg.LLM.Model)
	}
	if cfg.Retrieval.DefaultLimit != 25 {
		t.Errorf("DefaultLimit = %d, want 25", cfg.Retrieval.DefaultLimit)
	}
	// Untouched fields keep their defaults.
	if cfg.Storage.Engine != "sqlite" {
		t.Errorf("Engine = %q, want sqlite", cfg.Storage.Engine)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recollect.yaml")
	if err := os.WriteFile(path, []byte("llm:\n  model: from-file\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("RECOLLECT_MODEL", "from-env")
	t.Setenv("RECOLLECT_DEFAULT_LIMIT", "7")
	t.Setenv("RECOLLECT_LEARNING_ENABLED", "no")
	t.Setenv("RECOLLECT_LLM_TIMEOUT", "12s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.LLM.Model != "from-env" {
		t.Errorf("Model = %q, env should win over file", cfg.LLM.Model)
	}
	if cfg.Retrieval.DefaultLimit != 7 {
		t.Errorf("DefaultLimit = %d, want 7", cfg.Retrieval.DefaultLimit)
	}
	if cfg.LLM.LearningEnabled {
		t.Error("LearningEnabled should be disabled via env")
	}
	if cfg.LLM.Timeout != 12*time.Second {
		t.Errorf("Timeout = %v, want 12s", cfg.LLM.Timeout)
	}
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("RECOLLECT_STORAGE_ENGINE", "etcd")
	if _, err := Load(""); err == nil {
		t.Error("unknown storage engine should fail validation")
	}

	t.Setenv("RECOLLECT_STORAGE_ENGINE", "postgres")
	t.Setenv("RECOLLECT_POSTGRES_DSN", "")
	if _, err := Load(""); err == nil {
		t.Error("postgres engine without a DSN should fail validation")
	}

	t.Setenv("RECOLLECT_POSTGRES_DSN", "postgres://localhost/recollect")
	if _, err := Load(""); err != nil {
		t.Errorf("valid postgres config failed: %v", err)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("an explicitly named missing file should be an error")
	}
}

func TestUnparsableEnvFallsBack(t *testing.T) {
	t.Setenv("RECOLLECT_DEFAULT_LIMIT", "many")
	t.Setenv("RECOLLECT_LLM_TIMEOUT", "soon")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Retrieval.DefaultLimit != 10 {
		t.Errorf("DefaultLimit = %d, unparsable env should keep the default", cfg.Retrieval.DefaultLimit)
	}
	if cfg.LLM.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, unparsable env should keep the default", cfg.LLM.Timeout)
	}
}
