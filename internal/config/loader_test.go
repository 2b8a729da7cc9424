package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleYAML = `
server:
  listen_addr: ":8080"
  log_level: info
providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  stt:
    name: assemblyai
    api_key: aai-test
  tts:
    name: openai
    api_key: sk-test
    model: tts-1
analysis:
  command: python3
  args: ["scripts/lexical_worker.py"]
  timeout_seconds: 30
storage:
  postgres_dsn: "postgres://localhost/speakwise"
`

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Providers.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM model = %q", cfg.Providers.LLM.Model)
	}
	if cfg.Analysis.Command != "python3" || len(cfg.Analysis.Args) != 1 {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	if cfg.Analysis.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d", cfg.Analysis.TimeoutSeconds)
	}
}

func TestLoad_ExpandsEnvReferences(t *testing.T) {
	t.Setenv("SW_TEST_KEY", "sk-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
providers:
  llm:
    name: openai
    api_key: ${SW_TEST_KEY}
    model: gpt-4o-mini
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.LLM.APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q, want value from environment", cfg.Providers.LLM.APIKey)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	yaml := `
providers:
  llm:
    name: openai
    modle: typo-here
`
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Error("unknown field should be rejected")
	}
}

func TestValidate_RequiresLLM(t *testing.T) {
	cfg := &Config{}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "providers.llm.name") {
		t.Errorf("Validate = %v, want missing-llm error", err)
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := &Config{
		Server:    ServerConfig{LogLevel: "chatty"},
		Providers: ProvidersConfig{LLM: ProviderEntry{Name: "openai"}},
	}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "log_level") {
		t.Errorf("Validate = %v, want log_level error", err)
	}
}

func TestValidate_NegativeTimeout(t *testing.T) {
	cfg := &Config{
		Providers: ProvidersConfig{LLM: ProviderEntry{Name: "openai"}},
		Analysis:  AnalysisConfig{TimeoutSeconds: -1},
	}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "timeout_seconds") {
		t.Errorf("Validate = %v, want timeout error", err)
	}
}
