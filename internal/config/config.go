// Package config provides the configuration schema and loader for the
// Speakwise tutoring server.
package config

// LogLevel controls log verbosity for the Speakwise server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Speakwise.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Storage   StorageConfig   `yaml:"storage"`
}

// ServerConfig holds network and logging settings for the Speakwise server.
type ServerConfig struct {
	// ListenAddr is the TCP address the health and metrics endpoints listen
	// on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage.
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`
	STT ProviderEntry `yaml:"stt"`
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider
// types.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g., "openai", "assemblyai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini",
	// "whisper-1", "tts-1").
	Model string `yaml:"model"`

	// Fallback optionally names a second provider to try when this one
	// fails. Same schema, one level deep.
	Fallback *ProviderEntry `yaml:"fallback"`
}

// AnalysisConfig configures the out-of-process lexical analyzer.
type AnalysisConfig struct {
	// Command is the worker executable (e.g., "python3").
	Command string `yaml:"command"`

	// Args are passed to the command (e.g., the analyzer script path).
	Args []string `yaml:"args"`

	// TimeoutSeconds bounds one analysis exchange. Zero means the default
	// of 30 seconds.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// StorageConfig selects where sessions and submissions are persisted.
type StorageConfig struct {
	// PostgresDSN is the connection string for the PostgreSQL store. When
	// empty the server falls back to the in-process store.
	PostgresDSN string `yaml:"postgres_dsn"`
}
