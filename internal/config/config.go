// Package config provides the configuration schema, loader, provider
// registry, and file watcher for the audio keyword evaluator.
package config

import "time"

// LogLevel controls log verbosity for the server.
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

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Keywords  KeywordsConfig  `yaml:"keywords"`
	Providers ProvidersConfig `yaml:"providers"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
	Breaker   BreakerConfig   `yaml:"breaker"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// KeywordsConfig holds keyword list settings.
type KeywordsConfig struct {
	// Language is the BCP 47 tag keywords are entered in. When the detected
	// audio language differs by primary subtag, keywords are translated
	// before matching. Default: "en".
	Language string `yaml:"language"`

	// Capacity caps the keyword list size. Values outside (0, 100] fall
	// back to 100.
	Capacity int `yaml:"capacity"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	STT         ProviderEntry `yaml:"stt"`
	Analysis    ProviderEntry `yaml:"analysis"`
	Translation ProviderEntry `yaml:"translation"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g., "whisper", "openai").
	Name string `yaml:"name"`

	// Backend selects the LLM backend for "llm" analysis and translation
	// providers (e.g., "openai", "anthropic", "ollama"). Ignored by STT
	// providers.
	Backend string `yaml:"backend"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "gpt-4o-mini", "whisper-1").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// TimeoutsConfig holds deadlines for remote calls. Zero values use the
// built-in defaults.
type TimeoutsConfig struct {
	// Transcription is the deadline for one transcription call. Default: 2m.
	Transcription time.Duration `yaml:"transcription"`

	// Analysis is the deadline for one analysis pass, covering translation
	// and the semantic-match call together. Default: 1m.
	Analysis time.Duration `yaml:"analysis"`
}

// BreakerConfig tunes the circuit breakers guarding the analysis and
// translation services. Zero values use the breaker defaults.
type BreakerConfig struct {
	// Threshold is the consecutive-failure count that opens a breaker.
	Threshold int `yaml:"threshold"`

	// Cooldown is how long a breaker stays open before probing again.
	Cooldown time.Duration `yaml:"cooldown"`

	// Probes is how many half-open calls must succeed before a breaker
	// closes.
	Probes int `yaml:"probes"`
}
