package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":         {"whisper", "whisper-native", "openai"},
	"analysis":    {"llm"},
	"translation": {"llm"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Keywords
	if cfg.Keywords.Language != "" {
		if _, err := language.Parse(cfg.Keywords.Language); err != nil {
			errs = append(errs, fmt.Errorf("keywords.language %q is not a valid BCP 47 tag", cfg.Keywords.Language))
		}
	}
	if cfg.Keywords.Capacity < 0 || cfg.Keywords.Capacity > 100 {
		errs = append(errs, fmt.Errorf("keywords.capacity %d is out of range (0, 100]", cfg.Keywords.Capacity))
	}

	// Providers
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("analysis", cfg.Providers.Analysis.Name)
	validateProviderName("translation", cfg.Providers.Translation.Name)

	if cfg.Providers.Analysis.Name == "" {
		slog.Warn("no analysis provider configured; matching will be exact-only")
	}
	if cfg.Providers.Analysis.Name == "llm" && cfg.Providers.Analysis.Backend == "" {
		errs = append(errs, errors.New("providers.analysis.backend is required for the llm provider"))
	}
	if cfg.Providers.Translation.Name == "llm" && cfg.Providers.Translation.Backend == "" {
		errs = append(errs, errors.New("providers.translation.backend is required for the llm provider"))
	}
	if cfg.Providers.Translation.Name == "" && cfg.Keywords.Language != "" {
		slog.Warn("no translation provider configured; cross-language audio will match on original keyword texts")
	}

	// Timeouts and breaker
	if cfg.Timeouts.Transcription < 0 {
		errs = append(errs, errors.New("timeouts.transcription must not be negative"))
	}
	if cfg.Timeouts.Analysis < 0 {
		errs = append(errs, errors.New("timeouts.analysis must not be negative"))
	}
	if cfg.Breaker.Threshold < 0 {
		errs = append(errs, errors.New("breaker.threshold must not be negative"))
	}
	if cfg.Breaker.Cooldown < 0 {
		errs = append(errs, errors.New("breaker.cooldown must not be negative"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
