package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known LLM provider names. Used by [Validate] to
// warn about unrecognised provider names.
var ValidProviderNames = []string{
	"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq",
	"llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
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

	// Extraction
	validateProviderName(cfg.Extraction.Provider.Name)
	if cfg.Extraction.Provider.Name == "" {
		slog.Warn("extraction.provider.name is empty; sessions cannot run structured extraction")
	}
	if cfg.Extraction.Temperature < 0 || cfg.Extraction.Temperature > 2 {
		errs = append(errs, fmt.Errorf("extraction.temperature %.2f is out of range [0, 2]", cfg.Extraction.Temperature))
	}
	if cfg.Extraction.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("extraction.max_tokens %d must not be negative", cfg.Extraction.MaxTokens))
	}
	for i, fb := range cfg.Extraction.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("extraction.fallbacks[%d].name must not be empty", i))
			continue
		}
		validateProviderName(fb.Name)
	}

	// Rooms
	if cfg.Rooms.BaseURL != "" {
		u, err := url.Parse(cfg.Rooms.BaseURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			errs = append(errs, fmt.Errorf("rooms.base_url %q must be a ws:// or wss:// URL", cfg.Rooms.BaseURL))
		}
	} else {
		slog.Warn("rooms.base_url is empty; session jobs cannot attach to media rooms")
	}

	// Store availability
	if cfg.Store.PostgresDSN == "" {
		slog.Warn("store.postgres_dsn is empty; finished interviews will not be persisted")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// [ValidProviderNames].
func validateProviderName(name string) {
	if name == "" {
		return
	}
	if slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"name", name,
		"known", ValidProviderNames,
	)
}
