package config_test

import (
	"testing"

	"github.com/sondelabs/sonde/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   config.LogInfo,
		},
		Extraction: config.ExtractionConfig{
			Provider: config.ProviderEntry{
				Name:  "openai",
				Model: "gpt-4o",
			},
			Temperature: 0.1,
			MaxTokens:   1024,
		},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	new := baseConfig()

	d := config.Diff(old, new)
	if d.LogLevelChanged {
		t.Error("LogLevelChanged = true, want false")
	}
	if d.ExtractionChanged {
		t.Error("ExtractionChanged = true, want false")
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Fatal("LogLevelChanged = false, want true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel = %q, want %q", d.NewLogLevel, config.LogDebug)
	}
}

func TestDiff_ExtractionChanged(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"model", func(c *config.Config) { c.Extraction.Provider.Model = "gpt-4o-mini" }},
		{"provider name", func(c *config.Config) { c.Extraction.Provider.Name = "anthropic" }},
		{"api key", func(c *config.Config) { c.Extraction.Provider.APIKey = "sk-new" }},
		{"base url", func(c *config.Config) { c.Extraction.Provider.BaseURL = "https://proxy" }},
		{"temperature", func(c *config.Config) { c.Extraction.Temperature = 0.5 }},
		{"max tokens", func(c *config.Config) { c.Extraction.MaxTokens = 512 }},
		{"fallback added", func(c *config.Config) {
			c.Extraction.Fallbacks = append(c.Extraction.Fallbacks, config.ProviderEntry{Name: "ollama"})
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			old := baseConfig()
			new := baseConfig()
			tc.mutate(new)

			if d := config.Diff(old, new); !d.ExtractionChanged {
				t.Error("ExtractionChanged = false, want true")
			}
		})
	}
}

func TestDiff_ListenAddrNotTracked(t *testing.T) {
	t.Parallel()

	// Network changes require a restart and are deliberately not diffed.
	old := baseConfig()
	new := baseConfig()
	new.Server.ListenAddr = ":9090"

	d := config.Diff(old, new)
	if d.LogLevelChanged || d.ExtractionChanged {
		t.Errorf("diff = %+v, want zero", d)
	}
}
