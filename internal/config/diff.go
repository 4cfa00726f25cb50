package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ExtractionChanged reports that the extraction provider or its tuning
	// changed. New sessions pick it up; running sessions keep the extractor
	// they started with.
	ExtractionChanged bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if providerChanged(old.Extraction.Provider, new.Extraction.Provider) ||
		old.Extraction.Temperature != new.Extraction.Temperature ||
		old.Extraction.MaxTokens != new.Extraction.MaxTokens ||
		fallbacksChanged(old.Extraction.Fallbacks, new.Extraction.Fallbacks) {
		d.ExtractionChanged = true
	}

	return d
}

func providerChanged(old, new ProviderEntry) bool {
	return old.Name != new.Name ||
		old.APIKey != new.APIKey ||
		old.BaseURL != new.BaseURL ||
		old.Model != new.Model
}

func fallbacksChanged(old, new []ProviderEntry) bool {
	if len(old) != len(new) {
		return true
	}
	for i := range old {
		if providerChanged(old[i], new[i]) {
			return true
		}
	}
	return false
}
