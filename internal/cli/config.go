package cli

import (
	"github.com/eshaffer321/ledgermatch/internal/infrastructure/config"
)

// LoadConfig loads the named config file. With no path it tries config.yaml
// and falls back to environment variables.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadOrEnv(), nil
	}
	return config.Load(path)
}

func loggingConfig(cfg *config.Config, verbose bool) config.LoggingConfig {
	out := cfg.Observability.Logging
	if verbose {
		out.Level = "debug"
	}
	return out
}
