package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/tailscale/hujson"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, expands ${{ .Env.VAR }} templates,
// strips comments and trailing commas, unmarshals it into Config, and
// applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variable templates before standardizing, since
	// templates live inside string values.
	expanded := expandEnvTemplates(string(data))

	standardized, err := hujson.Standardize([]byte(expanded))
	if err != nil {
		return nil, fmt.Errorf("standardize config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Inspector.Host == "" {
		cfg.Inspector.Host = "127.0.0.1"
	}
	if cfg.Inspector.Port == 0 {
		cfg.Inspector.Port = 18530
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "statecraft"
	}
	if cfg.Plugins.Dir == "" {
		cfg.Plugins.Dir = PluginsPath()
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
