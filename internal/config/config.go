// Package config loads the optional YAML application config carrying
// per-provider app credentials and server tuning. Environment variables
// override file values so deployments can keep secrets out of files.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bridgeworks/espbridge/internal/adapters/driven/esp/ghl"
	"github.com/bridgeworks/espbridge/internal/adapters/driven/esp/klaviyo"
)

// Providers holds per-provider adapter configuration.
type Providers struct {
	GHL     ghl.Config     `yaml:"ghl"`
	Klaviyo klaviyo.Config `yaml:"klaviyo"`
}

// Config is the application file config.
type Config struct {
	// DefaultProvider is the platform-wide default ESP; empty means "first
	// registered".
	DefaultProvider string `yaml:"default_provider"`

	Providers Providers `yaml:"providers"`
}

// Load reads the YAML config at path, then applies environment overrides.
// A missing file is not an error; env vars alone can configure everything.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env-only configuration
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.DefaultProvider, "ESP_DEFAULT_PROVIDER")

	setFromEnv(&c.Providers.GHL.ClientID, "GHL_CLIENT_ID")
	setFromEnv(&c.Providers.GHL.ClientSecret, "GHL_CLIENT_SECRET")
	setFromEnv(&c.Providers.GHL.RedirectURL, "GHL_REDIRECT_URL")
	setFromEnv(&c.Providers.GHL.BaseURL, "GHL_BASE_URL")
	setFromEnv(&c.Providers.GHL.AuthURL, "GHL_AUTH_URL")

	setFromEnv(&c.Providers.Klaviyo.BaseURL, "KLAVIYO_BASE_URL")
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
