// Package config loads environment-based configuration for the bridge
// diagnostic tooling, with an optional YAML file for the allowed-origin
// allow-list.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all environment-based configuration for the bridge.
type Config struct {
	// HostURL is the WebSocket endpoint of the host application's
	// bridge channel. Required. When empty the process is treated as
	// not running embedded.
	HostURL string `env:"BRIDGE_HOST_URL"`

	// LaunchURL is the URL the host launched this application with,
	// carrying session credentials in its query string and fragment.
	LaunchURL string `env:"BRIDGE_LAUNCH_URL"`

	// Registration defaults sent in the handshake.
	AppTitle string `env:"BRIDGE_APP_TITLE" envDefault:""`
	AppColor string `env:"BRIDGE_APP_COLOR" envDefault:""`

	// AllowedOrigins is a comma-separated allow-list of origin
	// patterns, e.g. "https://app.bullhorn.com,https://*.bullhornstaffing.com".
	AllowedOrigins string `env:"BRIDGE_ALLOWED_ORIGINS"`

	// OriginsFile optionally points at a YAML file with additional
	// origin patterns. Merged with AllowedOrigins.
	OriginsFile string `env:"BRIDGE_ORIGINS_FILE"`

	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// Debug forces debug-level logging.
	Debug bool `env:"BRIDGE_DEBUG" envDefault:"false"`
}

// Load reads configuration from environment variables. It first
// attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.HostURL == "" {
		return fmt.Errorf("BRIDGE_HOST_URL is required")
	}

	u, err := url.Parse(c.HostURL)
	if err != nil {
		return fmt.Errorf("BRIDGE_HOST_URL is not a valid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("BRIDGE_HOST_URL must use ws or wss scheme, got %q", u.Scheme)
	}

	if c.AllowedOrigins == "" && c.OriginsFile == "" {
		return fmt.Errorf("at least one of BRIDGE_ALLOWED_ORIGINS or BRIDGE_ORIGINS_FILE is required")
	}

	return nil
}

// originsFile is the YAML shape of an allowed-origins file:
//
//	origins:
//	  - https://app.bullhorn.com
//	  - https://*.bullhornstaffing.com
type originsFile struct {
	Origins []string `yaml:"origins"`
}

// Origins merges the comma-separated env allow-list with the YAML file,
// preserving order (env entries first) and dropping duplicates.
func (c *Config) Origins() ([]string, error) {
	seen := make(map[string]struct{})

	var out []string

	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" {
			return
		}
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, p := range strings.Split(c.AllowedOrigins, ",") {
		add(p)
	}

	if c.OriginsFile != "" {
		data, err := os.ReadFile(c.OriginsFile)
		if err != nil {
			return nil, fmt.Errorf("reading origins file: %w", err)
		}

		var f originsFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing origins file: %w", err)
		}

		for _, p := range f.Origins {
			add(p)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no origin patterns configured")
	}

	return out, nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
