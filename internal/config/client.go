package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/terraconstructs/estate/internal/roles"
)

// ClientConfig configures a process that embeds the authority.
type ClientConfig struct {
	// APIURL is the backend base URL.
	APIURL string `env:"ESTATE_API_URL" envDefault:"http://localhost:8080"`

	// AppOrigin is the application's own origin. Password-reset emails
	// redirect to <AppOrigin>/reset-password.
	AppOrigin string `env:"ESTATE_APP_ORIGIN" envDefault:"http://localhost:5173"`

	// StateDir holds device-local state: stored credentials and the
	// active-role preference. Defaults to ~/.estate.
	StateDir string `env:"ESTATE_STATE_DIR"`

	// RoleTieBreak picks the active role when the stored choice is no
	// longer assigned: "fetch_order" or "priority".
	RoleTieBreak string `env:"ESTATE_ROLE_TIEBREAK" envDefault:"fetch_order"`

	LogLevel  string `env:"ESTATE_LOG_LEVEL" envDefault:"warn"`
	LogFormat string `env:"ESTATE_LOG_FORMAT" envDefault:"text"`
}

// LoadClient parses the client configuration from the environment.
func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if _, err := url.ParseRequestURI(cfg.APIURL); err != nil {
		return nil, fmt.Errorf("ESTATE_API_URL must be an absolute URL: %w", err)
	}
	if _, err := url.ParseRequestURI(cfg.AppOrigin); err != nil {
		return nil, fmt.Errorf("ESTATE_APP_ORIGIN must be an absolute URL: %w", err)
	}
	cfg.AppOrigin = strings.TrimRight(cfg.AppOrigin, "/")

	switch cfg.RoleTieBreak {
	case "fetch_order", "priority":
	default:
		return nil, fmt.Errorf("ESTATE_ROLE_TIEBREAK must be fetch_order or priority, got %q", cfg.RoleTieBreak)
	}

	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		cfg.StateDir = filepath.Join(home, ".estate")
	}

	return &cfg, nil
}

// Logging adapts the client settings to the shared logging config.
func (c *ClientConfig) Logging() LoggingConfig {
	return LoggingConfig{Level: c.LogLevel, Format: c.LogFormat, Output: "stderr"}
}

// TieBreak returns the configured active-role tie-break.
func (c *ClientConfig) TieBreak() roles.TieBreak {
	if c.RoleTieBreak == "priority" {
		return roles.Priority
	}
	return roles.FetchOrder
}
