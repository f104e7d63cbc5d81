package cmdutil

import (
	"context"
	"fmt"

	"github.com/terraconstructs/estate/internal/config"
	"github.com/terraconstructs/estate/internal/logging"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// NewLogger builds the service logger.
func NewLogger(cfg *config.Config) *logging.Logger {
	return logging.New(cfg.Logging, "estateapi", Version)
}

// OpenForCLI loads configuration and opens the backend for a one-shot
// operator command. Logs go to stderr so command output stays clean.
func OpenForCLI(ctx context.Context) (*Backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logCfg := cfg.Logging
	logCfg.Output = "stderr"
	if !cfg.Debug {
		logCfg.Level = "warn"
	}
	log := logging.New(logCfg, "estateapi", Version)
	return NewBackend(ctx, cfg, BackendOptions{Logger: log.Logger})
}
