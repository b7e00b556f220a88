// ABOUTME: Zap logger construction from configuration
// ABOUTME: JSON output in production, console output in development
package config

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the application logger. Logs go to stderr so command
// output on stdout stays clean.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	return zc.Build(zap.Fields(zap.String("app", AppName)))
}
