// Package logging builds the process logger and provides helpers for keeping
// secrets out of log output.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New creates the root zap logger for the given environment. Deployed
// environments get JSON production output; everything else gets the
// human-readable development encoder.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "production", "staging":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %v", err)
	}
	return logger, nil
}
