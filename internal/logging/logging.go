// Package logging builds the process-wide zap.Logger, the only logging
// facility used across this module: every package logs through an
// injected *zap.Logger rather than the standard log package.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-profile zap.Logger writing structured JSON to
// stdout at Info level, matching the profile the rest of this module
// expects to receive from its entrypoint.
func New() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg.OutputPaths = []string{"stdout"}
	return cfg.Build()
}

// NewAtLevel builds a logger at an explicit level (e.g. Debug) with the
// same production profile as New. cmd/scanner itself always uses New.
func NewAtLevel(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stdout"}
	return cfg.Build()
}
