package trunkvers

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// LogLevelDebug logs every traversal decision
	LogLevelDebug = "debug"

	// LogLevelInfo sets the log level to info
	LogLevelInfo = "info"

	// LogLevelNone disables logging
	LogLevelNone = "none"
)

// NewLogger returns a zap logger writing to stderr at the given level.
func NewLogger(level string) (*zap.Logger, error) {
	if level == "" || level == LogLevelNone {
		return zap.NewNop(), nil
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func shortHash(h interface{ String() string }) string {
	s := h.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
