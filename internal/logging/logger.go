// Package logging configures the shared zap logger. Components that only
// need a Printf-shaped sink (the HTTP server, the auto-save loop) get one
// via NewPrintf so they stay decoupled from zap.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the production logger. Debug mode switches to the development
// encoder and lowers the level.
func New(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build logger: %w", err)
	}
	return logger, nil
}

// Printf is the minimal logging contract shared across packages.
type Printf interface {
	Printf(format string, args ...any)
}

// printfAdapter forwards Printf calls to a zap SugaredLogger.
type printfAdapter struct {
	sugar *zap.SugaredLogger
}

// NewPrintf adapts a zap logger to the Printf interface.
func NewPrintf(logger *zap.Logger) Printf {
	return printfAdapter{sugar: logger.Sugar()}
}

func (a printfAdapter) Printf(format string, args ...any) {
	a.sugar.Infof(format, args...)
}

// Nop returns a Printf that discards everything.
func Nop() Printf {
	return printfAdapter{sugar: zap.NewNop().Sugar()}
}
