// Package logging holds the process-wide zap logger used by funcbox
// packages. It logs nothing until a logger is installed.
package logging

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(zap.NewNop())
}

// L returns the installed logger.
func L() *zap.Logger {
	return current.Load()
}

// Set installs l and returns the logger it replaced. A nil l installs a no-op logger.
func Set(l *zap.Logger) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return current.Swap(l)
}

// NewConsole returns a debug-level console logger writing to stdout, for
// tests and examples.
func NewConsole() *zap.Logger {
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(os.Stdout),
		zap.DebugLevel,
	)
	return zap.New(consoleCore)
}
