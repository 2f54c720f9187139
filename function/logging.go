package function

import (
	"go.uber.org/zap"

	"github.com/on-the-ground/funcbox/shared/logging"
)

// SetLogger installs the logger used for registry events and returns the
// previous one. Nothing is logged until a logger is installed.
func SetLogger(l *zap.Logger) *zap.Logger {
	return logging.Set(l)
}
