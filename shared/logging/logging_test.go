package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/on-the-ground/funcbox/shared/logging"
)

func TestSet_ReturnsPreviousAndNilInstallsNop(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := zap.New(core)

	prev := logging.Set(l)
	defer logging.Set(prev)

	logging.L().Info("hello")
	assert.Equal(t, 1, logs.FilterMessage("hello").Len())

	assert.Same(t, l, logging.Set(nil))
	logging.L().Info("dropped")
	assert.Equal(t, 0, logs.FilterMessage("dropped").Len())
}
