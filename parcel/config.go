package parcel

import (
	"time"

	"go.uber.org/zap"

	"github.com/on-the-ground/funcbox/shared/logging"
)

type Config struct {
	BufferSize int // default: 1
	NumWorkers int // default: 1
}

func NewConfig(bufferSize int, numWorkers int) Config {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return Config{
		BufferSize: bufferSize,
		NumWorkers: numWorkers,
	}
}

type options struct {
	logger *zap.Logger
	now    func() time.Time
	guard  *ReplayGuard
}

// Option customizes a Dispatcher.
type Option func(*options)

// WithLogger sets the logger for dispatcher lifecycle events. The package
// logger installed with function.SetLogger is used otherwise.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithReplayGuard makes the dispatcher refuse parcels whose id g has seen.
func WithReplayGuard(g *ReplayGuard) Option {
	return func(o *options) {
		o.guard = g
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger: logging.L(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
