package parcel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrExpired is the result of a parcel that arrived outside its validity.
	ErrExpired = errors.New("parcel: expired")

	// ErrClosed is the result of a parcel dispatched to, or still queued in,
	// a closed Dispatcher.
	ErrClosed = errors.New("parcel: dispatcher closed")

	// ErrPanicked wraps a panic raised by a parcel's action.
	ErrPanicked = errors.New("parcel: action panicked")
)

// Result is what running one parcel produced.
type Result[R any] struct {
	ParcelID uuid.UUID
	Value    R
	Err      error
}

type job[A, R any] struct {
	parcel   *Parcel[A, R]
	args     A
	resumeCh chan Result[R]
}

// Dispatcher runs parcels on a fixed set of workers. Parcels with the same
// destination always go to the same worker and run in dispatch order.
type Dispatcher[A, R any] struct {
	ID string

	chs    []chan job[A, R]
	cancel context.CancelFunc
	stop   chan struct{}
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	logger *zap.Logger
	now    func() time.Time
	guard  *ReplayGuard
}

// NewDispatcher starts cfg.NumWorkers workers that live until Close is
// called or ctx is done.
func NewDispatcher[A, R any](ctx context.Context, cfg Config, opts ...Option) *Dispatcher[A, R] {
	cfg = NewConfig(cfg.BufferSize, cfg.NumWorkers)
	o := newOptions(opts)
	ctx, cancel := context.WithCancel(ctx)

	d := &Dispatcher[A, R]{
		ID:     uuid.New().String(),
		chs:    make([]chan job[A, R], cfg.NumWorkers),
		cancel: cancel,
		stop:   make(chan struct{}),
		now:    o.now,
		guard:  o.guard,
	}
	d.logger = o.logger.With(zap.String("dispatcher", d.ID))

	ready := sync.WaitGroup{}
	for i := range d.chs {
		ch := make(chan job[A, R], cfg.BufferSize)
		d.chs[i] = ch
		ready.Add(1)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			ready.Done()
			d.work(ch)
		}()
	}
	ready.Wait()

	go func() {
		<-ctx.Done()
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.stop)
		d.logger.Info("dispatcher closed")
	}()

	d.logger.Debug("dispatcher started",
		zap.Int("workers", cfg.NumWorkers),
		zap.Int("buffer_size", cfg.BufferSize),
	)
	return d
}

func (d *Dispatcher[A, R]) indexOf(p *Parcel[A, R]) int {
	if len(d.chs) == 1 {
		return 0
	}
	return int(xxhash.Sum64String(p.PartitionKey()) % uint64(len(d.chs)))
}

// Dispatch queues p to run with args and returns the channel its single
// Result will be sent on. The dispatcher takes p's action; p is left empty.
func (d *Dispatcher[A, R]) Dispatch(ctx context.Context, p *Parcel[A, R], args A) <-chan Result[R] {
	resumeCh := make(chan Result[R], 1)
	j := job[A, R]{parcel: p.take(), args: args, resumeCh: resumeCh}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.reply(j, Result[R]{ParcelID: j.parcel.ID, Err: ErrClosed})
		return resumeCh
	}

	select {
	case d.chs[d.indexOf(j.parcel)] <- j:
		d.logger.Debug("parcel dispatched",
			zap.Stringer("parcel", j.parcel.ID),
			zap.String("destination", j.parcel.Destination),
		)
	case <-ctx.Done():
		d.reply(j, Result[R]{ParcelID: j.parcel.ID, Err: ctx.Err()})
	}
	return resumeCh
}

// Run dispatches p and waits for its result. p is not taken if ctx is
// already done.
func (d *Dispatcher[A, R]) Run(ctx context.Context, p *Parcel[A, R], args A) (R, error) {
	id := p.ID
	if err := ctx.Err(); err != nil {
		var zero R
		return zero, fmt.Errorf("parcel %s: %w", id, err)
	}
	select {
	case res := <-d.Dispatch(ctx, p, args):
		return res.Value, res.Err
	case <-ctx.Done():
		var zero R
		return zero, fmt.Errorf("parcel %s: %w", id, ctx.Err())
	}
}

// Close stops the workers and waits for them. Parcels still queued get
// ErrClosed.
func (d *Dispatcher[A, R]) Close() {
	d.cancel()
	d.wg.Wait()
}

func (d *Dispatcher[A, R]) work(ch chan job[A, R]) {
	for {
		select {
		case j := <-ch:
			d.reply(j, d.run(j))
		case <-d.stop:
			d.drain(ch)
			return
		}
	}
}

// drain answers whatever was queued before the dispatcher closed. No sends
// can happen once closed is set, so the buffer only shrinks here.
func (d *Dispatcher[A, R]) drain(ch chan job[A, R]) {
	for {
		select {
		case j := <-ch:
			d.reply(j, Result[R]{ParcelID: j.parcel.ID, Err: ErrClosed})
		default:
			return
		}
	}
}

func (d *Dispatcher[A, R]) run(j job[A, R]) (res Result[R]) {
	p := j.parcel
	res.ParcelID = p.ID
	log := d.logger.With(
		zap.Stringer("parcel", p.ID),
		zap.String("destination", p.Destination),
	)

	if p.Expired(d.now()) {
		log.Warn("parcel expired",
			zap.Time("valid_from", p.Validity.Start()),
			zap.Time("valid_until", p.Validity.End()),
		)
		res.Err = ErrExpired
		return
	}

	if d.guard != nil && !d.guard.Claim(p.ID) {
		log.Warn("parcel replayed")
		res.Err = ErrReplayed
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("parcel action panicked", zap.Any("panic", r))
			res.Err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
	}()

	res.Value, res.Err = p.Action.Invoke(j.args)
	if res.Err != nil {
		log.Debug("parcel failed", zap.Error(res.Err))
		return
	}
	log.Debug("parcel done", zap.String("action", p.Action.Name()))
	return
}

func (d *Dispatcher[A, R]) reply(j job[A, R], res Result[R]) {
	j.parcel.Action.Reset()
	j.resumeCh <- res
	close(j.resumeCh)
}
