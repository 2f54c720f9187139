// Package parcel carries serializable functions across a process boundary.
//
// A Parcel pairs a move-only serializable function with an id, the name of
// the destination that should run it, and the time span during which running
// it still makes sense. Parcels are framed on the wire so that a batch with
// one bad parcel can still be read past it.
package parcel

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rickb777/date/v2/timespan"
	"go.uber.org/multierr"

	"github.com/on-the-ground/funcbox/archive"
	"github.com/on-the-ground/funcbox/function"
)

// Version is the archive version parcels are written with.
const Version uint32 = 1

// ErrMalformed is returned when a frame decodes but its header does not.
var ErrMalformed = errors.New("parcel: malformed header")

// Parcel is a unit of work addressed to a destination.
//
// The Action is move-only, so a Parcel must be passed by pointer.
type Parcel[A, R any] struct {
	ID          uuid.UUID
	Destination string
	// Validity bounds when the action may run. A zero-length span never
	// expires.
	Validity timespan.TimeSpan
	Action   function.SerializableUniqueFunction[A, R]
}

// New returns a parcel with a fresh id that takes ownership of action.
func New[A, R any](destination string, validity timespan.TimeSpan, action *function.SerializableUniqueFunction[A, R]) *Parcel[A, R] {
	p := &Parcel[A, R]{
		ID:          uuid.New(),
		Destination: destination,
		Validity:    validity,
	}
	if action != nil {
		p.Action.MoveFrom(action)
	}
	return p
}

// ValidFor returns the span from now until d has elapsed.
func ValidFor(d time.Duration) timespan.TimeSpan {
	now := time.Now()
	return timespan.BetweenTimes(now, now.Add(d))
}

// PartitionKey keeps parcels for one destination on one worker.
func (p *Parcel[A, R]) PartitionKey() string {
	return p.Destination
}

// Bounded reports whether the parcel has an expiry.
func (p *Parcel[A, R]) Bounded() bool {
	return p.Validity.Duration() != 0
}

// Expired reports whether at is outside the parcel's validity.
func (p *Parcel[A, R]) Expired(at time.Time) bool {
	return p.Bounded() && !p.Validity.Contains(at)
}

// take moves p into a new parcel, leaving p's action empty.
func (p *Parcel[A, R]) take() *Parcel[A, R] {
	owned := &Parcel[A, R]{
		ID:          p.ID,
		Destination: p.Destination,
		Validity:    p.Validity,
	}
	owned.Action.MoveFrom(&p.Action)
	return owned
}

func (p *Parcel[A, R]) save(ar *archive.Output) error {
	if err := ar.Write(p.ID[:]); err != nil {
		return err
	}
	if err := ar.WriteString(p.Destination); err != nil {
		return err
	}
	bounded := p.Bounded()
	if err := ar.WriteBool(bounded); err != nil {
		return err
	}
	if bounded {
		if err := ar.Write(p.Validity.Start().UnixNano()); err != nil {
			return err
		}
		if err := ar.Write(p.Validity.End().UnixNano()); err != nil {
			return err
		}
	}
	return p.Action.Save(ar, Version)
}

func (p *Parcel[A, R]) load(ar *archive.Input) error {
	p.Action.Reset()

	var raw []byte
	if err := ar.Read(&raw); err != nil {
		return err
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return fmt.Errorf("%w: id: %v", ErrMalformed, err)
	}
	dest, err := ar.ReadString()
	if err != nil {
		return err
	}
	bounded, err := ar.ReadBool()
	if err != nil {
		return err
	}
	var validity timespan.TimeSpan
	if bounded {
		var start, end int64
		if err := ar.Read(&start); err != nil {
			return err
		}
		if err := ar.Read(&end); err != nil {
			return err
		}
		if end < start {
			return fmt.Errorf("%w: validity ends before it starts", ErrMalformed)
		}
		validity = timespan.BetweenTimes(time.Unix(0, start), time.Unix(0, end))
	}

	p.ID, p.Destination, p.Validity = id, dest, validity
	if err := p.Action.Load(ar, Version); err != nil {
		return fmt.Errorf("parcel %s: %w", id, err)
	}
	return nil
}

// Encode writes p to w as one frame.
func Encode[A, R any](w io.Writer, p *Parcel[A, R]) error {
	var body bytes.Buffer
	if err := p.save(archive.NewOutput(&body)); err != nil {
		return fmt.Errorf("parcel %s: %w", p.ID, err)
	}
	return archive.NewOutput(w).Write(body.Bytes())
}

// Decode reads one frame from r into p. On error p's action is empty.
func Decode[A, R any](r io.Reader, p *Parcel[A, R]) error {
	return decodeFrame(archive.NewInput(r), p)
}

func decodeFrame[A, R any](in *archive.Input, p *Parcel[A, R]) error {
	var frame []byte
	if err := in.Read(&frame); err != nil {
		p.Action.Reset()
		return err
	}
	return p.load(archive.NewInput(bytes.NewReader(frame)))
}

// DecodeAll reads n frames from r. Parcels that fail to decode are skipped
// and their errors combined; a broken frame stops the batch.
func DecodeAll[A, R any](r io.Reader, n int) ([]*Parcel[A, R], error) {
	in := archive.NewInput(r)
	out := make([]*Parcel[A, R], 0, n)
	var errs error
	for i := 0; i < n; i++ {
		var frame []byte
		if err := in.Read(&frame); err != nil {
			return out, multierr.Append(errs, fmt.Errorf("frame %d: %w", i, err))
		}
		p := new(Parcel[A, R])
		if err := p.load(archive.NewInput(bytes.NewReader(frame))); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("frame %d: %w", i, err))
			continue
		}
		out = append(out, p)
	}
	return out, errs
}
