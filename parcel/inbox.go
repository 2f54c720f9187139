package parcel

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	memdb "github.com/hashicorp/go-memdb"
	"go.uber.org/multierr"
)

const (
	inboxTable       = "parcel"
	inboxIDIndex     = "id"
	inboxDestination = "destination"
)

// ErrNoDestination is returned when an Inbox is given an unaddressed parcel.
var ErrNoDestination = errors.New("parcel: no destination")

// stored is one encoded parcel held by an Inbox.
type stored struct {
	ID          string
	Destination string
	Seq         uint64
	Frame       []byte
}

func inboxSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			inboxTable: {
				Name: inboxTable,
				Indexes: map[string]*memdb.IndexSchema{
					inboxIDIndex: {
						Name:    inboxIDIndex,
						Unique:  true,
						Indexer: &memdb.UUIDFieldIndex{Field: "ID"},
					},
					inboxDestination: {
						Name:    inboxDestination,
						Indexer: &memdb.StringFieldIndex{Field: "Destination"},
					},
				},
			},
		},
	}
}

// Inbox holds parcels in encoded form until their destination takes them.
// A parcel id is accepted once; resending it is a no-op.
type Inbox[A, R any] struct {
	db  *memdb.MemDB
	seq atomic.Uint64
}

func NewInbox[A, R any]() (*Inbox[A, R], error) {
	db, err := memdb.NewMemDB(inboxSchema())
	if err != nil {
		return nil, err
	}
	return &Inbox[A, R]{db: db}, nil
}

// Put stores an encoded copy of p. It reports false if p's id is already
// held. p keeps its action.
func (in *Inbox[A, R]) Put(p *Parcel[A, R]) (inserted bool, err error) {
	if p.Destination == "" {
		return false, ErrNoDestination
	}
	var frame bytes.Buffer
	if err := Encode(&frame, p); err != nil {
		return false, err
	}

	txn := in.db.Txn(true)
	defer txn.Abort()

	old, err := txn.First(inboxTable, inboxIDIndex, p.ID.String())
	if err != nil {
		return false, err
	} else if old != nil {
		return false, nil
	}

	if err := txn.Insert(inboxTable, &stored{
		ID:          p.ID.String(),
		Destination: p.Destination,
		Seq:         in.seq.Add(1),
		Frame:       frame.Bytes(),
	}); err != nil {
		return false, err
	}
	txn.Commit()
	return true, nil
}

// Take removes and decodes every parcel held for destination, in the order
// they were put. Parcels that fail to decode are dropped and their errors
// combined.
func (in *Inbox[A, R]) Take(destination string) ([]*Parcel[A, R], error) {
	txn := in.db.Txn(true)
	defer txn.Abort()

	it, err := txn.Get(inboxTable, inboxDestination, destination)
	if err != nil {
		return nil, err
	}
	var held []*stored
	for raw := it.Next(); raw != nil; raw = it.Next() {
		held = append(held, raw.(*stored))
	}
	for _, s := range held {
		if err := txn.Delete(inboxTable, s); err != nil {
			return nil, err
		}
	}
	txn.Commit()

	slices.SortFunc(held, func(a, b *stored) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		default:
			return 0
		}
	})

	out := make([]*Parcel[A, R], 0, len(held))
	var errs error
	for _, s := range held {
		p := new(Parcel[A, R])
		if err := Decode(bytes.NewReader(s.Frame), p); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("parcel %s: %w", s.ID, err))
			continue
		}
		out = append(out, p)
	}
	return out, errs
}

// Len returns the number of parcels held.
func (in *Inbox[A, R]) Len() int {
	txn := in.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(inboxTable, inboxIDIndex)
	if err != nil {
		return 0
	}
	n := 0
	for raw := it.Next(); raw != nil; raw = it.Next() {
		n++
	}
	return n
}
