package vtable

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/on-the-ground/funcbox/archive"
	"github.com/on-the-ground/funcbox/function/internal/registry"
	"github.com/on-the-ground/funcbox/shared/logging"
)

// ErrNameMismatch is returned when a type is registered under a second name.
var ErrNameMismatch = errors.New("serializable type already registered under another name")

// Saver writes a payload's own representation.
type Saver interface {
	SaveObject(ar *archive.Output, version uint32) error
}

// Loader rebuilds a payload from the representation its Saver wrote.
type Loader interface {
	LoadObject(ar *archive.Input, version uint32) error
}

// SerialTable extends a Table with a stable name and the save/load entries.
type SerialTable[A, R any] struct {
	name  string
	table *Table[A, R]
	save  func(obj unsafe.Pointer, ar *archive.Output, version uint32) error
	load  func(obj unsafe.Pointer, ar *archive.Input, version uint32) error
}

func (st *SerialTable[A, R]) Name() string { return st.name }

func (st *SerialTable[A, R]) Table() *Table[A, R] { return st.table }

func (st *SerialTable[A, R]) SaveObject(obj unsafe.Pointer, ar *archive.Output, version uint32) error {
	return st.save(obj, ar, version)
}

// LoadObject reserves storage in buf (or on the heap) and rebuilds a payload
// into it. On failure the storage is released and Absent is returned.
func (st *SerialTable[A, R]) LoadObject(buf *Storage, ar *archive.Input, version uint32) (Location, unsafe.Pointer, error) {
	loc, obj := st.table.Reserve(buf)
	if err := st.load(obj, ar, version); err != nil {
		if loc == Inline {
			buf.Clear()
		}
		return Absent, nil, fmt.Errorf("load %s: %w", st.name, err)
	}
	return loc, obj, nil
}

type serialKey[A, R, T any] struct{}

type namesKey[A, R any] struct{}

var (
	serials registry.Singletons
	names   registry.Singletons

	// registerMu serializes first registrations; lookups never take it.
	registerMu sync.Mutex
)

// Names returns the name registry for signature (A) R.
func Names[A, R any]() *registry.Registry[*SerialTable[A, R]] {
	return names.Get(namesKey[A, R]{}, func() any {
		return &registry.Registry[*SerialTable[A, R]]{}
	}).(*registry.Registry[*SerialTable[A, R]])
}

// Resolve looks up a serial table by the name found in a stream.
func Resolve[A, R any](name string) (*SerialTable[A, R], error) {
	st, err := Names[A, R]().Resolve(name)
	if err != nil {
		logging.L().Debug("unresolved serializable type", zap.String("name", name), zap.Error(err))
		return nil, err
	}
	return st, nil
}

// Serial returns the serial table of T, registering T under its default
// name on first use.
func Serial[A, R any, T interface {
	Call(A) R
	Saver
}, PT interface {
	*T
	Loader
}]() (*SerialTable[A, R], error) {
	if v, ok := serials.Load(any(serialKey[A, R, T]{})); ok {
		return v.(*SerialTable[A, R]), nil
	}
	return RegisterSerial[A, R, T, PT](DefaultName(reflect.TypeFor[T]()))
}

// RegisterSerial registers T under name. Registering the same type under the
// same name again returns the existing table.
func RegisterSerial[A, R any, T interface {
	Call(A) R
	Saver
}, PT interface {
	*T
	Loader
}](name string) (*SerialTable[A, R], error) {
	key := any(serialKey[A, R, T]{})

	registerMu.Lock()
	defer registerMu.Unlock()

	if v, ok := serials.Load(key); ok {
		st := v.(*SerialTable[A, R])
		if st.name != name {
			return nil, fmt.Errorf("%w: %s is %q, not %q", ErrNameMismatch, reflect.TypeFor[T](), st.name, name)
		}
		return st, nil
	}

	st := &SerialTable[A, R]{
		name:  name,
		table: For[A, R, T](),
		save: func(obj unsafe.Pointer, ar *archive.Output, version uint32) error {
			return (*(*T)(obj)).SaveObject(ar, version)
		},
		load: func(obj unsafe.Pointer, ar *archive.Input, version uint32) error {
			return PT((*T)(obj)).LoadObject(ar, version)
		},
	}

	// Claim the name before publishing the type so a name clash leaves
	// nothing behind.
	if err := Names[A, R]().Register(name, st); err != nil {
		return nil, err
	}
	serials.Put(key, st)
	logging.L().Debug("registered serializable type",
		zap.String("name", name),
		zap.Stringer("type", st.table.typ),
	)
	return st, nil
}

// DefaultName returns the stable name used for t when none was registered.
func DefaultName(t reflect.Type) string {
	if t.Kind() == reflect.Pointer && t.Name() == "" {
		return "*" + DefaultName(t.Elem())
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}
