package function

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/on-the-ground/funcbox/archive"
	"github.com/on-the-ground/funcbox/function/internal/vtable"
)

// serialBase adds the serial table of the current payload to base. serial is
// non-nil exactly when the container is not empty.
type serialBase[A, R any] struct {
	base[A, R]
	serial *vtable.SerialTable[A, R]
}

// SerializableFunction is a copyable Function whose payload can be saved to
// an archive and loaded back as its original concrete type.
type SerializableFunction[A, R any] struct {
	serialBase[A, R]
}

// SerializableUniqueFunction is the move-only form of SerializableFunction.
type SerializableUniqueFunction[A, R any] struct {
	serialBase[A, R]
}

func (s *serialBase[A, R]) Reset() {
	s.base.Reset()
	s.serial = nil
}

func (s *serialBase[A, R]) copyFrom(src *serialBase[A, R]) {
	if s == src {
		return
	}
	s.serial = nil
	s.base.copyFrom(&src.base)
	if s.Valid() {
		s.serial = src.serial
	}
}

func (s *serialBase[A, R]) moveFrom(src *serialBase[A, R]) {
	if s == src {
		return
	}
	s.base.moveFrom(&src.base)
	s.serial, src.serial = src.serial, nil
}

func (s *serialBase[A, R]) swap(o *serialBase[A, R]) {
	s.base.swap(&o.base)
	s.serial, o.serial = o.serial, s.serial
}

// Name returns the registered name of the payload type, or "" when empty.
func (s *serialBase[A, R]) Name() string {
	if s.serial == nil {
		return ""
	}
	return s.serial.Name()
}

// Save writes the container to ar: an emptiness flag, then the payload's
// type name and the payload's own representation.
func (s *serialBase[A, R]) Save(ar *archive.Output, version uint32) error {
	isEmpty := s.Empty()
	if err := ar.WriteBool(isEmpty); err != nil {
		return err
	}
	if isEmpty {
		return nil
	}
	if err := ar.WriteString(s.serial.Name()); err != nil {
		return err
	}
	return s.serial.SaveObject(s.object(), ar, version)
}

// Load replaces the container's payload with one read from ar. On any error
// the container is left empty; a type name unknown to this process fails with
// ErrUnknownType.
func (s *serialBase[A, R]) Load(ar *archive.Input, version uint32) error {
	s.Reset()

	isEmpty, err := ar.ReadBool()
	if err != nil {
		return err
	}
	if isEmpty {
		return nil
	}

	name, err := ar.ReadString()
	if err != nil {
		return err
	}
	st, err := vtable.Resolve[A, R](name)
	if err != nil {
		return err
	}

	loc, obj, err := st.LoadObject(&s.buf, ar, version)
	if err != nil {
		return err
	}
	s.commit(st.Table(), loc, obj)
	s.serial = st
	return nil
}

// MarshalBinary saves the container with archive.DefaultVersion.
func (s *serialBase[A, R]) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Save(archive.NewOutput(&buf), archive.DefaultVersion); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary loads the container with archive.DefaultVersion.
func (s *serialBase[A, R]) UnmarshalBinary(data []byte) error {
	return s.Load(archive.NewInput(bytes.NewReader(data)), archive.DefaultVersion)
}

func assignSerializable[A, R any, T SerializableCallable[A, R], PT interface {
	*T
	Loader
}](s *serialBase[A, R], v T) {
	st, err := vtable.Serial[A, R, T, PT]()
	if err != nil {
		panic(fmt.Errorf("function: assign %s: %w", reflect.TypeFor[T](), err))
	}
	assign(&s.base, v)
	if s.Empty() {
		s.serial = nil
		return
	}
	s.serial = st
}

// NewSerializable returns a SerializableFunction holding v.
func NewSerializable[A, R any, T SerializableCallable[A, R], PT interface {
	*T
	Loader
}](v T) *SerializableFunction[A, R] {
	f := new(SerializableFunction[A, R])
	assignSerializable[A, R, T, PT](&f.serialBase, v)
	return f
}

// NewSerializableUnique returns a SerializableUniqueFunction holding v.
func NewSerializableUnique[A, R any, T SerializableCallable[A, R], PT interface {
	*T
	Loader
}](v T) *SerializableUniqueFunction[A, R] {
	f := new(SerializableUniqueFunction[A, R])
	assignSerializable[A, R, T, PT](&f.serialBase, v)
	return f
}

// AssignSerializable replaces f's payload with v. The first use of T
// registers it under its default name; it panics if that name is taken by
// another type.
func AssignSerializable[A, R any, T SerializableCallable[A, R], PT interface {
	*T
	Loader
}](f *SerializableFunction[A, R], v T) {
	assignSerializable[A, R, T, PT](&f.serialBase, v)
}

// AssignSerializableUnique is AssignSerializable for a SerializableUniqueFunction.
func AssignSerializableUnique[A, R any, T SerializableCallable[A, R], PT interface {
	*T
	Loader
}](f *SerializableUniqueFunction[A, R], v T) {
	assignSerializable[A, R, T, PT](&f.serialBase, v)
}

// Register makes T loadable under its default name without constructing one.
// Processes that only receive T must register it before loading.
func Register[A, R any, T SerializableCallable[A, R], PT interface {
	*T
	Loader
}]() error {
	_, err := vtable.Serial[A, R, T, PT]()
	return err
}

// RegisterName registers T under a custom name, which must happen before the
// first use of T.
func RegisterName[A, R any, T SerializableCallable[A, R], PT interface {
	*T
	Loader
}](name string) error {
	_, err := vtable.RegisterSerial[A, R, T, PT](name)
	return err
}

// MustRegister is the panic-on-failure variant of Register.
func MustRegister[A, R any, T SerializableCallable[A, R], PT interface {
	*T
	Loader
}]() {
	if err := Register[A, R, T, PT](); err != nil {
		panic(err)
	}
}

// RegisteredNames returns the names loadable for signature (A) R.
func RegisteredNames[A, R any]() []string {
	return vtable.Names[A, R]().Names()
}

// CopyFrom makes f hold an independent copy of src's payload.
func (f *SerializableFunction[A, R]) CopyFrom(src *SerializableFunction[A, R]) {
	f.copyFrom(&src.serialBase)
}

// Clone returns a new SerializableFunction holding a copy of f's payload.
func (f *SerializableFunction[A, R]) Clone() *SerializableFunction[A, R] {
	c := new(SerializableFunction[A, R])
	c.copyFrom(&f.serialBase)
	return c
}

// MoveFrom takes src's payload without copying it and leaves src empty.
func (f *SerializableFunction[A, R]) MoveFrom(src *SerializableFunction[A, R]) {
	f.moveFrom(&src.serialBase)
}

// Swap exchanges the payloads of f and other.
func (f *SerializableFunction[A, R]) Swap(other *SerializableFunction[A, R]) {
	f.swap(&other.serialBase)
}

// MoveFrom takes src's payload without copying it and leaves src empty.
func (f *SerializableUniqueFunction[A, R]) MoveFrom(src *SerializableUniqueFunction[A, R]) {
	f.moveFrom(&src.serialBase)
}

// Swap exchanges the payloads of f and other.
func (f *SerializableUniqueFunction[A, R]) Swap(other *SerializableUniqueFunction[A, R]) {
	f.swap(&other.serialBase)
}
