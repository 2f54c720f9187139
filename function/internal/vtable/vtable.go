// Package vtable holds the per-type dispatch tables behind the function
// containers, and the storage decisions that go with them.
package vtable

import (
	"errors"
	"reflect"
	"unsafe"

	"github.com/on-the-ground/funcbox/function/internal/registry"
)

// ErrEmptyFunction is raised when an empty container is called.
var ErrEmptyFunction = errors.New("call of empty function")

// Releaser is implemented by payloads that need to run code when the
// container destroys them.
type Releaser interface {
	Release()
}

// Cloner is implemented by payloads whose copy must be deeper than Go
// assignment.
type Cloner[T any] interface {
	Clone() T
}

var releaserType = reflect.TypeFor[Releaser]()

// Table is the dispatch table for one payload type under one signature.
// Tables are built once and never modified; compare them by pointer.
type Table[A, R any] struct {
	typ     reflect.Type
	shape   shape
	nilable bool
	empty   bool

	invoke   func(obj unsafe.Pointer, args A) R
	copy     func(dst, src unsafe.Pointer)
	destruct func(obj unsafe.Pointer)
	alloc    func() unsafe.Pointer

	address  func(obj unsafe.Pointer) uintptr
	annotate func(obj unsafe.Pointer) string
}

type tableKey[A, R, T any] struct{}

type emptyKey[A, R any] struct{}

var tables registry.Singletons

// For returns the table for payload type T.
func For[A, R any, T interface{ Call(A) R }]() *Table[A, R] {
	key := any(tableKey[A, R, T]{})
	if v, ok := tables.Load(key); ok {
		return v.(*Table[A, R])
	}
	actual, _ := tables.Put(key, newTable[A, R, T]())
	return actual.(*Table[A, R])
}

// Empty returns the sentinel table used while a container holds nothing.
func Empty[A, R any]() *Table[A, R] {
	key := any(emptyKey[A, R]{})
	if v, ok := tables.Load(key); ok {
		return v.(*Table[A, R])
	}
	actual, _ := tables.Put(key, &Table[A, R]{
		empty: true,
		invoke: func(unsafe.Pointer, A) R {
			panic(ErrEmptyFunction)
		},
		copy:     func(_, _ unsafe.Pointer) {},
		destruct: func(unsafe.Pointer) {},
		alloc:    func() unsafe.Pointer { return nil },
		address:  func(unsafe.Pointer) uintptr { return 0 },
		annotate: func(unsafe.Pointer) string { return "" },
	})
	return actual.(*Table[A, R])
}

func newTable[A, R any, T interface{ Call(A) R }]() *Table[A, R] {
	typ := reflect.TypeFor[T]()
	ptrTyp := reflect.PointerTo(typ)

	t := &Table[A, R]{
		typ:     typ,
		shape:   shapeOf(typ),
		nilable: nilable(typ),
		invoke: func(obj unsafe.Pointer, args A) R {
			return (*(*T)(obj)).Call(args)
		},
		copy: func(dst, src unsafe.Pointer) {
			*(*T)(dst) = *(*T)(src)
		},
		destruct: func(obj unsafe.Pointer) {
			var zero T
			*(*T)(obj) = zero
		},
		alloc: func() unsafe.Pointer {
			return unsafe.Pointer(new(T))
		},
	}

	if ptrTyp.Implements(reflect.TypeFor[Cloner[T]]()) {
		t.copy = func(dst, src unsafe.Pointer) {
			*(*T)(dst) = any((*T)(src)).(Cloner[T]).Clone()
		}
	}
	if ptrTyp.Implements(releaserType) {
		t.destruct = func(obj unsafe.Pointer) {
			any((*T)(obj)).(Releaser).Release()
			var zero T
			*(*T)(obj) = zero
		}
	}

	t.address, t.annotate = describe[A, R, T](typ)
	return t
}

// Type returns the payload type, or nil for the empty sentinel.
func (t *Table[A, R]) Type() reflect.Type { return t.typ }

// IsEmpty reports whether t is the empty sentinel.
func (t *Table[A, R]) IsEmpty() bool { return t.empty }

// Nilable reports whether payload values can be nil, in which case the
// container treats them as the empty value.
func (t *Table[A, R]) Nilable() bool { return t.nilable }

// FitsInline reports whether payloads of this type are stored inline.
func (t *Table[A, R]) FitsInline() bool { return t.shape != shapeExternal }

func (t *Table[A, R]) Invoke(obj unsafe.Pointer, args A) R {
	return t.invoke(obj, args)
}

// Copy copy-constructs the payload at src into the raw storage at dst.
func (t *Table[A, R]) Copy(dst, src unsafe.Pointer) {
	t.copy(dst, src)
}

// Destruct runs the payload's release hook and clears it, leaving the
// storage in place for reuse.
func (t *Table[A, R]) Destruct(obj unsafe.Pointer) {
	t.destruct(obj)
}

// Reserve picks storage for a new payload: the matching inline area of buf
// when the type fits, a fresh heap block otherwise.
func (t *Table[A, R]) Reserve(buf *Storage) (Location, unsafe.Pointer) {
	if t.empty {
		return Absent, nil
	}
	if obj := buf.slot(t.shape); obj != nil {
		return Inline, obj
	}
	return External, t.alloc()
}

// Inline returns the address an inline payload of this type has in buf.
func (t *Table[A, R]) Inline(buf *Storage) unsafe.Pointer {
	return buf.slot(t.shape)
}

// Delete destructs the payload and releases its storage. External blocks are
// left to the collector once the caller drops its pointer.
func (t *Table[A, R]) Delete(obj unsafe.Pointer, loc Location, buf *Storage) {
	if loc == Absent {
		return
	}
	t.destruct(obj)
	if loc == Inline {
		buf.Clear()
	}
}

// Address returns the entry point of the payload, if known.
func (t *Table[A, R]) Address(obj unsafe.Pointer) uintptr {
	return t.address(obj)
}

// Annotation returns a human readable description of the payload.
func (t *Table[A, R]) Annotation(obj unsafe.Pointer) string {
	return t.annotate(obj)
}

// Get reinterprets obj as the payload type. The caller must have checked that
// the container's table is For[A, R, T].
func Get[T any](obj unsafe.Pointer) *T {
	return (*T)(obj)
}
