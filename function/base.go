package function

import (
	"unsafe"

	"github.com/on-the-ground/funcbox/function/internal/vtable"
)

// noCopy makes go vet's copylocks check flag containers copied by plain
// assignment. Containers must be copied with CopyFrom or moved with MoveFrom.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// base is the type-erasing core shared by every container: one table, one
// location tag, one external block pointer and one inline buffer.
//
// Invariants:
//   - loc == Absent exactly when vt == nil;
//   - loc == Inline means the payload lives in this container's own buf;
//   - ext is non-nil exactly when loc == External;
//   - buf is all zero unless loc == Inline.
type base[A, R any] struct {
	_   noCopy
	vt  *vtable.Table[A, R]
	loc vtable.Location
	ext unsafe.Pointer
	buf vtable.Storage
}

func (b *base[A, R]) erased() *base[A, R] { return b }

// table returns the active table, substituting the empty sentinel while the
// container holds nothing.
func (b *base[A, R]) table() *vtable.Table[A, R] {
	if b.vt == nil {
		return vtable.Empty[A, R]()
	}
	return b.vt
}

func (b *base[A, R]) object() unsafe.Pointer {
	switch b.loc {
	case vtable.Inline:
		return b.vt.Inline(&b.buf)
	case vtable.External:
		return b.ext
	default:
		return nil
	}
}

func (b *base[A, R]) commit(vt *vtable.Table[A, R], loc vtable.Location, obj unsafe.Pointer) {
	b.vt, b.loc, b.ext = vt, loc, nil
	if loc == vtable.External {
		b.ext = obj
	}
}

func (b *base[A, R]) clear() {
	if b.loc == vtable.Inline {
		b.buf.Clear()
	}
	b.vt, b.loc, b.ext = nil, vtable.Absent, nil
}

// Empty reports whether the container holds no payload.
func (b *base[A, R]) Empty() bool {
	return b.loc == vtable.Absent
}

// Valid is the negation of Empty.
func (b *base[A, R]) Valid() bool {
	return !b.Empty()
}

// Location reports where the payload is stored.
func (b *base[A, R]) Location() Location {
	return b.loc
}

// Reset destroys the payload, if any, and leaves the container empty.
func (b *base[A, R]) Reset() {
	if b.loc == vtable.Absent {
		return
	}
	b.vt.Delete(b.object(), b.loc, &b.buf)
	b.vt, b.loc, b.ext = nil, vtable.Absent, nil
}

// Call invokes the payload. Calling an empty container panics with an error
// matching ErrEmptyFunction.
func (b *base[A, R]) Call(args A) R {
	return b.table().Invoke(b.object(), args)
}

// Invoke is like Call but reports an empty container as ErrEmptyFunction
// instead of panicking.
func (b *base[A, R]) Invoke(args A) (R, error) {
	if b.Empty() {
		var zero R
		return zero, ErrEmptyFunction
	}
	return b.vt.Invoke(b.object(), args), nil
}

// Address returns the payload's entry point. It is zero unless the module is
// built with the funcbox_diagnostics tag.
func (b *base[A, R]) Address() uintptr {
	return b.table().Address(b.object())
}

// Annotation returns a description of the payload for tracing. It is empty
// unless the module is built with the funcbox_diagnostics tag.
func (b *base[A, R]) Annotation() string {
	return b.table().Annotation(b.object())
}

// copyFrom makes b hold an independent copy of src's payload.
//
// If the copy panics, b is left empty and the panic propagates.
func (b *base[A, R]) copyFrom(src *base[A, R]) {
	if b == src {
		return
	}
	if src.Empty() {
		b.Reset()
		return
	}

	if b.vt == src.vt {
		// same type: rebuild in place without touching the allocation
		obj := b.object()
		b.vt.Destruct(obj)
		done := false
		defer func() {
			if !done {
				b.clear()
			}
		}()
		b.vt.Copy(obj, src.object())
		done = true
		return
	}

	b.Reset()
	loc, obj := src.vt.Reserve(&b.buf)
	done := false
	defer func() {
		if !done {
			b.buf.Clear()
		}
	}()
	src.vt.Copy(obj, src.object())
	done = true
	b.commit(src.vt, loc, obj)
}

// moveFrom transfers src's payload to b in O(1) and leaves src empty.
func (b *base[A, R]) moveFrom(src *base[A, R]) {
	if b == src {
		return
	}
	b.Reset()
	b.vt, b.loc, b.ext, b.buf = src.vt, src.loc, src.ext, src.buf
	src.vt, src.loc, src.ext = nil, vtable.Absent, nil
	src.buf.Clear()
}

// swap exchanges the full state of b and o. Inline payloads travel with the
// buffer bytes; their addresses are derived from each container's own buffer.
func (b *base[A, R]) swap(o *base[A, R]) {
	if b == o {
		return
	}
	b.vt, o.vt = o.vt, b.vt
	b.loc, o.loc = o.loc, b.loc
	b.ext, o.ext = o.ext, b.ext
	b.buf, o.buf = o.buf, b.buf
}

// assign stores v in b, reusing b's storage when it already holds a T.
// A nil v empties b.
func assign[A, R any, T Callable[A, R]](b *base[A, R], v T) {
	vt := vtable.For[A, R, T]()
	if vt.Nilable() && *(*unsafe.Pointer)(unsafe.Pointer(&v)) == nil {
		b.Reset()
		return
	}

	if b.vt == vt {
		obj := b.object()
		vt.Destruct(obj)
		*(*T)(obj) = v
		return
	}

	b.Reset()
	loc, obj := vt.Reserve(&b.buf)
	*(*T)(obj) = v
	b.commit(vt, loc, obj)
}

// target returns b's payload as a T, if b holds exactly a T.
func target[T Callable[A, R], A, R any](b *base[A, R]) (*T, bool) {
	if b.Empty() || b.vt != vtable.For[A, R, T]() {
		return nil, false
	}
	return vtable.Get[T](b.object()), true
}
