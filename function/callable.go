package function

import (
	"github.com/on-the-ground/funcbox/function/internal/registry"
	"github.com/on-the-ground/funcbox/function/internal/vtable"
)

// Callable is implemented by every payload with signature (A) R.
// Several arguments are passed as one struct A.
type Callable[A, R any] interface {
	Call(A) R
}

// Func adapts a plain Go func to Callable. A nil Func assigns as empty.
type Func[A, R any] func(A) R

func (f Func[A, R]) Call(args A) R {
	return f(args)
}

// Cloner is implemented by payloads that need a deep copy when their
// container is copied. Clone is called on the source payload.
type Cloner[T any] interface {
	Clone() T
}

type (
	// Releaser is implemented by payloads that hold something to give back
	// when their container destroys them. Release runs exactly once per payload.
	Releaser = vtable.Releaser

	// Saver writes a payload into an archive.
	Saver = vtable.Saver

	// Loader rebuilds a payload from an archive. It is implemented on *T.
	Loader = vtable.Loader

	// Addresser and Annotator feed Address and Annotation in diagnostics builds.
	Addresser = vtable.Addresser
	Annotator = vtable.Annotator
)

// SerializableCallable is a payload that can be written to an archive.
type SerializableCallable[A, R any] interface {
	Callable[A, R]
	Saver
}

// Location tags where a container's payload is stored.
type Location = vtable.Location

const (
	Absent   = vtable.Absent
	Inline   = vtable.Inline
	External = vtable.External
)

// StorageSize is the inline buffer capacity in bytes: three machine words.
const StorageSize = vtable.StorageSize

var (
	// ErrEmptyFunction is the failure of calling a container that holds nothing.
	ErrEmptyFunction = vtable.ErrEmptyFunction

	// ErrUnknownType is returned when a stream names a type that was never
	// registered in this process.
	ErrUnknownType = registry.ErrUnknownType

	// ErrDuplicateName is returned when two types claim the same name.
	ErrDuplicateName = registry.ErrDuplicateName

	// ErrNameMismatch is returned when a type is registered under a second name.
	ErrNameMismatch = vtable.ErrNameMismatch
)
