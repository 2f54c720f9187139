package function

// Function is a copyable container for any Callable with signature (A) R.
// The zero value is empty and ready to use.
//
// A Function must not be copied by assignment once used; use CopyFrom,
// Clone or MoveFrom.
type Function[A, R any] struct {
	base[A, R]
}

// UniqueFunction is a move-only container for any Callable with signature
// (A) R. It has no copy operations.
type UniqueFunction[A, R any] struct {
	base[A, R]
}

// Container is implemented by every function container with signature (A) R.
type Container[A, R any] interface {
	erased() *base[A, R]
	Empty() bool
}

// New returns a Function holding v.
func New[A, R any, T Callable[A, R]](v T) *Function[A, R] {
	f := new(Function[A, R])
	assign(&f.base, v)
	return f
}

// NewUnique returns a UniqueFunction holding v.
func NewUnique[A, R any, T Callable[A, R]](v T) *UniqueFunction[A, R] {
	f := new(UniqueFunction[A, R])
	assign(&f.base, v)
	return f
}

// Assign replaces f's payload with v. If f already holds a T, its storage is
// reused. Assigning a nil func or pointer empties f.
func Assign[A, R any, T Callable[A, R]](f *Function[A, R], v T) {
	assign(&f.base, v)
}

// AssignUnique is Assign for a UniqueFunction.
func AssignUnique[A, R any, T Callable[A, R]](f *UniqueFunction[A, R], v T) {
	assign(&f.base, v)
}

// Target returns a pointer to f's payload if it is exactly a T.
// The pointer is invalidated by any later operation on f.
func Target[T Callable[A, R], A, R any](f Container[A, R]) (*T, bool) {
	return target[T](f.erased())
}

// CopyFrom makes f hold an independent copy of src's payload.
func (f *Function[A, R]) CopyFrom(src *Function[A, R]) {
	f.copyFrom(&src.base)
}

// Clone returns a new Function holding a copy of f's payload.
func (f *Function[A, R]) Clone() *Function[A, R] {
	c := new(Function[A, R])
	c.copyFrom(&f.base)
	return c
}

// MoveFrom takes src's payload without copying it and leaves src empty.
func (f *Function[A, R]) MoveFrom(src *Function[A, R]) {
	f.moveFrom(&src.base)
}

// Swap exchanges the payloads of f and other.
func (f *Function[A, R]) Swap(other *Function[A, R]) {
	f.swap(&other.base)
}

// MoveFrom takes src's payload without copying it and leaves src empty.
func (f *UniqueFunction[A, R]) MoveFrom(src *UniqueFunction[A, R]) {
	f.moveFrom(&src.base)
}

// Swap exchanges the payloads of f and other.
func (f *UniqueFunction[A, R]) Swap(other *UniqueFunction[A, R]) {
	f.swap(&other.base)
}
