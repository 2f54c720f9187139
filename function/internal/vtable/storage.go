package vtable

import (
	"reflect"
	"unsafe"
)

// Location tags where a container's payload currently lives.
type Location uint8

const (
	Absent Location = iota
	Inline
	External
)

func (l Location) String() string {
	switch l {
	case Absent:
		return "absent"
	case Inline:
		return "inline"
	case External:
		return "external"
	default:
		return "unknown"
	}
}

// Words is the inline capacity in machine words.
const Words = 3

// StorageSize is the inline capacity in bytes.
const StorageSize = Words * unsafe.Sizeof(uintptr(0))

// Storage is the inline buffer embedded in every container.
//
// The collector has to see every pointer a payload holds, so the buffer has
// one area typed as pointers and one typed as plain words. A payload made only
// of pointer words lives in ptrs, a payload with no pointers lives in words,
// anything mixed or larger goes to the heap.
type Storage struct {
	ptrs  [Words]unsafe.Pointer
	words [Words]uintptr
}

// shape says which inline area, if any, a payload type can live in.
type shape uint8

const (
	shapeExternal shape = iota
	shapeWords
	shapePointers
)

func (s *Storage) slot(sh shape) unsafe.Pointer {
	switch sh {
	case shapeWords:
		return unsafe.Pointer(&s.words)
	case shapePointers:
		return unsafe.Pointer(&s.ptrs)
	default:
		return nil
	}
}

// Clear drops whatever the buffer holds.
func (s *Storage) Clear() {
	*s = Storage{}
}

func shapeOf(t reflect.Type) shape {
	if t.Size() > StorageSize || uintptr(t.Align()) > unsafe.Alignof(uintptr(0)) {
		return shapeExternal
	}
	switch {
	case pointerFree(t):
		return shapeWords
	case pointerWords(t):
		return shapePointers
	default:
		return shapeExternal
	}
}

func pointerFree(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return t.Len() == 0 || pointerFree(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !pointerFree(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// pointerWords reports whether every word of t is a pointer the collector
// can follow. Interfaces count: both of their words are pointers.
func pointerWords(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Func, reflect.Map, reflect.Chan, reflect.Interface:
		return true
	case reflect.Array:
		return t.Len() > 0 && pointerWords(t.Elem())
	case reflect.Struct:
		if t.NumField() == 0 {
			return false
		}
		var next uintptr
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Offset != next || !pointerWords(f.Type) {
				return false
			}
			next = f.Offset + f.Type.Size()
		}
		return next == t.Size()
	default:
		return false
	}
}

// nilable reports whether the first word of t being nil means "no callable".
func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Chan, reflect.Interface:
		return true
	default:
		return false
	}
}
