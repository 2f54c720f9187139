package vtable

import (
	"reflect"
	"runtime"
	"unsafe"
)

// Addresser lets a payload report its own entry point to tracing tools.
type Addresser interface {
	FunctionAddress() uintptr
}

// Annotator lets a payload describe itself to tracing tools.
type Annotator interface {
	Annotation() string
}

var (
	addresserType = reflect.TypeFor[Addresser]()
	annotatorType = reflect.TypeFor[Annotator]()
)

// describe builds the introspection entries of a table. Without the
// funcbox_diagnostics build tag they report nothing.
func describe[A, R, T any](typ reflect.Type) (func(unsafe.Pointer) uintptr, func(unsafe.Pointer) string) {
	if !diagnostics {
		return func(unsafe.Pointer) uintptr { return 0 },
			func(unsafe.Pointer) string { return "" }
	}

	ptrTyp := reflect.PointerTo(typ)

	address := func(unsafe.Pointer) uintptr { return 0 }
	switch {
	case ptrTyp.Implements(addresserType):
		address = func(obj unsafe.Pointer) uintptr {
			return any((*T)(obj)).(Addresser).FunctionAddress()
		}
	case typ.Kind() == reflect.Func:
		address = func(obj unsafe.Pointer) uintptr {
			return reflect.ValueOf(*(*T)(obj)).Pointer()
		}
	}

	annotate := func(unsafe.Pointer) string { return typ.String() }
	switch {
	case ptrTyp.Implements(annotatorType):
		annotate = func(obj unsafe.Pointer) string {
			return any((*T)(obj)).(Annotator).Annotation()
		}
	case typ.Kind() == reflect.Func:
		annotate = func(obj unsafe.Pointer) string {
			if fn := runtime.FuncForPC(address(obj)); fn != nil {
				return fn.Name()
			}
			return typ.String()
		}
	}

	return address, annotate
}
