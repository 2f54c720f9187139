// Package function provides value-type containers that erase the concrete
// type of a callable while keeping its call signature.
//
// A container holds at most one payload: any value with a method
// Call(A) R. Small payloads live in an inline buffer of StorageSize bytes
// inside the container; larger ones get a heap block owned by exactly one
// container.
//
// # Containers
//
//   - Function: copyable (CopyFrom, Clone), movable, swappable.
//   - UniqueFunction: movable and swappable, never copyable.
//   - SerializableFunction, SerializableUniqueFunction: as above, plus Save
//     and Load against an archive. The payload is written with its
//     registered type name and rebuilt as that concrete type on load.
//
// Containers are values but must not be copied by assignment once used;
// go vet reports such copies. The zero value is an empty container.
//
// # Calling
//
// Call panics with an error matching ErrEmptyFunction when the container is
// empty; Invoke returns that error instead. Several arguments are passed as a
// single struct:
//
//	type pair struct{ X, Y int }
//	type add struct{}
//
//	func (add) Call(p pair) int { return p.X + p.Y }
//
//	f := function.New[pair, int](add{})
//	f.Call(pair{1, 2}) // 3
//
// # Serialization
//
// A serializable payload implements SaveObject on its value and LoadObject on
// its pointer. The first assignment of a payload type registers it by name; a
// process that only loads a type registers it up front with Register or
// RegisterName. Loading a name that was never registered fails with
// ErrUnknownType and leaves the container empty.
//
// Containers are not safe for concurrent mutation.
package function
