package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

var (
	ErrUnknownType   = errors.New("unknown serializable type")
	ErrDuplicateName = errors.New("serializable type name already registered")
)

const numShards = 16

// Registry maps stable type names to values. Each name is written once;
// readers never block writers of other names.
type Registry[V comparable] struct {
	shards [numShards]sync.Map
}

func shardOf(name string) int {
	return int(xxhash.Sum64String(name) % numShards)
}

// Register associates name with v. Registering the same (name, v) pair again
// is a no-op; registering a different value under a taken name fails.
func (r *Registry[V]) Register(name string, v V) error {
	actual, loaded := r.shards[shardOf(name)].LoadOrStore(name, v)
	if loaded && actual.(V) != v {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	return nil
}

// Resolve returns the value registered under name.
func (r *Registry[V]) Resolve(name string) (V, error) {
	raw, ok := r.shards[shardOf(name)].Load(name)
	if !ok {
		var zero V
		return zero, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return raw.(V), nil
}

// Names returns the registered names in sorted order.
func (r *Registry[V]) Names() []string {
	var names []string
	for i := range r.shards {
		r.shards[i].Range(func(k, _ any) bool {
			names = append(names, k.(string))
			return true
		})
	}
	sort.Strings(names)
	return names
}

// Singletons lazily creates one value per key and returns the same value on
// every later call. Keys are expected to be zero-size marker types, which
// box into an interface without allocating.
type Singletons struct {
	m sync.Map
}

func (s *Singletons) Load(key any) (any, bool) {
	return s.m.Load(key)
}

// Get returns the value for key, building it with newFn on first use.
// Concurrent first uses may each call newFn, but only one result is kept.
func (s *Singletons) Get(key any, newFn func() any) any {
	if v, ok := s.m.Load(key); ok {
		return v
	}
	v, _ := s.m.LoadOrStore(key, newFn())
	return v
}

// Put stores v under key unless a value already exists, returning the value
// that ends up stored.
func (s *Singletons) Put(key any, v any) (actual any, stored bool) {
	actual, loaded := s.m.LoadOrStore(key, v)
	return actual, !loaded
}
