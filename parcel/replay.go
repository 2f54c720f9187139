package parcel

import (
	"errors"
	"sync"

	ristretto "github.com/dgraph-io/ristretto/v2"
	"github.com/google/uuid"
)

// ErrReplayed is the result of a parcel whose id already ran.
var ErrReplayed = errors.New("parcel: replayed")

// ReplayGuard remembers the ids of parcels that already ran so a resent
// parcel is refused. It is a bounded cache: ids evicted under pressure are
// forgotten.
type ReplayGuard struct {
	mu    sync.Mutex
	cache *ristretto.Cache[string, struct{}]
}

// NewReplayGuard returns a guard remembering about size ids.
func NewReplayGuard(size int64) (*ReplayGuard, error) {
	if size <= 0 {
		size = 1
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, struct{}]{
		NumCounters:        size * 10,
		MaxCost:            size,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &ReplayGuard{cache: cache}, nil
}

// Claim records id and reports whether it was new.
func (g *ReplayGuard) Claim(id uuid.UUID) bool {
	key := id.String()

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.cache.Get(key); ok {
		return false
	}
	g.cache.Set(key, struct{}{}, 1)
	g.cache.Wait()
	return true
}

func (g *ReplayGuard) Close() {
	g.cache.Close()
}
