package rewrite

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/samber/lo"
)

// store is the subset of *lru.Cache used for bookkeeping.
type store[K comparable, V any] interface {
	Add(key K, value V) (evicted bool)
	Peek(key K) (value V, ok bool)
	Keys() []K
	Len() int
}

// newStore grows without bound when capacity <= 0.
func newStore[K comparable, V any](capacity int) store[K, V] {
	if capacity <= 0 {
		return &mapStore[K, V]{m: make(map[K]V)}
	}
	c, err := lru.New[K, V](capacity)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return c
}

type mapStore[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

func (s *mapStore[K, V]) Add(key K, value V) bool {
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
	return false
}

func (s *mapStore[K, V]) Peek(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *mapStore[K, V]) Keys() []K {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Keys(s.m)
}

func (s *mapStore[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
