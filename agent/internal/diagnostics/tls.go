package diagnostics

import "sync"

// LocalStorage is the explicit-handle analogue of ThreadLocalStorage<T>:
// Go has no implicit-current-goroutine storage, so callers carry the
// Handle returned by Registry.Spawn through context.Context themselves.
type LocalStorage[T any] struct {
	mu     sync.Mutex
	alloc  func() T
	values map[Handle]T
}

// NewLocalStorage creates storage that lazily allocates a T for each
// handle the first time Get observes it.
func NewLocalStorage[T any](alloc func() T) *LocalStorage[T] {
	return &LocalStorage[T]{alloc: alloc, values: make(map[Handle]T)}
}

// Get returns h's instance, allocating it on first access.
func (s *LocalStorage[T]) Get(h Handle) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[h]
	if !ok {
		v = s.alloc()
		s.values[h] = v
	}
	return v
}

// Dispose removes h's instance, invoking free on it if present.
func (s *LocalStorage[T]) Dispose(h Handle, free func(T)) {
	s.mu.Lock()
	v, ok := s.values[h]
	delete(s.values, h)
	s.mu.Unlock()
	if ok && free != nil {
		free(v)
	}
}
