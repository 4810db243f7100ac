package arena

// PtrStore is a generic keyed table of pointers. The owner of a store is the
// only party allowed to Set/Remove; everyone else gets read access through
// Get and Each.
type PtrStore[K comparable, T any] struct {
	data map[K]*T
}

func NewPtrStore[K comparable, T any](capacity int) *PtrStore[K, T] {
	return &PtrStore[K, T]{
		data: make(map[K]*T, capacity),
	}
}

func (s *PtrStore[K, T]) Set(key K, v *T) {
	s.data[key] = v
}

func (s *PtrStore[K, T]) Get(key K) (*T, bool) {
	v, ok := s.data[key]
	return v, ok
}

// Remove deletes key and reports whether it was present.
func (s *PtrStore[K, T]) Remove(key K) bool {
	if _, ok := s.data[key]; !ok {
		return false
	}
	delete(s.data, key)
	return true
}

func (s *PtrStore[K, T]) Has(key K) bool {
	_, ok := s.data[key]
	return ok
}

func (s *PtrStore[K, T]) Len() int {
	return len(s.data)
}

// Each visits every entry in map order. fn must not Set or Remove.
func (s *PtrStore[K, T]) Each(fn func(K, *T)) {
	for k, v := range s.data {
		fn(k, v)
	}
}

// Keys returns a snapshot of the keys, safe to use while mutating the store.
func (s *PtrStore[K, T]) Keys() []K {
	keys := make([]K, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}
