package cmap

import "iter"

// Range calls fn for every pair until fn returns false. fn runs under the
// shard's read lock and must not modify the map.
func (m *Map[V]) Range(fn func(key string, value V) bool) {
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.items {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// All returns an iterator over a copy of each shard, so the loop body may
// modify the map.
func (m *Map[V]) All() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		for _, s := range m.shards {
			s.mu.RLock()
			keys := make([]string, 0, len(s.items))
			vals := make([]V, 0, len(s.items))
			for k, v := range s.items {
				keys = append(keys, k)
				vals = append(vals, v)
			}
			s.mu.RUnlock()

			for i := range keys {
				if !yield(keys[i], vals[i]) {
					return
				}
			}
		}
	}
}

// Keys returns all keys.
func (m *Map[V]) Keys() []string {
	keys := make([]string, 0, m.Count())
	m.Range(func(key string, _ V) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Values returns all values.
func (m *Map[V]) Values() []V {
	values := make([]V, 0, m.Count())
	m.Range(func(_ string, value V) bool {
		values = append(values, value)
		return true
	})
	return values
}

// GetOrSet returns the existing value for key, or stores value. loaded
// reports whether the value was already present.
func (m *Map[V]) GetOrSet(key string, value V) (actual V, loaded bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.items[key]; ok {
		return existing, true
	}
	s.items[key] = value
	return value, false
}

// ComputeIfAbsent returns the value for key, creating it with fn under the
// shard lock when absent. fn must not touch the map.
func (m *Map[V]) ComputeIfAbsent(key string, fn func() V) (actual V, created bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.items[key]; ok {
		return existing, false
	}
	v := fn()
	s.items[key] = v
	return v, true
}

// SetIfAbsent sets the value only if the key does not exist.
func (m *Map[V]) SetIfAbsent(key string, value V) bool {
	_, loaded := m.GetOrSet(key, value)
	return !loaded
}

// Pop removes a key and returns its value.
func (m *Map[V]) Pop(key string) (V, bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	val, ok := s.items[key]
	if ok {
		delete(s.items, key)
	}
	return val, ok
}

// DeleteIf removes key when cond holds for its current value, atomically.
func (m *Map[V]) DeleteIf(key string, cond func(V) bool) (V, bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	val, ok := s.items[key]
	if !ok || !cond(val) {
		var zero V
		return zero, false
	}
	delete(s.items, key)
	return val, true
}
