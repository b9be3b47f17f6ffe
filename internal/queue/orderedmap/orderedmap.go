// Package orderedmap implements a map that preserves insertion order and
// supports O(1) removal, used by the queue manager to keep lanes as a
// FIFO chain of items while still allowing lookup by key.
package orderedmap

type element[V any] struct {
	value      V
	prev, next *element[V]
}

// Map is a map datastructure that allows accessing its elements in a
// fixed (insertion) order.
type Map[K comparable, V any] struct {
	front, back *element[V]
	m           map[K]*element[V]
	length      int
	zeroval     V
}

func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{m: map[K]*element[V]{}}
}

// EnqueueIfNotExist adds val to the map if key does not already exist.
// isFirst reports whether val became the new first element.
func (m *Map[K, V]) EnqueueIfNotExist(key K, val V) (isFirst, added bool) {
	if _, exist := m.m[key]; exist {
		return false, false
	}

	e := &element[V]{value: val}
	if m.back == nil {
		m.front = e
		m.back = e
	} else {
		e.prev = m.back
		m.back.next = e
		m.back = e
	}

	m.m[key] = e
	m.length++

	return m.length == 1, true
}

// Get returns the value for the given key, or the zero value if absent.
func (m *Map[K, V]) Get(key K) V {
	e, exist := m.m[key]
	if !exist {
		return m.zeroval
	}

	return e.value
}

// Dequeue removes the value with the given key and returns it, or the
// zero value if the key did not exist.
func (m *Map[K, V]) Dequeue(key K) V {
	e, exist := m.m[key]
	if !exist {
		return m.zeroval
	}

	delete(m.m, key)
	m.remove(e)

	return e.value
}

func (m *Map[K, V]) remove(e *element[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		m.front = e.next
	}

	if e.next != nil {
		e.next.prev = e.prev
	} else {
		m.back = e.prev
	}

	e.prev = nil
	e.next = nil
	m.length--
}

// First returns the first element in the map, or the zero value if empty.
func (m *Map[K, V]) First() V {
	if m.front == nil {
		return m.zeroval
	}

	return m.front.value
}

// Last returns the last element in the map, or the zero value if empty.
func (m *Map[K, V]) Last() V {
	if m.back == nil {
		return m.zeroval
	}

	return m.back.value
}

// Len returns the number of elements in the map.
func (m *Map[K, V]) Len() int {
	return m.length
}

// Foreach iterates through the map in order. When fn returns false the
// iteration is aborted.
func (m *Map[K, V]) Foreach(fn func(V) bool) {
	for e := m.front; e != nil; e = e.next {
		if !fn(e.value) {
			return
		}
	}
}

// AsSlice returns a new slice containing the elements in order.
func (m *Map[K, V]) AsSlice() []V {
	result := make([]V, 0, m.length)

	for e := m.front; e != nil; e = e.next {
		result = append(result, e.value)
	}

	return result
}
