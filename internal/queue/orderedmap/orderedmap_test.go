package orderedmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnqueueDequeueOrder(t *testing.T) {
	m := New[string, int]()

	isFirst, added := m.EnqueueIfNotExist("a", 1)
	assert.True(t, isFirst)
	assert.True(t, added)

	isFirst, added = m.EnqueueIfNotExist("b", 2)
	assert.False(t, isFirst)
	assert.True(t, added)

	_, added = m.EnqueueIfNotExist("a", 99)
	assert.False(t, added)

	assert.Equal(t, []int{1, 2}, m.AsSlice())
	assert.Equal(t, 1, m.First())
	assert.Equal(t, 2, m.Last())

	removed := m.Dequeue("a")
	assert.Equal(t, 1, removed)
	assert.Equal(t, []int{2}, m.AsSlice())
	assert.Equal(t, 1, m.Len())
}

func TestDequeueMissingReturnsZeroValue(t *testing.T) {
	m := New[string, int]()
	assert.Equal(t, 0, m.Dequeue("missing"))
}

func TestForeachAbort(t *testing.T) {
	m := New[string, int]()
	m.EnqueueIfNotExist("a", 1)
	m.EnqueueIfNotExist("b", 2)
	m.EnqueueIfNotExist("c", 3)

	var seen []int
	m.Foreach(func(v int) bool {
		seen = append(seen, v)
		return v != 2
	})

	assert.Equal(t, []int{1, 2}, seen)
}
