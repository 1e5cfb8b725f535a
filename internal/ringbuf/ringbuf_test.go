package ringbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_PushBelowCapacity(t *testing.T) {
	buf := New[int](4)

	buf.Push(1)
	buf.Push(2)
	buf.Push(3)

	assert.Equal(t, 3, buf.Len())
	assert.Equal(t, []int{1, 2, 3}, buf.Items())

	last, ok := buf.Last()
	require.True(t, ok)
	assert.Equal(t, 3, last)
}

func TestBuffer_EvictsOldestWhenFull(t *testing.T) {
	buf := New[int](3)

	for i := 1; i <= 5; i++ {
		buf.Push(i)
	}

	assert.Equal(t, 3, buf.Len(), "size should stay at capacity")
	assert.Equal(t, []int{3, 4, 5}, buf.Items(), "oldest entries should be evicted first")
}

func TestBuffer_Empty(t *testing.T) {
	buf := New[string](2)

	assert.Equal(t, 0, buf.Len())
	assert.Empty(t, buf.Items())

	_, ok := buf.Last()
	assert.False(t, ok)
}

func TestBuffer_NonPositiveCapacityClamps(t *testing.T) {
	buf := New[int](0)
	buf.Push(7)
	buf.Push(8)

	assert.Equal(t, 1, buf.Cap())
	assert.Equal(t, []int{8}, buf.Items())
}

func TestBuffer_WrapAroundOrdering(t *testing.T) {
	buf := New[int](1000)
	for i := 0; i < 2500; i++ {
		buf.Push(i)
	}

	items := buf.Items()
	require.Len(t, items, 1000)
	assert.Equal(t, 1500, items[0])
	assert.Equal(t, 2499, items[999])
}
