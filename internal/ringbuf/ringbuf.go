// Package ringbuf provides a bounded FIFO buffer used for learning history
// and pattern sample lists. When full, appending evicts the oldest entry.
package ringbuf

// Buffer is a fixed-capacity FIFO ring buffer.
type Buffer[T any] struct {
	items []T
	head  int
	size  int
	cap   int
}

// New creates a buffer with the given capacity. Capacity must be positive.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer[T]{
		items: make([]T, capacity),
		cap:   capacity,
	}
}

// Push appends an item, evicting the oldest when the buffer is full.
func (b *Buffer[T]) Push(item T) {
	tail := (b.head + b.size) % b.cap
	b.items[tail] = item
	if b.size < b.cap {
		b.size++
	} else {
		b.head = (b.head + 1) % b.cap
	}
}

// Len returns the number of items currently held.
func (b *Buffer[T]) Len() int {
	return b.size
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return b.cap
}

// Last returns the most recently pushed item, or the zero value when empty.
func (b *Buffer[T]) Last() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.items[(b.head+b.size-1)%b.cap], true
}

// Items returns the buffer contents oldest-first as a fresh slice.
func (b *Buffer[T]) Items() []T {
	out := make([]T, 0, b.size)
	for i := 0; i < b.size; i++ {
		out = append(out, b.items[(b.head+i)%b.cap])
	}
	return out
}
