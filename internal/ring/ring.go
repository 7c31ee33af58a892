// Copyright ©2025 The h10 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ring implements a fixed-capacity ring buffer.
package ring

// Buffer is a fixed-capacity ring buffer. When full, writes evict the
// oldest elements.
type Buffer[T any] struct {
	data []T
	head int // index of the oldest element
	n    int // number of live elements
}

// NewBuffer returns a ring buffer holding at most n elements.
func NewBuffer[T any](n int) *Buffer[T] {
	return &Buffer[T]{data: make([]T, n)}
}

// Len returns the number of buffered elements.
func (r *Buffer[T]) Len() int { return r.n }

// Cap returns the buffer's capacity.
func (r *Buffer[T]) Cap() int { return len(r.data) }

// Push appends v, evicting the oldest element if the buffer is full.
func (r *Buffer[T]) Push(v T) {
	r.data[(r.head+r.n)%len(r.data)] = v
	if r.n < len(r.data) {
		r.n++
		return
	}
	r.head = (r.head + 1) % len(r.data)
}

// Write appends all elements of src in order, evicting as needed.
func (r *Buffer[T]) Write(src []T) {
	if len(src) >= len(r.data) {
		copy(r.data, src[len(src)-len(r.data):])
		r.head = 0
		r.n = len(r.data)
		return
	}
	for _, v := range src {
		r.Push(v)
	}
}

// At returns the element at index i, where 0 is the oldest buffered
// element. It panics if i is out of range.
func (r *Buffer[T]) At(i int) T {
	if i < 0 || i >= r.n {
		panic("ring: index out of range")
	}
	return r.data[(r.head+i)%len(r.data)]
}

// Last returns the most recently pushed element. It returns false if the
// buffer is empty.
func (r *Buffer[T]) Last() (T, bool) {
	if r.n == 0 {
		var zero T
		return zero, false
	}
	return r.At(r.n - 1), true
}

// CopyTo copies buffered elements into dst, oldest first, returning the
// number of elements copied.
func (r *Buffer[T]) CopyTo(dst []T) int {
	n := min(len(dst), r.n)
	for i := 0; i < n; i++ {
		dst[i] = r.At(i)
	}
	return n
}

// Clear empties the buffer.
func (r *Buffer[T]) Clear() {
	r.head = 0
	r.n = 0
}
