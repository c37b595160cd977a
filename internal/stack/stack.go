package stack

import (
	"slices"
)

type Stack[T any] struct {
	items []T
}

// NewWithCapacity reduces allocations when the expected depth is known.
func NewWithCapacity[T any](capacity int) *Stack[T] {
	return &Stack[T]{
		items: make([]T, 0, capacity),
	}
}

// Push adds elements in order with the last element at the top.
func (s *Stack[T]) Push(items ...T) {
	s.items = append(s.items, items...)
}

func (s *Stack[T]) Pop() (T, bool) {
	if len(s.items) == 0 {
		var zero T
		return zero, false
	}

	index := len(s.items) - 1
	item := s.items[index]
	var zero T
	s.items[index] = zero
	s.items = s.items[:index]
	return item, true
}

// Truncate drops every element above depth n. Depths beyond the current
// size are a no-op.
func (s *Stack[T]) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n >= len(s.items) {
		return
	}

	clear(s.items[n:])
	s.items = s.items[:n]
}

func (s *Stack[T]) IsEmpty() bool {
	return len(s.items) == 0
}

func (s *Stack[T]) Size() int {
	return len(s.items)
}

// Bottom returns a copy of the n lowest elements, bottom first.
func (s *Stack[T]) Bottom(n int) []T {
	n = min(max(n, 0), len(s.items))
	return slices.Clone(s.items[:n])
}
