package containers

import (
	"errors"

	"golang.org/x/exp/constraints"
)

var ErrFreeListEmpty = errors.New("free list is empty")

// FreeList is a LIFO stack of free slot indices in [0, capacity).
type FreeList[T constraints.Unsigned] struct {
	free     []T
	capacity T
}

// NewFreeList returns a list holding every index of capacity. The first Pop
// yields 0.
func NewFreeList[T constraints.Unsigned](capacity T) *FreeList[T] {
	fl := &FreeList[T]{
		free:     make([]T, 0, int(capacity)),
		capacity: capacity,
	}
	for i := capacity; i > 0; i-- {
		fl.free = append(fl.free, i-1)
	}
	return fl
}

// Pop removes and returns the most recently pushed index.
func (fl *FreeList[T]) Pop() (T, error) {
	if len(fl.free) == 0 {
		return 0, ErrFreeListEmpty
	}
	last := len(fl.free) - 1
	v := fl.free[last]
	fl.free = fl.free[:last]
	return v, nil
}

// Push returns an index to the list.
func (fl *FreeList[T]) Push(v T) {
	fl.free = append(fl.free, v)
}

// Len is the number of free indices.
func (fl *FreeList[T]) Len() int {
	return len(fl.free)
}

// Used is the number of indices currently handed out.
func (fl *FreeList[T]) Used() T {
	return fl.capacity - T(len(fl.free))
}

func (fl *FreeList[T]) Capacity() T {
	return fl.capacity
}

func (fl *FreeList[T]) IsEmpty() bool {
	return len(fl.free) == 0
}
