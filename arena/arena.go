// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package arena provides a generation-tagged slot allocator addressed by
// strongly typed indices.
//
// An index packs a slot number and the generation of that slot at the time of
// insertion. Removing a value bumps the slot's generation, so an index that
// outlived its value is detected instead of silently aliasing whatever is
// stored in the slot next.
package arena

import (
	"fmt"
	"iter"
)

// Index is the untyped form of every arena index. The zero Index is never
// returned by Insert and can be used as "no index".
type Index uint64

// NewIndex packs a slot and a generation into an Index.
func NewIndex(slot, generation uint32) Index {
	return Index(uint64(generation)<<32 | uint64(slot))
}

// Slot returns the slot part of the index.
func (i Index) Slot() uint32 {
	return uint32(i)
}

// Generation returns the generation part of the index.
func (i Index) Generation() uint32 {
	return uint32(i >> 32)
}

func (i Index) String() string {
	return fmt.Sprintf("%d@%d", i.Slot(), i.Generation())
}

type entry[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// Arena stores values of type T addressed by indices of type I.
type Arena[I ~uint64, T any] struct {
	entries []entry[T]
	free    []uint32
	len     int
}

// New returns an empty arena with room for capacity values.
func New[I ~uint64, T any](capacity int) *Arena[I, T] {
	return &Arena[I, T]{
		entries: make([]entry[T], 0, capacity),
	}
}

// Insert stores v and returns its index.
func (a *Arena[I, T]) Insert(v T) I {
	a.len++
	if n := len(a.free); n > 0 {
		slot := a.free[n-1]
		a.free = a.free[:n-1]
		e := &a.entries[slot]
		e.generation++
		e.value = v
		e.occupied = true
		return I(NewIndex(slot, e.generation))
	}
	slot := uint32(len(a.entries))
	a.entries = append(a.entries, entry[T]{value: v, generation: 1, occupied: true})
	return I(NewIndex(slot, 1))
}

// Remove deletes the value at i and returns it. It reports false if i is stale
// or was never issued by this arena.
func (a *Arena[I, T]) Remove(i I) (T, bool) {
	e := a.lookup(i)
	if e == nil {
		var zero T
		return zero, false
	}
	v := e.value
	var zero T
	e.value = zero
	e.occupied = false
	a.free = append(a.free, Index(i).Slot())
	a.len--
	return v, true
}

// Get returns a copy of the value at i.
func (a *Arena[I, T]) Get(i I) (T, bool) {
	e := a.lookup(i)
	if e == nil {
		var zero T
		return zero, false
	}
	return e.value, true
}

// At returns a pointer to the value at i. The pointer is valid until the next
// Insert. At panics if i is stale.
func (a *Arena[I, T]) At(i I) *T {
	e := a.lookup(i)
	if e == nil {
		panic(fmt.Sprintf("arena: stale or invalid index %v", Index(i)))
	}
	return &e.value
}

// Contains reports whether i refers to a live value.
func (a *Arena[I, T]) Contains(i I) bool {
	return a.lookup(i) != nil
}

// Len returns the number of live values.
func (a *Arena[I, T]) Len() int {
	return a.len
}

// All iterates over live values in slot order.
func (a *Arena[I, T]) All() iter.Seq2[I, T] {
	return func(yield func(I, T) bool) {
		for slot := range a.entries {
			e := &a.entries[slot]
			if !e.occupied {
				continue
			}
			if !yield(I(NewIndex(uint32(slot), e.generation)), e.value) {
				return
			}
		}
	}
}

// Indices returns the indices of all live values in slot order.
func (a *Arena[I, T]) Indices() []I {
	out := make([]I, 0, a.len)
	for i := range a.All() {
		out = append(out, i)
	}
	return out
}

func (a *Arena[I, T]) lookup(i I) *entry[T] {
	idx := Index(i)
	slot := idx.Slot()
	if int(slot) >= len(a.entries) {
		return nil
	}
	e := &a.entries[slot]
	if !e.occupied || e.generation != idx.Generation() {
		return nil
	}
	return e
}
