// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package arena

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type testIndex uint64

// Index

func TestIndex_SlotGeneration(t *testing.T) {
	tests := []struct {
		name       string
		slot, gen  uint32
		wantString string
	}{
		{"first", 0, 1, "0@1"},
		{"reused", 7, 3, "7@3"},
		{"max", ^uint32(0), ^uint32(0), "4294967295@4294967295"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := NewIndex(tt.slot, tt.gen)
			if got := i.Slot(); got != tt.slot {
				t.Errorf("NewIndex(%d, %d).Slot() = %v, want %v", tt.slot, tt.gen, got, tt.slot)
			}
			if got := i.Generation(); got != tt.gen {
				t.Errorf("NewIndex(%d, %d).Generation() = %v, want %v", tt.slot, tt.gen, got, tt.gen)
			}
			if got := i.String(); got != tt.wantString {
				t.Errorf("NewIndex(%d, %d).String() = %q, want %q", tt.slot, tt.gen, got, tt.wantString)
			}
		})
	}
}

// Arena

func TestArena_InsertGet(t *testing.T) {
	a := New[testIndex, string](0)
	idx := []testIndex{a.Insert("a"), a.Insert("b"), a.Insert("c")}

	for i, want := range []string{"a", "b", "c"} {
		got, ok := a.Get(idx[i])
		if !ok {
			t.Fatalf("a.Get(%v) ok = false, want true", idx[i])
		}
		if got != want {
			t.Errorf("a.Get(%v) = %q, want %q", idx[i], got, want)
		}
	}
	if got := a.Len(); got != 3 {
		t.Errorf("a.Len() = %v, want 3", got)
	}
}

func TestArena_ZeroIndexNeverIssued(t *testing.T) {
	a := New[testIndex, int](0)
	for i := range 10 {
		if idx := a.Insert(i); idx == 0 {
			t.Fatalf("a.Insert(%d) = 0, want non-zero index", i)
		}
	}
	if a.Contains(0) {
		t.Errorf("a.Contains(0) = true, want false")
	}
}

func TestArena_RemoveDetectsStaleIndex(t *testing.T) {
	a := New[testIndex, int](0)
	first := a.Insert(1)

	got, ok := a.Remove(first)
	if !ok || got != 1 {
		t.Fatalf("a.Remove(%v) = (%v, %v), want (1, true)", first, got, ok)
	}

	second := a.Insert(2)
	if Index(second).Slot() != Index(first).Slot() {
		t.Fatalf("slot was not reused: first %v, second %v", first, second)
	}
	if a.Contains(first) {
		t.Errorf("a.Contains(%v) = true after removal, want false", first)
	}
	if _, ok := a.Get(first); ok {
		t.Errorf("a.Get(%v) ok = true for stale index, want false", first)
	}
	if _, ok := a.Remove(first); ok {
		t.Errorf("a.Remove(%v) ok = true for stale index, want false", first)
	}
	if v, ok := a.Get(second); !ok || v != 2 {
		t.Errorf("a.Get(%v) = (%v, %v), want (2, true)", second, v, ok)
	}
}

func TestArena_At(t *testing.T) {
	assertPanic := func(a *Arena[testIndex, int], in testIndex) {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("a.At(%v) did not panic, want panic", in)
			}
		}()
		a.At(in)
	}

	a := New[testIndex, int](0)
	idx := a.Insert(5)
	*a.At(idx) = 6
	if v, _ := a.Get(idx); v != 6 {
		t.Errorf("a.Get(%v) = %v after mutation through At, want 6", idx, v)
	}

	a.Remove(idx)
	assertPanic(a, idx)
	assertPanic(a, testIndex(NewIndex(42, 1)))
}

func TestArena_All(t *testing.T) {
	a := New[testIndex, int](4)
	var idx []testIndex
	for i := range 6 {
		idx = append(idx, a.Insert(i))
	}
	a.Remove(idx[1])
	a.Remove(idx[4])

	var got []int
	for _, v := range a.All() {
		got = append(got, v)
	}
	want := []int{0, 2, 3, 5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("a.All() mismatch (-want +got):\n%s", diff)
	}

	wantIdx := []testIndex{idx[0], idx[2], idx[3], idx[5]}
	if diff := cmp.Diff(wantIdx, a.Indices()); diff != "" {
		t.Errorf("a.Indices() mismatch (-want +got):\n%s", diff)
	}
}

func TestArena_AllStopsEarly(t *testing.T) {
	a := New[testIndex, int](0)
	for i := range 5 {
		a.Insert(i)
	}
	n := 0
	for range a.All() {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iteration count = %v, want 2", n)
	}
}

// Benchmarks

func BenchmarkArena_InsertRemove(b *testing.B) {
	a := New[testIndex, [4]uint64](1024)
	b.ReportAllocs()
	for b.Loop() {
		i := a.Insert([4]uint64{1, 2, 3, 4})
		a.Remove(i)
	}
}
