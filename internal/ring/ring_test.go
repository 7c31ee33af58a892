// Copyright ©2025 The h10 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ring

import (
	"slices"
	"testing"
)

func TestPushEvictsOldest(t *testing.T) {
	r := NewBuffer[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	if r.Len() != 3 {
		t.Errorf("unexpected length: got %d, want 3", r.Len())
	}
	got := make([]int, 3)
	n := r.CopyTo(got)
	want := []int{3, 4, 5}
	if !slices.Equal(got[:n], want) {
		t.Errorf("unexpected contents: got %v, want %v", got[:n], want)
	}
}

func TestLast(t *testing.T) {
	r := NewBuffer[string](2)
	if _, ok := r.Last(); ok {
		t.Error("unexpected element from empty buffer")
	}
	r.Push("a")
	r.Push("b")
	r.Push("c")
	last, ok := r.Last()
	if !ok || last != "c" {
		t.Errorf("unexpected last element: got %q,%t, want \"c\",true", last, ok)
	}
}

func TestAt(t *testing.T) {
	r := NewBuffer[int](4)
	for i := 0; i < 6; i++ {
		r.Push(i)
	}
	for i, want := range []int{2, 3, 4, 5} {
		if got := r.At(i); got != want {
			t.Errorf("unexpected element at %d: got %d, want %d", i, got, want)
		}
	}
}

func TestWrite(t *testing.T) {
	tests := []struct {
		name string
		cap  int
		src  [][]int
		want []int
	}{
		{name: "partial", cap: 5, src: [][]int{{1, 2, 3}}, want: []int{1, 2, 3}},
		{name: "wrapping", cap: 3, src: [][]int{{1, 2}, {3, 4}}, want: []int{2, 3, 4}},
		{name: "oversize", cap: 3, src: [][]int{{1, 2, 3, 4, 5}}, want: []int{3, 4, 5}},
	}
	for _, test := range tests {
		r := NewBuffer[int](test.cap)
		for _, s := range test.src {
			r.Write(s)
		}
		got := make([]int, test.cap)
		n := r.CopyTo(got)
		if !slices.Equal(got[:n], test.want) {
			t.Errorf("%s: unexpected contents: got %v, want %v", test.name, got[:n], test.want)
		}
	}
}

func TestClear(t *testing.T) {
	r := NewBuffer[int](3)
	r.Push(1)
	r.Push(2)
	r.Clear()
	if r.Len() != 0 {
		t.Errorf("unexpected length after clear: got %d, want 0", r.Len())
	}
	r.Push(7)
	if got := r.At(0); got != 7 {
		t.Errorf("unexpected element after clear: got %d, want 7", got)
	}
}
