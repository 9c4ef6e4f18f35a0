// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pqueue

import (
	"testing"

	"github.com/mvantol/go-kern/errno"
)

func init() {
	paranoia = true
}

func popAll(q *Queue) []any {
	var out []any
	for {
		n := q.Pop()
		if n == nil {
			return out
		}
		out = append(out, n.Payload)
	}
}

func TestPushPopFIFO(t *testing.T) {
	q := New()
	for _, v := range []int{1, 2, 3, 4} {
		if st := q.Push(NewNode(v)); !st.Ok() {
			t.Fatalf("Push(%d): %v", v, st)
		}
	}
	if got := q.Size(); got != 4 {
		t.Errorf("Size = %d, want 4", got)
	}
	got := popAll(q)
	want := []any{1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pop order %v, want %v", got, want)
		}
	}
	if q.Size() != 0 {
		t.Errorf("Size after drain = %d", q.Size())
	}
}

func TestPushPrioOrder(t *testing.T) {
	q := New()
	// Pop must return ascending keys regardless of insertion order.
	for _, k := range []uint64{5, 1, 9, 3, 7} {
		if st := q.PushPrio(NewNode(k), k); !st.Ok() {
			t.Fatalf("PushPrio(%d): %v", k, st)
		}
	}
	want := []uint64{1, 3, 5, 7, 9}
	for i, w := range want {
		n := q.Pop()
		if n == nil || n.Payload.(uint64) != w {
			t.Fatalf("pop %d: got %v, want %d", i, n, w)
		}
	}
}

func TestPushPrioStableTies(t *testing.T) {
	q := New()
	type item struct {
		key uint64
		seq int
	}
	for seq, key := range []uint64{2, 1, 2, 1, 2} {
		q.PushPrio(NewNode(item{key, seq}), key)
	}
	var got []item
	for {
		n := q.Pop()
		if n == nil {
			break
		}
		got = append(got, n.Payload.(item))
	}
	// Among equal keys, earlier insertions pop first.
	want := []item{{1, 1}, {1, 3}, {2, 0}, {2, 2}, {2, 4}}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pop order %v, want %v", got, want)
		}
	}
}

func TestDoubleEnlist(t *testing.T) {
	q1, q2 := New(), New()
	n := NewNode("x")
	if st := q1.Push(n); !st.Ok() {
		t.Fatalf("Push: %v", st)
	}
	if st := q1.Push(n); st != errno.Unauthorized {
		t.Errorf("re-push on same queue: %v, want UNAUTHORIZED_ACTION", st)
	}
	if st := q2.Push(n); st != errno.Unauthorized {
		t.Errorf("push on second queue: %v, want UNAUTHORIZED_ACTION", st)
	}
	if st := q2.PushPrio(n, 1); st != errno.Unauthorized {
		t.Errorf("pushPrio while enlisted: %v, want UNAUTHORIZED_ACTION", st)
	}
}

func TestRemove(t *testing.T) {
	q := New()
	nodes := make([]*Node, 5)
	for i := range nodes {
		nodes[i] = NewNode(i)
		q.Push(nodes[i])
	}
	// Middle, head-side, tail-side.
	for _, i := range []int{2, 4, 0} {
		if st := q.Remove(nodes[i], false); !st.Ok() {
			t.Fatalf("Remove(%d): %v", i, st)
		}
	}
	got := popAll(q)
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("left %v, want [1 3]", got)
	}
	if st := q.Remove(nodes[2], false); st != errno.NoSuchID {
		t.Errorf("Remove absent: %v, want NO_SUCH_ID", st)
	}
}

func TestRemovePanicMode(t *testing.T) {
	q := New()
	n := NewNode(1)
	defer func() {
		if recover() == nil {
			t.Fatal("Remove(panicIfAbsent) did not panic on absent node")
		}
	}()
	q.Remove(n, true)
}

func TestFind(t *testing.T) {
	q := New()
	q.Push(NewNode("a"))
	q.Push(NewNode("b"))
	if n := q.Find("b"); n == nil || n.Payload != "b" {
		t.Errorf("Find(b) = %v", n)
	}
	if n := q.Find("z"); n != nil {
		t.Errorf("Find(z) = %v, want nil", n)
	}
}

func TestDestroy(t *testing.T) {
	q := New()
	n := NewNode(1)
	q.Push(n)
	if st := q.Destroy(); st != errno.Unauthorized {
		t.Errorf("Destroy non-empty queue: %v, want UNAUTHORIZED_ACTION", st)
	}
	if st := n.Destroy(); st != errno.Unauthorized {
		t.Errorf("Destroy enlisted node: %v, want UNAUTHORIZED_ACTION", st)
	}
	q.Pop()
	if st := q.Destroy(); !st.Ok() {
		t.Errorf("Destroy empty queue: %v", st)
	}
	if st := n.Destroy(); !st.Ok() {
		t.Errorf("Destroy free node: %v", st)
	}
}

func TestEach(t *testing.T) {
	q := New()
	for i := 0; i < 4; i++ {
		q.Push(NewNode(i))
	}
	var seen []int
	q.Each(func(n *Node) bool {
		seen = append(seen, n.Payload.(int))
		return len(seen) < 3
	})
	// Head to tail is newest first.
	if len(seen) != 3 || seen[0] != 3 || seen[1] != 2 || seen[2] != 1 {
		t.Fatalf("Each visited %v", seen)
	}
}
