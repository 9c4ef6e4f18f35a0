// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pqueue implements the intrusive priority queue shared by the
// scheduler (ready lists, sleep lists, zombie list), the
// synchronization primitives (waiter lists) and the VFS (descriptor
// free pools).
//
// Nodes are pushed at the head and popped from the tail, so plain
// Push/Pop behaves as a FIFO. PushPrio keeps the list sorted in
// descending key order, which puts the smallest key at the tail where
// Pop takes it. Ties are stable: a later insertion with an equal key
// lands behind the existing equals.
package pqueue

import (
	"fmt"
	"sync"

	"github.com/mvantol/go-kern/errno"
)

// paranoia enables full structural verification after every mutation.
// Tests flip it on; it is too expensive for the scheduler fast path.
var paranoia = false

// Node is an intrusive queue element. A node belongs to at most one
// queue at a time; pushing an enlisted node is an error. All link
// fields are owned by the queue the node is enlisted in and must only
// be touched under that queue's lock.
type Node struct {
	// Payload is the opaque datum carried by the node. It is set at
	// creation and never touched by the queue.
	Payload any

	prev, next *Node
	queue      *Queue
	priority   uint64
	enlisted   bool
}

// NewNode returns an unlinked node carrying payload.
func NewNode(payload any) *Node {
	return &Node{Payload: payload}
}

// Priority returns the ordering key assigned by the last PushPrio.
func (n *Node) Priority() uint64 {
	return n.priority
}

// Enlisted reports whether the node currently belongs to a queue. The
// answer is only stable if the caller serializes against the queues
// involved.
func (n *Node) Enlisted() bool {
	return n.enlisted
}

// Destroy invalidates the node. It fails if the node is still
// enlisted.
func (n *Node) Destroy() errno.Status {
	if n == nil {
		return errno.NullPointer
	}
	if n.enlisted {
		return errno.Unauthorized
	}
	n.Payload = nil
	return errno.OK
}

// Queue is a doubly-linked intrusive queue. The zero value is not
// ready for use; call New.
type Queue struct {
	mu   sync.Mutex
	head *Node
	tail *Node
	size int
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Size returns the number of enlisted nodes.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Destroy fails if the queue is non-empty; a queue with waiters must
// be drained by its owner first.
func (q *Queue) Destroy() errno.Status {
	if q == nil {
		return errno.NullPointer
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size != 0 {
		return errno.Unauthorized
	}
	return errno.OK
}

// Push inserts n at the head. Combined with Pop taking the tail this
// gives FIFO order among plain pushes.
func (q *Queue) Push(n *Node) errno.Status {
	if q == nil || n == nil {
		return errno.NullPointer
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if n.enlisted {
		return errno.Unauthorized
	}

	n.prev = nil
	n.next = q.head
	if q.head != nil {
		q.head.prev = n
	}
	q.head = n
	if q.tail == nil {
		q.tail = n
	}
	q.enlist(n)
	return errno.OK
}

// PushPrio sets n's key and inserts it so that keys decrease from head
// to tail. Pop therefore returns the smallest key. Equal keys keep
// insertion order.
func (q *Queue) PushPrio(n *Node, key uint64) errno.Status {
	if q == nil || n == nil {
		return errno.NullPointer
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if n.enlisted {
		return errno.Unauthorized
	}
	n.priority = key

	// Find the first node with key or below; the new node goes just
	// before it, ie. on the head side of existing equals, so it pops
	// after them.
	at := q.head
	for at != nil && at.priority > key {
		at = at.next
	}
	switch {
	case at == nil: // new tail
		n.next = nil
		n.prev = q.tail
		if q.tail != nil {
			q.tail.next = n
		}
		q.tail = n
		if q.head == nil {
			q.head = n
		}
	case at == q.head: // new head
		n.prev = nil
		n.next = q.head
		q.head.prev = n
		q.head = n
	default:
		n.prev = at.prev
		n.next = at
		at.prev.next = n
		at.prev = n
	}
	q.enlist(n)
	return errno.OK
}

// Pop removes and returns the tail node, or nil if the queue is empty.
func (q *Queue) Pop() *Node {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.tail
	if n == nil {
		return nil
	}
	q.unlink(n)
	return n
}

// Find scans for the first node whose payload equals payload.
func (q *Queue) Find(payload any) *Node {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for at := q.head; at != nil; at = at.next {
		if at.Payload == payload {
			return at
		}
	}
	return nil
}

// Each calls fn for every node from head to tail under the queue
// lock, stopping early if fn returns false. fn must not mutate the
// queue.
func (q *Queue) Each(fn func(*Node) bool) {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for at := q.head; at != nil; at = at.next {
		if !fn(at) {
			return
		}
	}
}

// Remove unlinks an arbitrary node. With panicIfAbsent the missing
// node case escalates to a kernel panic instead of returning NoSuchID;
// callers use that mode when their own bookkeeping says the node must
// be present.
func (q *Queue) Remove(n *Node, panicIfAbsent bool) errno.Status {
	if q == nil || n == nil {
		return errno.NullPointer
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if !n.enlisted || n.queue != q {
		if panicIfAbsent {
			panic(fmt.Sprintf("pqueue: node %p not enlisted in queue %p", n, q))
		}
		return errno.NoSuchID
	}
	q.unlink(n)
	return errno.OK
}

// enlist finishes an insertion. Caller holds q.mu and has linked n.
func (q *Queue) enlist(n *Node) {
	n.queue = q
	n.enlisted = true
	q.size++
	q.verify()
}

// unlink detaches n. Caller holds q.mu; n is known enlisted here.
func (q *Queue) unlink(n *Node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		q.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		q.tail = n.prev
	}
	n.prev = nil
	n.next = nil
	n.queue = nil
	n.enlisted = false
	q.size--
	q.verify()
}

// verify checks the structural invariants. Caller holds q.mu.
func (q *Queue) verify() {
	if !paranoia {
		return
	}
	if (q.head == nil) != (q.tail == nil) {
		panic("pqueue: head/tail mismatch")
	}
	if (q.head == nil) != (q.size == 0) {
		panic(fmt.Sprintf("pqueue: empty queue with size %d", q.size))
	}
	count := 0
	var prev *Node
	for at := q.head; at != nil; at = at.next {
		if at.queue != q {
			panic("pqueue: enlisted node points at foreign queue")
		}
		if !at.enlisted {
			panic("pqueue: linked node not marked enlisted")
		}
		if at.prev != prev {
			panic("pqueue: broken prev link")
		}
		if at.next == at || at.prev == at {
			panic("pqueue: self loop")
		}
		prev = at
		count++
		if count > q.size {
			panic("pqueue: cycle in next links")
		}
	}
	if prev != q.tail {
		panic("pqueue: tail does not terminate the list")
	}
	if count != q.size {
		panic(fmt.Sprintf("pqueue: size %d but %d nodes linked", q.size, count))
	}
}
