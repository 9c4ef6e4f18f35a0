// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ksync provides the kernel synchronization primitives:
// counting semaphores and mutexes with priority-ordered queuing,
// priority inheritance, recursion, try-acquire and
// destroy-with-waiters.
//
// Both primitives sit directly on the scheduler: a full acquire marks
// the current thread WAITING through sched.PrepareWait, drops the
// primitive's own lock and parks in sched.Block; releases pop a
// waiter and hand it back with sched.ReleaseThread.
package ksync

// Flags select a primitive's queuing discipline and mutex behavior.
type Flags uint32

const (
	// QueuePriority orders waiters by static thread priority; the
	// highest-priority waiter is released first. This is the default.
	QueuePriority Flags = 0

	// QueueFIFO releases waiters in arrival order instead.
	QueueFIFO Flags = 1 << 0

	// Recursive lets a mutex owner re-lock, tracked by a depth count.
	Recursive Flags = 1 << 1

	// PriorityInherit elevates a mutex owner's effective priority to
	// its best waiter's static priority.
	PriorityInherit Flags = 1 << 2
)

func (f Flags) fifo() bool {
	return f&QueueFIFO != 0
}
