// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ksync

import (
	"sync"

	"github.com/mvantol/go-kern/errno"
	"github.com/mvantol/go-kern/pqueue"
	"github.com/mvantol/go-kern/sched"
)

// Mutex is a kernel mutex. Depending on flags it supports recursion,
// FIFO or priority queuing of waiters, and priority inheritance.
//
// With PriorityInherit the owner's effective priority always equals
// the best (lowest-numbered) static priority among itself and its
// waiters. Inheritance is not propagated transitively through
// blocking chains.
type Mutex struct {
	mu        sync.Mutex
	owner     *sched.Thread
	depth     int32
	flags     Flags
	waiters   *pqueue.Queue
	savedPrio uint8 // owner's static priority at acquisition, for roll-back
	destroyed bool
	s         *sched.Scheduler
}

// Init prepares the mutex.
func (m *Mutex) Init(s *sched.Scheduler, flags Flags) errno.Status {
	if m == nil || s == nil {
		return errno.NullPointer
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owner = nil
	m.depth = 0
	m.flags = flags
	m.waiters = pqueue.New()
	m.destroyed = false
	m.s = s
	return errno.OK
}

// Lock acquires the mutex, blocking while another thread owns it.
// Re-locking by the owner requires the Recursive flag. Returns
// Destroyed if the mutex is destroyed before or while waiting.
func (m *Mutex) Lock() errno.Status {
	if m == nil || m.waiters == nil {
		return errno.NullPointer
	}
	cur := m.s.Current()
	if cur == nil {
		return errno.Unauthorized
	}

	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return errno.Destroyed
	}
	if m.owner == nil {
		m.takeLocked(cur)
		m.mu.Unlock()
		return errno.OK
	}
	if m.owner == cur {
		if m.flags&Recursive == 0 {
			m.mu.Unlock()
			return errno.Unauthorized
		}
		m.depth++
		m.mu.Unlock()
		return errno.OK
	}

	if m.flags&PriorityInherit != 0 {
		if p := cur.Priority(); p < m.owner.EffectivePriority() {
			m.s.UpdatePriority(m.owner, p)
		}
	}
	waiter, cpu := m.s.PrepareWait(sched.BlockMutex, m.waiters, !m.flags.fifo())
	m.mu.Unlock()

	m.s.Block(waiter, cpu)

	m.mu.Lock()
	destroyed := m.destroyed
	m.mu.Unlock()
	if destroyed {
		return errno.Destroyed
	}
	// Unlock handed ownership over before releasing us.
	return errno.OK
}

// TryLock is the non-blocking Lock. On success it returns OK and the
// new recursion depth; otherwise Blocked.
func (m *Mutex) TryLock() (errno.Status, int32) {
	if m == nil || m.waiters == nil {
		return errno.NullPointer, 0
	}
	cur := m.s.Current()
	if cur == nil {
		return errno.Unauthorized, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return errno.Destroyed, 0
	}
	if m.owner == nil {
		m.takeLocked(cur)
		return errno.OK, 1
	}
	if m.owner == cur && m.flags&Recursive != 0 {
		m.depth++
		return errno.OK, m.depth
	}
	return errno.Blocked, 0
}

// takeLocked installs t as the owner. Caller holds m.mu.
func (m *Mutex) takeLocked(t *sched.Thread) {
	m.owner = t
	m.depth = 1
	if m.flags&PriorityInherit != 0 {
		m.savedPrio = t.Priority()
	}
}

// Unlock releases the mutex. Only the owner may unlock; a recursive
// mutex unwinds its depth first. With waiters present, ownership is
// handed to the chosen waiter before it is released.
func (m *Mutex) Unlock() errno.Status {
	if m == nil || m.waiters == nil {
		return errno.NullPointer
	}
	cur := m.s.Current()

	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return errno.Destroyed
	}
	if m.owner != cur || cur == nil {
		m.mu.Unlock()
		return errno.Unauthorized
	}
	if m.flags&Recursive != 0 && m.depth > 1 {
		m.depth--
		m.mu.Unlock()
		return errno.OK
	}

	if m.flags&PriorityInherit != 0 && cur.EffectivePriority() != m.savedPrio {
		m.s.UpdatePriority(cur, m.savedPrio)
	}

	if n := m.waiters.Pop(); n != nil {
		t := n.Payload.(*sched.Thread)
		m.takeLocked(t)
		m.mu.Unlock()
		m.s.ReleaseThread(t)
		// Hand the CPU over if the new owner outranks us.
		if m.s.Current() != nil {
			m.s.Schedule()
		}
		return errno.OK
	}
	m.owner = nil
	m.depth = 0
	m.mu.Unlock()
	return errno.OK
}

// Owner returns the current owner, nil when free.
func (m *Mutex) Owner() *sched.Thread {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}

// Destroy marks the mutex destroyed and releases all waiters with
// outcome Destroyed.
func (m *Mutex) Destroy() errno.Status {
	if m == nil || m.waiters == nil {
		return errno.NullPointer
	}
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return errno.Unauthorized
	}
	m.destroyed = true
	m.owner = nil
	m.depth = 0
	var woken []*sched.Thread
	for {
		n := m.waiters.Pop()
		if n == nil {
			break
		}
		woken = append(woken, n.Payload.(*sched.Thread))
	}
	m.mu.Unlock()
	for _, t := range woken {
		m.s.ReleaseThread(t)
	}
	if len(woken) > 0 && m.s.Current() != nil {
		m.s.Schedule()
	}
	return errno.OK
}
