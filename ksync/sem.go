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

// Semaphore is a counting semaphore. The zero value is unusable;
// call Init.
type Semaphore struct {
	mu        sync.Mutex
	level     int32
	max       int32 // 0 = unbounded
	flags     Flags
	waiters   *pqueue.Queue
	destroyed bool
	s         *sched.Scheduler
}

// Init sets the semaphore up with an initial level. max bounds the
// level when non-zero.
func (sem *Semaphore) Init(s *sched.Scheduler, level, max int32, flags Flags) errno.Status {
	if sem == nil || s == nil {
		return errno.NullPointer
	}
	if level < 0 || max < 0 || (max != 0 && level > max) {
		return errno.IncorrectValue
	}
	sem.mu.Lock()
	defer sem.mu.Unlock()
	sem.level = level
	sem.max = max
	sem.flags = flags
	sem.waiters = pqueue.New()
	sem.destroyed = false
	sem.s = s
	return errno.OK
}

// Wait decrements the level, blocking while it is zero. Returns
// Destroyed if the semaphore is destroyed before or while waiting.
func (sem *Semaphore) Wait() errno.Status {
	if sem == nil || sem.waiters == nil {
		return errno.NullPointer
	}
	sem.mu.Lock()
	if sem.destroyed {
		sem.mu.Unlock()
		return errno.Destroyed
	}
	if sem.level > 0 {
		sem.level--
		sem.mu.Unlock()
		return errno.OK
	}
	cur, cpu := sem.s.PrepareWait(sched.BlockSemaphore, sem.waiters, !sem.flags.fifo())
	sem.mu.Unlock()

	sem.s.Block(cur, cpu)

	sem.mu.Lock()
	destroyed := sem.destroyed
	sem.mu.Unlock()
	if destroyed {
		return errno.Destroyed
	}
	return errno.OK
}

// TryWait is the non-blocking Wait. On success it returns OK and the
// pre-decrement level; otherwise Blocked and the observed level.
func (sem *Semaphore) TryWait() (errno.Status, int32) {
	if sem == nil || sem.waiters == nil {
		return errno.NullPointer, 0
	}
	sem.mu.Lock()
	defer sem.mu.Unlock()
	if sem.destroyed {
		return errno.Destroyed, sem.level
	}
	if sem.level > 0 {
		lvl := sem.level
		sem.level--
		return errno.OK, lvl
	}
	return errno.Blocked, sem.level
}

// Post releases one waiter, or increments the level when nobody
// waits. With QueuePriority the highest-priority waiter is chosen;
// with QueueFIFO the earliest-enqueued one.
func (sem *Semaphore) Post() errno.Status {
	if sem == nil || sem.waiters == nil {
		return errno.NullPointer
	}
	sem.mu.Lock()
	if sem.destroyed {
		sem.mu.Unlock()
		return errno.Unauthorized
	}
	if n := sem.waiters.Pop(); n != nil {
		t := n.Payload.(*sched.Thread)
		sem.mu.Unlock()
		sem.s.ReleaseThread(t)
		// The woken thread may outrank us; give it the CPU now
		// rather than at the next tick.
		if sem.s.Current() != nil {
			sem.s.Schedule()
		}
		return errno.OK
	}
	if sem.max != 0 && sem.level == sem.max {
		sem.mu.Unlock()
		return errno.IncorrectValue
	}
	sem.level++
	sem.mu.Unlock()
	return errno.OK
}

// Level returns the current level; negative values never occur.
func (sem *Semaphore) Level() int32 {
	sem.mu.Lock()
	defer sem.mu.Unlock()
	return sem.level
}

// Destroy marks the semaphore destroyed and releases every waiter
// with outcome Destroyed. The storage may be reused once all waiters
// have observed the destruction.
func (sem *Semaphore) Destroy() errno.Status {
	if sem == nil || sem.waiters == nil {
		return errno.NullPointer
	}
	sem.mu.Lock()
	if sem.destroyed {
		sem.mu.Unlock()
		return errno.Unauthorized
	}
	sem.destroyed = true
	var woken []*sched.Thread
	for {
		n := sem.waiters.Pop()
		if n == nil {
			break
		}
		woken = append(woken, n.Payload.(*sched.Thread))
	}
	sem.mu.Unlock()
	for _, t := range woken {
		sem.s.ReleaseThread(t)
	}
	if len(woken) > 0 && sem.s.Current() != nil {
		sem.s.Schedule()
	}
	return errno.OK
}
