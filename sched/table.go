// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sched

import (
	"fmt"
	"sync"

	"github.com/mvantol/go-kern/pqueue"
)

// cpuState is the per-CPU scheduler table: one ready queue per
// priority, the highest-priority cache, the sleep list and the load
// metric. mu is the table lock; sleepMu guards the sleep list.
type cpuState struct {
	id int32

	mu      sync.Mutex
	ready   [PriorityLevels]*pqueue.Queue
	highest int // PriorityNone iff every ready list is empty
	count   int
	current *Thread
	idle    *Thread

	// idleSched is the sliding idle-election count in [0, loadWindow].
	// It increments when the idle thread is elected and decrements
	// otherwise, so a low value means a busy CPU.
	idleSched int

	sleepMu sync.Mutex
	sleep   *pqueue.Queue // keyed by wake-up deadline
}

func newCPUState(id int32) *cpuState {
	c := &cpuState{
		id:      id,
		highest: PriorityNone,
		sleep:   pqueue.New(),
	}
	for i := range c.ready {
		c.ready[i] = pqueue.New()
	}
	return c
}

// enqueueLocked places t in its priority's ready list, head first so
// Pop rotates round-robin among equals. Caller holds c.mu and t's
// thread lock; t must not be enlisted anywhere.
func (c *cpuState) enqueueLocked(t *Thread) (improved bool) {
	if st := c.ready[t.effPrio].Push(t.node); !st.Ok() {
		panic(fmt.Sprintf("sched: ready push of tid %d failed: %v", t.id, st))
	}
	c.count++
	if int(t.effPrio) < c.highest {
		c.highest = int(t.effPrio)
		improved = true
	}
	t.schedCPU = c.id
	return improved
}

// electLocked pops the oldest thread at the highest ready priority
// and refreshes the cache. Returns nil if the table is empty. Caller
// holds c.mu.
func (c *cpuState) electLocked() *Thread {
	if c.highest == PriorityNone {
		return nil
	}
	n := c.ready[c.highest].Pop()
	if n == nil {
		panic(fmt.Sprintf("sched: cpu %d highest priority cache %d points at empty list", c.id, c.highest))
	}
	c.count--
	if c.ready[c.highest].Size() == 0 {
		c.rescanHighest(c.highest)
	}
	return n.Payload.(*Thread)
}

// rescanHighest rebuilds the highest-priority cache scanning upward
// from the given level. Caller holds c.mu.
func (c *cpuState) rescanHighest(from int) {
	if from < 0 {
		from = 0
	}
	c.highest = PriorityNone
	for p := from; p < PriorityLevels; p++ {
		if c.ready[p].Size() != 0 {
			c.highest = p
			return
		}
	}
}

// noteElection updates the load metric for an election outcome.
// Caller holds c.mu.
func (c *cpuState) noteElection(t *Thread) {
	if t == c.idle {
		if c.idleSched < loadWindow {
			c.idleSched++
		}
	} else if c.idleSched > 0 {
		c.idleSched--
	}
}
