// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sched

import (
	"sync"
	"sync/atomic"

	"github.com/mvantol/go-kern/errno"
	"github.com/mvantol/go-kern/hw"
	"github.com/mvantol/go-kern/pqueue"
)

const (
	// PriorityLevels is the number of static priority levels. 0 is
	// the highest priority, PriorityLevels-1 the lowest.
	PriorityLevels = 64

	// PriorityNone is the per-CPU "no ready thread" marker, one past
	// the lowest valid priority.
	PriorityNone = PriorityLevels

	// IdlePriority is where the per-CPU idle threads live.
	IdlePriority = PriorityLevels - 1

	// NameMax bounds thread names; longer names are truncated.
	NameMax = 32

	// loadWindow bounds the per-CPU idle scheduling counter used as
	// the advisory CPU load metric.
	loadWindow = 100
)

// State is a thread's scheduling state.
type State int32

const (
	Running State = iota
	Ready
	Sleeping
	Zombie
	Joining
	Waiting
)

func (s State) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Ready:
		return "READY"
	case Sleeping:
		return "SLEEPING"
	case Zombie:
		return "ZOMBIE"
	case Joining:
		return "JOINING"
	case Waiting:
		return "WAITING"
	}
	return "UNKNOWN"
}

// Kind distinguishes kernel threads from (future) user threads.
type Kind int32

const (
	KindKernel Kind = iota
	KindUser
)

func (k Kind) String() string {
	if k == KindUser {
		return "user"
	}
	return "kernel"
}

// Cause records why a thread terminated.
type Cause int32

const (
	CauseNormal Cause = iota
	CauseKilled
)

func (c Cause) String() string {
	if c == CauseKilled {
		return "killed"
	}
	return "normal"
}

// BlockType names the resource class a WAITING thread is parked on.
type BlockType int32

const (
	BlockNone BlockType = iota
	BlockSemaphore
	BlockMutex
	BlockIO
)

// SignalKill asks the target to run its exit point at the next
// delivery opportunity.
const SignalKill uint32 = 1 << 0

// resource is an ownership-scoped cleanup entry. Releases run in
// reverse registration order when the thread is cleaned.
type resource struct {
	payload any
	release func(any)
}

// Thread is a kernel thread control block.
//
// Mutable fields are guarded by mu (the thread lock). The intrusive
// node is guarded by whichever queue it is enlisted in; the lock
// order is thread lock first, then the container's lock.
type Thread struct {
	id   uint32
	name string
	kind Kind
	idle bool

	entry func(arg any) any
	arg   any

	mu sync.Mutex

	prio     uint8 // static
	effPrio  uint8 // may be elevated by inheritance
	affinity uint64
	schedCPU int32

	state     State
	nextState State
	blockType BlockType
	wakeupNS  uint64

	joiner *Thread // thread joining us, if any
	joined *Thread // thread we are joining, if any
	parent *Thread

	retVal   any
	cause    Cause
	retState errno.Status
	cleaned  bool

	stack    *hw.Stack
	sigStack *hw.Stack
	ctx      *hw.Context
	sigCtx   *hw.Context
	active   *hw.Context

	node      *pqueue.Node // ready / sleep / zombie / waiter membership
	infoNode  *pqueue.Node // global thread-info list membership
	childNode *pqueue.Node // membership in parent's children list
	children  *pqueue.Queue

	resources []resource

	requestSchedule atomic.Bool
	preemptOff      int32  // nesting count, only touched by the thread itself
	signals         uint32 // pending-signal mask, guarded by mu

	startNS, endNS uint64

	s    *Scheduler
	done chan struct{} // closed at the exit point
}

// ID returns the thread identifier.
func (t *Thread) ID() uint32 { return t.id }

// Name returns the (bounded) thread name.
func (t *Thread) Name() string { return t.name }

// Kind returns the thread kind.
func (t *Thread) Kind() Kind { return t.kind }

// Priority returns the static priority.
func (t *Thread) Priority() uint8 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prio
}

// EffectivePriority returns the priority the scheduler currently
// treats the thread as having; it may be elevated by inheritance.
func (t *Thread) EffectivePriority() uint8 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.effPrio
}

// Affinity returns the CPU affinity bitmap; 0 means any CPU.
func (t *Thread) Affinity() uint64 { return t.affinity }

// CPU returns the CPU the thread was last scheduled on.
func (t *Thread) CPU() int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.schedCPU
}

// State returns the current scheduling state.
func (t *Thread) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// AddResource registers a cleanup entry on the thread. The release
// callbacks run in reverse registration order when the thread is
// cleaned after ZOMBIE.
func (t *Thread) AddResource(payload any, release func(any)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resources = append(t.resources, resource{payload: payload, release: release})
}
