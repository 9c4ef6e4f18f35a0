// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sched

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/mvantol/go-kern/errno"
	"github.com/mvantol/go-kern/hw"
	"github.com/mvantol/go-kern/pqueue"
)

// newThread builds a control block without scheduling it.
func (s *Scheduler) newThread(name string, prio uint8, affinity uint64, entry func(any) any, arg any) *Thread {
	if len(name) > NameMax {
		name = name[:NameMax]
	}
	stack, st := hw.CreateKernelStack(s.stackSize)
	if !st.Ok() {
		panic(fmt.Sprintf("sched: stack allocation failed: %v", st))
	}
	sigStack, st := hw.CreateKernelStack(s.stackSize)
	if !st.Ok() {
		panic(fmt.Sprintf("sched: signal stack allocation failed: %v", st))
	}

	t := &Thread{
		id:       s.nextTID.Add(1),
		name:     name,
		kind:     KindKernel,
		entry:    entry,
		arg:      arg,
		prio:     prio,
		effPrio:  prio,
		affinity: affinity,
		schedCPU: -1,
		state:    Ready,
		stack:    stack,
		sigStack: sigStack,
		ctx:      hw.NewContext(),
		sigCtx:   hw.NewContext(),
		children: pqueue.New(),
		s:        s,
		done:     make(chan struct{}),
	}
	t.active = t.ctx
	t.node = pqueue.NewNode(t)
	t.infoNode = pqueue.NewNode(t)
	t.childNode = pqueue.NewNode(t)

	s.infoMu.Lock()
	if st := s.info.Push(t.infoNode); !st.Ok() {
		panic(fmt.Sprintf("sched: info push failed: %v", st))
	}
	s.infoMu.Unlock()
	s.threadCount.Add(1)
	return t
}

// CreateKernelThread creates a thread and releases it READY. The
// entry function's return value is reported through Join. Affinity 0
// means any CPU.
func (s *Scheduler) CreateKernelThread(name string, prio uint8, affinity uint64, entry func(any) any, arg any) (*Thread, errno.Status) {
	if entry == nil {
		return nil, errno.NullPointer
	}
	if prio >= PriorityLevels {
		return nil, errno.IncorrectValue
	}
	if affinity != 0 && affinity&((1<<uint(len(s.cpus)))-1) == 0 {
		return nil, errno.IncorrectValue
	}

	t := s.newThread(name, prio, affinity, entry, arg)
	if parent := s.Current(); parent != nil {
		t.parent = parent
		if st := parent.children.Push(t.childNode); !st.Ok() {
			panic(fmt.Sprintf("sched: child push failed: %v", st))
		}
	}

	go s.threadEntry(t)
	s.releaseThread(t, false, Ready, false)
	return t, errno.OK
}

// threadEntry is the entry-point wrapper: park until first election,
// record the start time, run the user entry, fall through to the exit
// point.
func (s *Scheduler) threadEntry(t *Thread) {
	t.ctx.Save()
	s.registerCurrent(t)
	t.startNS = s.p.UptimeNS()
	s.checkSignals(t)
	ret := t.entry(t.arg)
	s.exitPoint(t, ret, CauseNormal)
}

// exitPoint moves t to ZOMBIE, records its results, reparents its
// children, releases a waiting joiner and hands the CPU away. It
// never returns.
func (s *Scheduler) exitPoint(t *Thread, ret any, cause Cause) {
	if t.idle {
		panic("sched: idle thread reached the exit point")
	}

	t.mu.Lock()
	cpu := int(t.schedCPU)
	t.endNS = s.p.UptimeNS()
	t.retVal = ret
	t.cause = cause
	t.retState = errno.OK
	t.nextState = Zombie
	t.state = Zombie
	s.zombieMu.Lock()
	if st := s.zombies.Push(t.node); !st.Ok() {
		panic(fmt.Sprintf("sched: zombie push failed: %v", st))
	}
	s.zombieMu.Unlock()
	joiner := t.joiner
	parent := t.parent
	t.mu.Unlock()

	// Hand our children to our parent; orphans are detached.
	for {
		n := t.children.Pop()
		if n == nil {
			break
		}
		ch := n.Payload.(*Thread)
		ch.mu.Lock()
		ch.parent = parent
		ch.mu.Unlock()
		if parent != nil {
			parent.children.Push(n)
		}
	}

	s.unregisterCurrent()
	close(t.done)

	if joiner != nil {
		s.releaseThread(joiner, false, Ready, false)
	}

	s.exitSwitch(cpu, t)
	runtime.Goexit()
}

// exitSwitch is blockAndSwitch for a thread that will never run
// again: elect, dispatch, do not park.
func (s *Scheduler) exitSwitch(cpu int, t *Thread) {
	c := s.cpus[cpu]
	s.wakeSleepers(c)
	c.mu.Lock()
	next := c.electLocked()
	if next == nil {
		panic(fmt.Sprintf("sched: cpu %d has no runnable thread at exit", cpu))
	}
	if next == t {
		panic(fmt.Sprintf("sched: zombie %d elected", t.id))
	}
	c.current = next
	c.noteElection(next)
	c.mu.Unlock()
	s.dispatch(c, next)
}

// lockThreads takes two thread locks in address order, so two callers
// locking the same pair cannot deadlock.
func lockThreads(a, b *Thread) {
	if uintptr(unsafe.Pointer(a)) < uintptr(unsafe.Pointer(b)) {
		a.mu.Lock()
		b.mu.Lock()
	} else {
		b.mu.Lock()
		a.mu.Lock()
	}
}

func unlockThreads(a, b *Thread) {
	a.mu.Unlock()
	b.mu.Unlock()
}

// Join waits for t to exit and reaps it, returning its entry return
// value and termination cause. Joining self, idle, a cleaned thread
// or a thread that already has a joiner is refused.
func (s *Scheduler) Join(t *Thread) (any, Cause, errno.Status) {
	cur := s.Current()
	if t == nil {
		return nil, CauseNormal, errno.NullPointer
	}
	if cur == nil || t == cur || t.idle || cur.idle {
		return nil, CauseNormal, errno.Unauthorized
	}

	lockThreads(cur, t)
	if t.cleaned {
		unlockThreads(cur, t)
		return nil, CauseNormal, errno.NoSuchID
	}
	if t.joiner != nil {
		unlockThreads(cur, t)
		return nil, CauseNormal, errno.Unauthorized
	}
	if t.state == Zombie {
		ret, cause := t.retVal, t.cause
		unlockThreads(cur, t)
		s.reapZombie(t)
		return ret, cause, errno.OK
	}
	t.joiner = cur
	cur.joined = t
	cur.state = Joining
	cpu := int(cur.schedCPU)
	unlockThreads(cur, t)

	s.blockAndSwitch(cpu, cur)

	cur.mu.Lock()
	cur.joined = nil
	cur.mu.Unlock()
	t.mu.Lock()
	ret, cause := t.retVal, t.cause
	t.mu.Unlock()
	s.reapZombie(t)
	return ret, cause, errno.OK
}

// reapZombie unlinks t from the zombie list and cleans it.
func (s *Scheduler) reapZombie(t *Thread) {
	s.zombieMu.Lock()
	s.zombies.Remove(t.node, false)
	s.zombieMu.Unlock()
	s.cleanThread(t)
}

// cleanThread frees everything a dead thread owns: the resource list
// (reverse registration order), both stacks, both contexts, its list
// nodes and finally the control block bookkeeping. A thread must
// never clean itself.
func (s *Scheduler) cleanThread(t *Thread) {
	if s.Current() == t {
		panic(fmt.Sprintf("sched: thread %d attempted to clean itself", t.id))
	}
	t.mu.Lock()
	if t.cleaned {
		t.mu.Unlock()
		return
	}
	t.cleaned = true
	res := t.resources
	t.resources = nil
	parent := t.parent
	t.mu.Unlock()

	for i := len(res) - 1; i >= 0; i-- {
		if res[i].release != nil {
			res[i].release(res[i].payload)
		}
	}

	hw.DestroyKernelStack(t.stack)
	hw.DestroyKernelStack(t.sigStack)
	t.ctx = nil
	t.sigCtx = nil
	t.active = nil

	if parent != nil {
		parent.children.Remove(t.childNode, false)
	}
	s.infoMu.Lock()
	s.info.Remove(t.infoNode, false)
	s.infoMu.Unlock()
	t.node.Destroy()
	t.infoNode.Destroy()
	t.childNode.Destroy()
	s.threadCount.Add(-1)
}

// reap lazily harvests joinerless zombies once the list grows past
// the threshold. Runs on the idle threads.
func (s *Scheduler) reap() {
	for {
		s.zombieMu.Lock()
		if s.zombies.Size() <= s.reapThreshold {
			s.zombieMu.Unlock()
			return
		}
		n := s.zombies.Pop()
		if n == nil {
			s.zombieMu.Unlock()
			return
		}
		t := n.Payload.(*Thread)
		t.mu.Lock()
		hasJoiner := t.joiner != nil
		t.mu.Unlock()
		if hasJoiner {
			// Oldest zombie has a joiner on the way; put it back and
			// let Join do the reaping.
			s.zombies.Push(n)
			s.zombieMu.Unlock()
			return
		}
		s.zombieMu.Unlock()
		s.cleanThread(t)
	}
}

// Terminate asks t to exit with cause "killed". Terminating self runs
// the exit point directly; a remote target gets a KILL signal and is
// driven through its own exit point at the next delivery opportunity.
// Idle threads cannot be terminated.
func (s *Scheduler) Terminate(t *Thread) errno.Status {
	if t == nil {
		return errno.NullPointer
	}
	if t.idle {
		return errno.Unauthorized
	}
	cur := s.Current()
	if t == cur {
		s.exitPoint(t, nil, CauseKilled)
	}

	t.mu.Lock()
	switch t.state {
	case Zombie:
		t.mu.Unlock()
		return errno.Unauthorized
	case Sleeping:
		t.cause = CauseKilled
		t.signals |= SignalKill
		c := s.cpus[t.schedCPU]
		c.sleepMu.Lock()
		removed := c.sleep.Remove(t.node, false).Ok()
		c.sleepMu.Unlock()
		t.mu.Unlock()
		if removed {
			s.releaseThread(t, false, Ready, false)
		}
	case Joining:
		t.cause = CauseKilled
		t.signals |= SignalKill
		joined := t.joined
		t.mu.Unlock()
		if joined != nil {
			joined.mu.Lock()
			if joined.joiner == t {
				joined.joiner = nil
			}
			joined.mu.Unlock()
		}
		s.releaseThread(t, false, Ready, false)
	case Waiting:
		// Delivered when the primitive's release path wakes it.
		t.cause = CauseKilled
		t.signals |= SignalKill
		t.mu.Unlock()
	default: // Running or Ready
		t.cause = CauseKilled
		t.signals |= SignalKill
		t.requestSchedule.Store(true)
		cpu := t.schedCPU
		t.mu.Unlock()
		if cpu >= 0 {
			s.p.RaiseIPI(int(cpu), func() {})
		}
	}
	return errno.OK
}

// Done exposes a host-side completion signal for t; it is closed when
// the thread reaches its exit point. Boot glue uses it to wait for
// the main kernel thread without being a kernel thread itself.
func (t *Thread) Done() <-chan struct{} {
	return t.done
}

// Result returns the entry return value and termination cause. Only
// valid once Done is closed.
func (t *Thread) Result() (any, Cause) {
	select {
	case <-t.done:
	default:
		panic(fmt.Sprintf("sched: Result on live thread %d", t.id))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retVal, t.cause
}

// Harvest reaps a zombie from outside the kernel (boot glue, tests).
// In-kernel code uses Join instead.
func (s *Scheduler) Harvest(t *Thread) errno.Status {
	if t == nil {
		return errno.NullPointer
	}
	select {
	case <-t.done:
	default:
		return errno.Unauthorized
	}
	s.reapZombie(t)
	return errno.OK
}
