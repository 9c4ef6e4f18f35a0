// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sched implements the thread scheduler: per-CPU
// priority-ordered ready queues, sleep and zombie management,
// load-based placement and the priority-update interlock used by the
// mutex for priority inheritance.
//
// The policy is strict priority preemption with per-CPU ready queues;
// the lowest priority number wins. Threads of equal priority rotate
// round-robin: a released thread enters its priority list at the head
// and elections take from the tail.
package sched

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/mvantol/go-kern/errno"
	"github.com/mvantol/go-kern/hw"
	"github.com/mvantol/go-kern/internal/gid"
	"github.com/mvantol/go-kern/klog"
	"github.com/mvantol/go-kern/pqueue"
)

// Options tunes a Scheduler.
type Options struct {
	// StackSize is the kernel stack size for new threads; 0 means
	// hw.DefaultStackSize.
	StackSize int

	// ReapThreshold is the zombie-list length above which the idle
	// threads start harvesting joinerless zombies. 0 means the
	// default of 256.
	ReapThreshold int

	// Logger overrides the scheduler's component logger.
	Logger *zerolog.Logger
}

// Scheduler owns the thread control blocks and every per-CPU table.
type Scheduler struct {
	p   *hw.Platform
	log zerolog.Logger

	cpus []*cpuState

	zombieMu sync.Mutex
	zombies  *pqueue.Queue

	infoMu sync.Mutex
	info   *pqueue.Queue

	curMu    sync.RWMutex
	curByGID map[uint64]*Thread

	threadCount atomic.Int32
	nextTID     atomic.Uint32

	stackSize     int
	reapThreshold int

	// booted flips once the idle threads run; before that, released
	// threads do not demand reschedules (the very first scheduling
	// round happens when the tick starts).
	booted atomic.Bool
}

// New builds a scheduler for the platform. Idle threads are not
// started until Start.
func New(p *hw.Platform, opts Options) *Scheduler {
	s := &Scheduler{
		p:             p,
		log:           klog.Component("sched"),
		zombies:       pqueue.New(),
		info:          pqueue.New(),
		curByGID:      make(map[uint64]*Thread),
		stackSize:     opts.StackSize,
		reapThreshold: opts.ReapThreshold,
	}
	if opts.Logger != nil {
		s.log = *opts.Logger
	}
	if s.stackSize <= 0 {
		s.stackSize = hw.DefaultStackSize
	}
	if s.reapThreshold <= 0 {
		s.reapThreshold = 256
	}
	for i := 0; i < p.CPUCount(); i++ {
		s.cpus = append(s.cpus, newCPUState(int32(i)))
	}
	p.RegisterTickCallback(s.onTick)
	return s
}

// Start creates the per-CPU idle threads and opens scheduling. The
// platform tick must be started by the caller afterwards.
func (s *Scheduler) Start() {
	for _, c := range s.cpus {
		idle := s.newThread(fmt.Sprintf("idle-%d", c.id), IdlePriority, 1<<uint(c.id), nil, nil)
		idle.idle = true
		idle.state = Running
		idle.schedCPU = c.id
		c.idle = idle
		c.current = idle
		cpu := c
		go func() {
			s.registerCurrent(idle)
			s.idleLoop(cpu, idle)
		}()
	}
	s.booted.Store(true)
	s.log.Info().Int("cpus", len(s.cpus)).Msg("scheduler started")
}

// onTick marks every CPU's non-idle current thread for rotation. The
// actual switch happens at that thread's next scheduling point; the
// tick also wakes halted CPUs, which drives the sleep-list scan.
func (s *Scheduler) onTick() {
	for _, c := range s.cpus {
		c.mu.Lock()
		cur := c.current
		c.mu.Unlock()
		if cur != nil && !cur.idle {
			cur.requestSchedule.Store(true)
		}
	}
}

// idleLoop is the body of a per-CPU idle thread: halt until an
// interrupt, drain IPIs, lazily reap zombies, reschedule.
func (s *Scheduler) idleLoop(c *cpuState, idle *Thread) {
	for {
		s.p.WaitInterrupt(int(c.id))
		if s.p.Stopped() {
			return
		}
		s.p.DrainIPIs(int(c.id))
		s.reap()
		s.Schedule()
	}
}

// Current returns the thread running the calling goroutine, or nil if
// the caller is not a kernel thread.
func (s *Scheduler) Current() *Thread {
	s.curMu.RLock()
	t := s.curByGID[gid.Get()]
	s.curMu.RUnlock()
	return t
}

func (s *Scheduler) registerCurrent(t *Thread) {
	s.curMu.Lock()
	s.curByGID[gid.Get()] = t
	s.curMu.Unlock()
}

func (s *Scheduler) unregisterCurrent() {
	s.curMu.Lock()
	delete(s.curByGID, gid.Get())
	s.curMu.Unlock()
}

// CPUCount returns the number of CPUs the scheduler runs.
func (s *Scheduler) CPUCount() int {
	return len(s.cpus)
}

// CPULoad returns the advisory load metric for cpu: the bounded idle
// election count, where a lower value means a busier CPU.
func (s *Scheduler) CPULoad(cpu int) int {
	c := s.cpus[cpu]
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idleSched
}

// ThreadCount returns the number of live (not yet cleaned) threads.
func (s *Scheduler) ThreadCount() int {
	return int(s.threadCount.Load())
}

// leastLoaded picks the target CPU for a release: the minimum
// cpu_load among the CPUs allowed by the affinity mask (all CPUs when
// the mask is 0). Panics if the mask admits no CPU.
func (s *Scheduler) leastLoaded(affinity uint64) *cpuState {
	var best *cpuState
	bestLoad := 0
	for _, c := range s.cpus {
		if affinity != 0 && affinity&(1<<uint(c.id)) == 0 {
			continue
		}
		c.mu.Lock()
		load := c.idleSched
		c.mu.Unlock()
		if best == nil || load < bestLoad {
			best, bestLoad = c, load
		}
	}
	if best == nil {
		panic(fmt.Sprintf("sched: affinity %#x admits no CPU", affinity))
	}
	return best
}

// releaseThread places t on a ready queue and demands a reschedule on
// the target CPU if the release improved its highest priority.
func (s *Scheduler) releaseThread(t *Thread, alreadyLocked bool, newState State, sameCPU bool) {
	var c *cpuState
	if sameCPU && t.schedCPU >= 0 {
		c = s.cpus[t.schedCPU]
	} else {
		c = s.leastLoaded(t.affinity)
	}

	if !alreadyLocked {
		t.mu.Lock()
	}
	if t.state == Zombie {
		// Zombies are never re-queued.
		if !alreadyLocked {
			t.mu.Unlock()
		}
		return
	}
	t.state = newState
	t.blockType = BlockNone

	c.mu.Lock()
	improved := c.enqueueLocked(t)
	c.mu.Unlock()
	if !alreadyLocked {
		t.mu.Unlock()
	}

	if improved && s.booted.Load() {
		s.demandSchedule(c)
	}
}

// ReleaseThread makes a WAITING thread READY again. It is the entry
// point the synchronization primitives use after popping a waiter.
func (s *Scheduler) ReleaseThread(t *Thread) {
	s.releaseThread(t, false, Ready, false)
}

// demandSchedule asks the target CPU to re-run its election. A local
// demand is a flag the caller honors at its next scheduling point; a
// remote demand is an IPI, which also wakes the CPU if it halted.
func (s *Scheduler) demandSchedule(c *cpuState) {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur != nil {
		cur.requestSchedule.Store(true)
	}
	self := s.Current()
	if self == nil || self.schedCPU != c.id {
		cpu := int(c.id)
		s.p.RaiseIPI(cpu, func() {})
	}
}

// wakeSleepers releases every sleeping thread on c whose deadline has
// passed. The sleep list is keyed by deadline with the earliest at
// the tail, so the scan stops at the first future deadline.
func (s *Scheduler) wakeSleepers(c *cpuState) {
	now := s.p.UptimeNS()
	for {
		c.sleepMu.Lock()
		n := c.sleep.Pop()
		if n == nil {
			c.sleepMu.Unlock()
			return
		}
		if n.Priority() > now {
			// Earliest deadline still in the future; put it back.
			if st := c.sleep.PushPrio(n, n.Priority()); !st.Ok() {
				panic(fmt.Sprintf("sched: sleep re-push failed: %v", st))
			}
			c.sleepMu.Unlock()
			return
		}
		t := n.Payload.(*Thread)
		c.sleepMu.Unlock()
		s.releaseThread(t, false, Ready, false)
	}
}

// Schedule is a voluntary scheduling point. The current thread gives
// the CPU up if a higher-priority thread is ready, or rotates with an
// equal-priority one when a reschedule was requested.
func (s *Scheduler) Schedule() {
	s.scheduleNoInt(false)
}

// Yield forces rotation among equal-priority threads.
func (s *Scheduler) Yield() {
	s.scheduleNoInt(true)
}

func (s *Scheduler) scheduleNoInt(force bool) {
	cur := s.Current()
	if cur == nil {
		panic("sched: schedule outside a kernel thread")
	}
	s.checkSignals(cur)

	cpu := int(cur.schedCPU)
	c := s.cpus[cpu]
	s.p.DrainIPIs(cpu)
	s.wakeSleepers(c)

	cur.mu.Lock()
	if cur.state != Running {
		panic(fmt.Sprintf("sched: schedule on %s thread %d", cur.state, cur.id))
	}
	if cur.preemptOff > 0 {
		cur.mu.Unlock()
		return
	}

	c.mu.Lock()
	best := c.highest
	rotate := force || cur.requestSchedule.Load()
	displace := best != PriorityNone &&
		(best < int(cur.effPrio) || (best == int(cur.effPrio) && rotate))
	if !displace {
		cur.requestSchedule.Store(false)
		c.mu.Unlock()
		cur.mu.Unlock()
		return
	}

	// Re-queue the current thread; it re-enters LIFO so among equals
	// the displaced thread runs last.
	cur.state = Ready
	c.enqueueLocked(cur)
	next := c.electLocked()
	c.current = next
	c.noteElection(next)
	c.mu.Unlock()

	if next == cur {
		cur.state = Running
		cur.requestSchedule.Store(false)
		cur.mu.Unlock()
		return
	}
	cur.mu.Unlock()

	s.dispatch(c, next)
	cur.ctx.Save()
	s.checkSignals(cur)
}

// blockAndSwitch hands the CPU over after the current thread parked
// itself elsewhere (waiter queue, sleep list, join limbo). It always
// elects a replacement; the idle thread guarantees one exists.
//
// The cpu argument is the CPU the thread held when it blocked; by the
// time this runs, another CPU may already have re-elected the thread,
// which the one-token context channel absorbs.
func (s *Scheduler) blockAndSwitch(cpu int, cur *Thread) {
	if cur.preemptOff > 0 {
		panic(fmt.Sprintf("sched: thread %d blocks with preemption disabled", cur.id))
	}
	c := s.cpus[cpu]
	s.wakeSleepers(c)

	c.mu.Lock()
	next := c.electLocked()
	if next == nil {
		panic(fmt.Sprintf("sched: cpu %d has no runnable thread", cpu))
	}
	c.current = next
	c.noteElection(next)
	c.mu.Unlock()

	if next == cur {
		// Already released back to this CPU before the switch.
		next.mu.Lock()
		next.state = Running
		next.requestSchedule.Store(false)
		next.mu.Unlock()
		return
	}

	s.dispatch(c, next)
	cur.ctx.Save()
	s.checkSignals(cur)
}

// dispatch marks next RUNNING on c and restores its context. The
// caller must park or exit immediately afterwards.
func (s *Scheduler) dispatch(c *cpuState, next *Thread) {
	next.mu.Lock()
	next.state = Running
	next.schedCPU = c.id
	next.requestSchedule.Store(false)
	next.mu.Unlock()
	next.ctx.Restore()
}

// Sleep suspends the current thread for at least ns nanoseconds. The
// wake-up is driven by the tick, so the actual delay is rounded up to
// tick resolution. Idle threads may not sleep.
func (s *Scheduler) Sleep(ns uint64) errno.Status {
	cur := s.Current()
	if cur == nil {
		return errno.Unauthorized
	}
	if cur.idle {
		return errno.Unauthorized
	}

	cur.mu.Lock()
	cpu := int(cur.schedCPU)
	c := s.cpus[cpu]
	cur.wakeupNS = s.p.UptimeNS() + ns
	cur.state = Sleeping
	c.sleepMu.Lock()
	if st := c.sleep.PushPrio(cur.node, cur.wakeupNS); !st.Ok() {
		panic(fmt.Sprintf("sched: sleep push failed: %v", st))
	}
	c.sleepMu.Unlock()
	cur.mu.Unlock()

	s.blockAndSwitch(cpu, cur)
	return errno.OK
}

// UpdatePriority changes a thread's effective priority, re-filing its
// ready-list node if it is queued. The mutex uses this for priority
// inheritance and its roll-back.
func (s *Scheduler) UpdatePriority(t *Thread, prio uint8) errno.Status {
	if t == nil {
		return errno.NullPointer
	}
	if prio >= PriorityLevels {
		return errno.IncorrectValue
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	old := t.effPrio
	if old == prio {
		return errno.OK
	}
	t.effPrio = prio
	if t.state != Ready {
		// The next release places it correctly.
		return errno.OK
	}
	c := s.cpus[t.schedCPU]
	c.mu.Lock()
	if st := c.ready[old].Remove(t.node, false); st.Ok() {
		if st := c.ready[prio].Push(t.node); !st.Ok() {
			panic(fmt.Sprintf("sched: priority re-file failed: %v", st))
		}
		if int(prio) < c.highest {
			c.highest = int(prio)
		} else if c.highest == int(old) && c.ready[old].Size() == 0 {
			c.rescanHighest(c.highest)
		}
	}
	c.mu.Unlock()
	return errno.OK
}

// DisablePreemption keeps the current thread on its CPU across
// scheduling points until the matching EnablePreemption.
func (s *Scheduler) DisablePreemption() {
	cur := s.Current()
	if cur == nil {
		panic("sched: DisablePreemption outside a kernel thread")
	}
	cur.preemptOff++
}

// EnablePreemption re-enables preemption for the current thread.
func (s *Scheduler) EnablePreemption() {
	cur := s.Current()
	if cur == nil {
		panic("sched: EnablePreemption outside a kernel thread")
	}
	cur.preemptOff--
	if cur.preemptOff < 0 {
		panic("sched: unbalanced EnablePreemption")
	}
}

// checkSignals delivers pending signals to t. KILL drives the thread
// through its exit point; this never returns in that case.
func (s *Scheduler) checkSignals(t *Thread) {
	t.mu.Lock()
	pending := t.signals
	t.signals = 0
	cause := t.cause
	t.mu.Unlock()
	if pending&SignalKill != 0 {
		s.exitPoint(t, nil, cause)
	}
}

// Uptime returns platform uptime in nanoseconds.
func (s *Scheduler) Uptime() uint64 {
	return s.p.UptimeNS()
}

// PrepareWait marks the current thread WAITING on the given resource
// class and enlists it in waiters, priority-ordered (static priority,
// best waiter at the tail) or FIFO. The caller holds the primitive's
// lock; the returned thread and CPU are what Block needs after that
// lock is dropped.
func (s *Scheduler) PrepareWait(bt BlockType, waiters *pqueue.Queue, byPriority bool) (*Thread, int) {
	cur := s.Current()
	if cur == nil {
		panic("sched: wait outside a kernel thread")
	}
	if cur.idle {
		panic("sched: idle thread may not wait")
	}
	cur.mu.Lock()
	cpu := int(cur.schedCPU)
	cur.state = Waiting
	cur.blockType = bt
	var st errno.Status
	if byPriority {
		st = waiters.PushPrio(cur.node, uint64(cur.prio))
	} else {
		st = waiters.Push(cur.node)
	}
	if !st.Ok() {
		panic(fmt.Sprintf("sched: waiter push failed: %v", st))
	}
	cur.mu.Unlock()
	return cur, cpu
}

// Block parks a thread prepared by PrepareWait. It returns when a
// ReleaseThread elects the thread again.
func (s *Scheduler) Block(cur *Thread, cpu int) {
	s.blockAndSwitch(cpu, cur)
}
