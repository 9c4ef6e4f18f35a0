// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hw realizes the platform contracts the kernel core builds
// on: virtual CPUs, the periodic tick, inter-processor interrupts,
// kernel stacks and the console. The kernel proper never reaches
// below these interfaces.
//
// The rendition is a user-space simulation. A virtual CPU is a slot
// that runs one kernel thread (a goroutine) at a time; an interrupt
// is a one-token latch that wakes a halted CPU; the tick is a
// time.Ticker. Interrupt masking is expressed at the scheduler layer
// through preemption-disable and lock scopes, so the contracts here
// stay purely mechanical.
package hw

import (
	"sync"
	"time"
)

// Platform is the fixed hardware the kernel boots on. All fields are
// set up before the first thread runs and are immutable afterwards,
// except the interrupt latches, which are written by Tick and IPI
// senders.
type Platform struct {
	ncpu     int
	tick     time.Duration
	bootTime time.Time

	mu        sync.Mutex
	callbacks []func()
	ipis      [][]func()
	started   bool

	intr []chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewPlatform returns a platform with ncpu virtual CPUs and the given
// tick period. The tick does not run until Start.
func NewPlatform(ncpu int, tick time.Duration) *Platform {
	if ncpu < 1 {
		ncpu = 1
	}
	if tick <= 0 {
		tick = time.Millisecond
	}
	p := &Platform{
		ncpu:     ncpu,
		tick:     tick,
		bootTime: time.Now(),
		ipis:     make([][]func(), ncpu),
		intr:     make([]chan struct{}, ncpu),
		stop:     make(chan struct{}),
	}
	for i := range p.intr {
		p.intr[i] = make(chan struct{}, 1)
	}
	return p
}

// CPUCount returns the number of virtual CPUs.
func (p *Platform) CPUCount() int {
	return p.ncpu
}

// TickPeriod returns the period of the scheduler tick.
func (p *Platform) TickPeriod() time.Duration {
	return p.tick
}

// UptimeNS returns nanoseconds since the platform was created.
func (p *Platform) UptimeNS() uint64 {
	return uint64(time.Since(p.bootTime))
}

// RegisterTickCallback adds fn to the functions invoked on every tick,
// before the per-CPU interrupt latches are raised. Must be called
// before Start.
func (p *Platform) RegisterTickCallback(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		panic("hw: tick callback registered after Start")
	}
	p.callbacks = append(p.callbacks, fn)
}

// Start launches the tick source.
func (p *Platform) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.tickLoop()
}

// Stop halts the tick source. Pending interrupts stay latched.
func (p *Platform) Stop() {
	close(p.stop)
	p.wg.Wait()
}

func (p *Platform) tickLoop() {
	defer p.wg.Done()
	t := time.NewTicker(p.tick)
	defer t.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-t.C:
			p.mu.Lock()
			cbs := p.callbacks
			p.mu.Unlock()
			for _, fn := range cbs {
				fn()
			}
			for cpu := 0; cpu < p.ncpu; cpu++ {
				p.latch(cpu)
			}
		}
	}
}

// RaiseIPI queues fn for execution on the target CPU and wakes it if
// halted. fn runs when that CPU next drains its interrupts, either
// from the idle halt loop or at a scheduling checkpoint.
func (p *Platform) RaiseIPI(cpu int, fn func()) {
	p.mu.Lock()
	p.ipis[cpu] = append(p.ipis[cpu], fn)
	p.mu.Unlock()
	p.latch(cpu)
}

// DrainIPIs runs and clears the interrupt functions pending for cpu.
// It is called by whatever thread currently owns the CPU.
func (p *Platform) DrainIPIs(cpu int) {
	p.mu.Lock()
	fns := p.ipis[cpu]
	p.ipis[cpu] = nil
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// WaitInterrupt halts the calling CPU until the next tick or IPI. This
// is the idle thread's halt instruction. It also returns when the
// platform stops; callers check Stopped.
func (p *Platform) WaitInterrupt(cpu int) {
	select {
	case <-p.intr[cpu]:
	case <-p.stop:
	}
}

// Stopped reports whether Stop was called.
func (p *Platform) Stopped() bool {
	select {
	case <-p.stop:
		return true
	default:
		return false
	}
}

// latch raises cpu's interrupt line. A single token is kept; interrupt
// delivery coalesces like a level-triggered line.
func (p *Platform) latch(cpu int) {
	select {
	case p.intr[cpu] <- struct{}{}:
	default:
	}
}
