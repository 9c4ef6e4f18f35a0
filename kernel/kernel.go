// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kernel wires the subsystems into a bootable whole. Boot
// follows a fixed order: platform, scheduler, VFS, the kernel
// process's descriptor table, idle threads, then the tick. The sysfs
// thread directory is mounted at /sys/threads as part of boot.
package kernel

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/mvantol/go-kern/errno"
	"github.com/mvantol/go-kern/hw"
	_ "github.com/mvantol/go-kern/kfs/procfs" // sysfs thread directory
	"github.com/mvantol/go-kern/klog"
	"github.com/mvantol/go-kern/sched"
	"github.com/mvantol/go-kern/vfs"
)

// ThreadDir is where the scheduler's thread directory is mounted.
const ThreadDir = "/sys/threads"

// Options configures Boot. The zero value is a 1-CPU kernel with a
// 1ms tick.
type Options struct {
	// CPUs is the number of virtual CPUs, minimum 1.
	CPUs int

	// TickInterval is the scheduler tick period; 0 means 1ms.
	TickInterval time.Duration

	// FDTableSize sizes the kernel process descriptor table.
	FDTableSize int

	// StackSize is handed to the scheduler for new threads.
	StackSize int

	// ReapThreshold tunes lazy zombie harvesting.
	ReapThreshold int
}

// Kernel is one booted instance. Instances are independent; tests
// boot as many as they like.
type Kernel struct {
	p   *hw.Platform
	s   *sched.Scheduler
	v   *vfs.VFS
	fdt *vfs.FDTable
	log zerolog.Logger
}

// Boot brings a kernel up and starts its tick.
func Boot(o Options) (*Kernel, errno.Status) {
	p := hw.NewPlatform(o.CPUs, o.TickInterval)
	s := sched.New(p, sched.Options{
		StackSize:     o.StackSize,
		ReapThreshold: o.ReapThreshold,
	})
	k := &Kernel{
		p:   p,
		s:   s,
		v:   vfs.New(),
		fdt: vfs.NewFDTable(o.FDTableSize),
		log: klog.Component("kernel"),
	}
	if _, st := k.v.Mount(ThreadDir, "procfs", s); !st.Ok() {
		return nil, st
	}
	s.Start()
	p.Start()
	k.log.Info().Int("cpus", p.CPUCount()).Dur("tick", p.TickPeriod()).Msg("booted")
	return k, errno.OK
}

// Shutdown stops the tick. Threads parked at that point stay parked;
// the instance is not reusable.
func (k *Kernel) Shutdown() {
	k.p.Stop()
	k.log.Info().Msg("stopped")
}

// Scheduler returns the kernel's scheduler.
func (k *Kernel) Scheduler() *sched.Scheduler { return k.s }

// VFS returns the kernel's mount tree.
func (k *Kernel) VFS() *vfs.VFS { return k.v }

// Platform returns the underlying platform.
func (k *Kernel) Platform() *hw.Platform { return k.p }

// FDTable returns the kernel process's descriptor table.
func (k *Kernel) FDTable() *vfs.FDTable { return k.fdt }

// Spawn creates a kernel thread.
func (k *Kernel) Spawn(name string, prio uint8, affinity uint64, fn func(any) any, arg any) (*sched.Thread, errno.Status) {
	return k.s.CreateKernelThread(name, prio, affinity, fn, arg)
}

// Run spawns fn as a kernel thread, waits for it to exit and harvests
// it, returning the entry's return value and termination cause. It is
// the host-side entry into kernel context.
func (k *Kernel) Run(name string, prio uint8, fn func(any) any, arg any) (any, sched.Cause, errno.Status) {
	t, st := k.Spawn(name, prio, 0, fn, arg)
	if !st.Ok() {
		return nil, sched.CauseNormal, st
	}
	<-t.Done()
	ret, cause := t.Result()
	k.s.Harvest(t)
	return ret, cause, errno.OK
}

// Open, Close, Read, Write, ReadDir and Ioctl operate on the kernel
// process's descriptor table.

func (k *Kernel) Open(path string, flags vfs.OpenFlags, mode uint32) (int, errno.Status) {
	return k.v.Open(k.fdt, path, flags, mode)
}

func (k *Kernel) Close(fd int) errno.Status {
	return k.v.Close(k.fdt, fd)
}

func (k *Kernel) Read(fd int, p []byte) int {
	return k.v.Read(k.fdt, fd, p)
}

func (k *Kernel) Write(fd int, p []byte) int {
	return k.v.Write(k.fdt, fd, p)
}

func (k *Kernel) ReadDir(fd int, out *vfs.DirEntry) int {
	return k.v.ReadDir(k.fdt, fd, out)
}

func (k *Kernel) Ioctl(fd int, op uint32, arg any) int {
	return k.v.Ioctl(k.fdt, fd, op, arg)
}
