// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ksync_test

import (
	"testing"
	"time"

	"github.com/mvantol/go-kern/hw"
	"github.com/mvantol/go-kern/sched"
)

func newSched(t *testing.T, cpus int) *sched.Scheduler {
	t.Helper()
	p := hw.NewPlatform(cpus, time.Millisecond)
	s := sched.New(p, sched.Options{})
	s.Start()
	p.Start()
	t.Cleanup(p.Stop)
	return s
}

func spawn(t *testing.T, s *sched.Scheduler, name string, prio uint8, fn func() any) *sched.Thread {
	t.Helper()
	th, st := s.CreateKernelThread(name, prio, 0, func(any) any { return fn() }, nil)
	if !st.Ok() {
		t.Fatalf("CreateKernelThread(%s): %v", name, st)
	}
	return th
}

func wait(t *testing.T, s *sched.Scheduler, th *sched.Thread) any {
	t.Helper()
	select {
	case <-th.Done():
	case <-time.After(30 * time.Second):
		t.Fatalf("thread %s did not exit", th.Name())
	}
	ret, _ := th.Result()
	s.Harvest(th)
	return ret
}

func waiting(th *sched.Thread) func() bool {
	return func() bool { return th.State() == sched.Waiting }
}
