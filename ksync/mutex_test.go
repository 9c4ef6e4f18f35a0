// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ksync_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mvantol/go-kern/errno"
	"github.com/mvantol/go-kern/internal/testutil"
	"github.com/mvantol/go-kern/ksync"
	"github.com/mvantol/go-kern/sched"
)

// TestMutualExclusionCounting: 100 equal-priority threads each take
// the mutex 100 times and do 100 increments inside; the total must be
// exact.
func TestMutualExclusionCounting(t *testing.T) {
	if testing.Short() {
		t.Skip("long counting scenario")
	}
	s := newSched(t, 2)
	var mtx ksync.Mutex
	if st := mtx.Init(s, 0); !st.Ok() {
		t.Fatalf("Init: %v", st)
	}

	const (
		threads = 100
		outer   = 100
		inner   = 100
	)
	var counter int64 // guarded by mtx

	var ths []*sched.Thread
	for i := 0; i < threads; i++ {
		ths = append(ths, spawn(t, s, "inc", 0, func() any {
			for j := 0; j < outer; j++ {
				if st := mtx.Lock(); !st.Ok() {
					return st
				}
				for k := 0; k < inner; k++ {
					counter++
				}
				if st := mtx.Unlock(); !st.Ok() {
					return st
				}
			}
			return errno.OK
		}))
	}
	for _, th := range ths {
		if ret := wait(t, s, th); ret != errno.OK {
			t.Fatalf("worker returned %v", ret)
		}
	}
	if counter != threads*outer*inner {
		t.Errorf("counter = %d, want %d", counter, threads*outer*inner)
	}
}

// TestPriorityInheritance walks the elevation table: A(10) owns the
// mutex; B(12) does not boost, C(7) raises A to 7, D(9) leaves A at
// 7; on unlock A rolls back to 10 and the mutex goes to C, then D,
// then B.
func TestPriorityInheritance(t *testing.T) {
	s := newSched(t, 1)
	var mtx ksync.Mutex
	if st := mtx.Init(s, ksync.PriorityInherit); !st.Ok() {
		t.Fatalf("Init: %v", st)
	}

	var mu sync.Mutex
	var order []string
	var release atomic.Int32

	a := spawn(t, s, "A", 10, func() any {
		if st := mtx.Lock(); !st.Ok() {
			return st
		}
		// Sleep rather than spin so the lower-priority contenders
		// get the CPU to reach their Lock calls.
		for release.Load() == 0 {
			s.Sleep(1_000_000)
		}
		return mtx.Unlock()
	})
	testutil.WaitFor(t, "A owns mutex", 5*time.Second, func() bool {
		return mtx.Owner() == a
	})
	if got := a.EffectivePriority(); got != 10 {
		t.Fatalf("A starts at effective %d, want 10", got)
	}

	contender := func(name string) func() any {
		return func() any {
			if st := mtx.Lock(); !st.Ok() {
				return st
			}
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return mtx.Unlock()
		}
	}

	b := spawn(t, s, "B", 12, contender("B"))
	testutil.WaitFor(t, "B blocked", 5*time.Second, waiting(b))
	if got := a.EffectivePriority(); got != 10 {
		t.Errorf("after B waits: A effective %d, want 10 (no boost from lower priority)", got)
	}

	c := spawn(t, s, "C", 7, contender("C"))
	testutil.WaitFor(t, "C blocked", 5*time.Second, waiting(c))
	testutil.WaitFor(t, "A boosted to 7", 5*time.Second, func() bool {
		return a.EffectivePriority() == 7
	})

	d := spawn(t, s, "D", 9, contender("D"))
	testutil.WaitFor(t, "D blocked", 5*time.Second, waiting(d))
	if got := a.EffectivePriority(); got != 7 {
		t.Errorf("after D waits: A effective %d, want 7 (already stronger)", got)
	}

	release.Store(1)
	for _, th := range []*sched.Thread{a, b, c, d} {
		if ret := wait(t, s, th); ret != errno.OK {
			t.Fatalf("%s returned %v", th.Name(), ret)
		}
	}

	if got := a.Priority(); got != 10 {
		t.Errorf("A static priority %d after unlock, want 10", got)
	}
	mu.Lock()
	defer mu.Unlock()
	want := []string{"C", "D", "B"}
	if len(order) != len(want) {
		t.Fatalf("handoff order %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("handoff order %v, want %v", order, want)
		}
	}
}

func TestMutexRecursive(t *testing.T) {
	s := newSched(t, 1)
	var mtx ksync.Mutex
	mtx.Init(s, ksync.Recursive)
	ret := wait(t, s, spawn(t, s, "rec", 10, func() any {
		if st := mtx.Lock(); !st.Ok() {
			return st
		}
		if st := mtx.Lock(); !st.Ok() {
			return st
		}
		st, depth := mtx.TryLock()
		if !st.Ok() || depth != 3 {
			return errno.IncorrectValue
		}
		for i := 0; i < 3; i++ {
			if st := mtx.Unlock(); !st.Ok() {
				return st
			}
		}
		// Fully released now.
		if mtx.Owner() != nil {
			return errno.IncorrectValue
		}
		return errno.OK
	}))
	if ret != errno.OK {
		t.Fatalf("recursive scenario returned %v", ret)
	}
}

func TestMutexNonRecursiveRelock(t *testing.T) {
	s := newSched(t, 1)
	var mtx ksync.Mutex
	mtx.Init(s, 0)
	ret := wait(t, s, spawn(t, s, "relock", 10, func() any {
		mtx.Lock()
		defer mtx.Unlock()
		return mtx.Lock()
	}))
	if ret != errno.Unauthorized {
		t.Errorf("re-lock of non-recursive mutex: %v, want UNAUTHORIZED_ACTION", ret)
	}
}

func TestMutexUnlockNotOwner(t *testing.T) {
	s := newSched(t, 1)
	var mtx ksync.Mutex
	mtx.Init(s, 0)

	var done atomic.Int32
	owner := spawn(t, s, "owner", 10, func() any {
		mtx.Lock()
		for done.Load() == 0 {
			s.Yield()
		}
		return mtx.Unlock()
	})
	testutil.WaitFor(t, "mutex owned", 5*time.Second, func() bool {
		return mtx.Owner() == owner
	})

	ret := wait(t, s, spawn(t, s, "intruder", 10, func() any {
		return mtx.Unlock()
	}))
	if ret != errno.Unauthorized {
		t.Errorf("unlock by non-owner: %v, want UNAUTHORIZED_ACTION", ret)
	}
	done.Store(1)
	wait(t, s, owner)
}

func TestMutexTryLock(t *testing.T) {
	s := newSched(t, 1)
	var mtx ksync.Mutex
	mtx.Init(s, 0)

	var hold atomic.Int32
	owner := spawn(t, s, "owner", 10, func() any {
		mtx.Lock()
		for hold.Load() == 0 {
			s.Yield()
		}
		return mtx.Unlock()
	})
	testutil.WaitFor(t, "mutex owned", 5*time.Second, func() bool {
		return mtx.Owner() == owner
	})

	ret := wait(t, s, spawn(t, s, "trier", 10, func() any {
		st, _ := mtx.TryLock()
		return st
	}))
	if ret != errno.Blocked {
		t.Errorf("TryLock on held mutex: %v, want BLOCKED", ret)
	}
	hold.Store(1)
	wait(t, s, owner)
}

func TestMutexDestroyWithWaiters(t *testing.T) {
	s := newSched(t, 1)
	var mtx ksync.Mutex
	mtx.Init(s, 0)

	var hold atomic.Int32
	owner := spawn(t, s, "owner", 10, func() any {
		mtx.Lock()
		for hold.Load() == 0 {
			s.Yield()
		}
		return errno.OK
	})
	testutil.WaitFor(t, "mutex owned", 5*time.Second, func() bool {
		return mtx.Owner() == owner
	})

	var ths []*sched.Thread
	for i := 0; i < 3; i++ {
		th := spawn(t, s, "waiter", 10, func() any {
			return mtx.Lock()
		})
		testutil.WaitFor(t, "waiter blocked", 5*time.Second, waiting(th))
		ths = append(ths, th)
	}

	if st := mtx.Destroy(); !st.Ok() {
		t.Fatalf("Destroy: %v", st)
	}
	for _, th := range ths {
		if ret := wait(t, s, th); ret != errno.Destroyed {
			t.Errorf("waiter returned %v, want DESTROYED", ret)
		}
	}
	hold.Store(1)
	wait(t, s, owner)
}
