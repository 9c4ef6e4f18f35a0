// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hw

import "sync/atomic"

// Context is a virtual CPU context: the saved register set of a
// kernel thread. Here it is a parked goroutine plus a one-token
// resume channel.
//
// The handoff protocol is fixed: the scheduler calls Restore on the
// context it elected and then immediately parks the outgoing thread
// with Save (or lets its goroutine exit). Restore never blocks; the
// single token buffers the case where the elected thread has not
// finished parking yet, which happens when another CPU elects a
// thread that is still unwinding its old CPU's bookkeeping.
type Context struct {
	resume chan struct{}
	saved  atomic.Bool
}

// NewContext returns a fresh, unsaved context.
func NewContext() *Context {
	return &Context{resume: make(chan struct{}, 1)}
}

// Restore resumes the thread whose state this context holds. The
// caller must not touch its own CPU state afterwards: its next action
// is Save on its own context, or goroutine exit.
func (c *Context) Restore() {
	c.resume <- struct{}{}
}

// Save checkpoints the calling thread and parks it until a Restore.
// Unlike the hardware analogue it does not return a saved/resumed
// flag; resumption is the return itself.
func (c *Context) Save() {
	c.saved.Store(true)
	<-c.resume
	c.saved.Store(false)
}

// IsSaved reports whether the context is parked, ie. whether a
// Restore would hand the CPU over rather than double-resume a live
// thread.
func (c *Context) IsSaved() bool {
	return c.saved.Load()
}
