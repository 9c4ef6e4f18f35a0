// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"fmt"
	"sync"

	"github.com/mvantol/go-kern/errno"
	"github.com/mvantol/go-kern/pqueue"
)

// DefaultFDTableSize is the number of descriptors a fresh table
// holds.
const DefaultFDTableSize = 128

// SharedFD is the state shared by all descriptors that refer to one
// open object, across table duplications. It is freed when the last
// reference drops.
type SharedFD struct {
	mu   sync.Mutex
	path string
	h    Handle
	drv  Driver
	refs int32
}

// Path returns the absolute path the object was opened under.
func (s *SharedFD) Path() string { return s.path }

// FD is one per-process descriptor entry.
type FD struct {
	idx    int
	flags  OpenFlags
	mode   uint32
	shared *SharedFD
}

// FDTable is a per-process descriptor table: a dense vector indexed
// by descriptor number plus a pool of free slots.
type FDTable struct {
	mu   sync.Mutex
	fds  []*FD
	free *pqueue.Queue
	// slot nodes are allocated once and cycle through the free pool.
	nodes []*pqueue.Node
}

// NewFDTable returns a table with size descriptors (at least
// DefaultFDTableSize).
func NewFDTable(size int) *FDTable {
	if size < DefaultFDTableSize {
		size = DefaultFDTableSize
	}
	t := &FDTable{
		fds:   make([]*FD, size),
		free:  pqueue.New(),
		nodes: make([]*pqueue.Node, size),
	}
	// Key each slot by its number so the lowest free descriptor comes
	// out first.
	for i := 0; i < size; i++ {
		t.nodes[i] = pqueue.NewNode(i)
		if st := t.free.PushPrio(t.nodes[i], uint64(i)); !st.Ok() {
			panic(fmt.Sprintf("vfs: free pool push failed: %v", st))
		}
	}
	return t
}

// alloc pops a free slot and installs an FD for shared.
func (t *FDTable) alloc(flags OpenFlags, mode uint32, shared *SharedFD) (int, errno.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.free.Pop()
	if n == nil {
		return -1, errno.OutOfMemory
	}
	idx := n.Payload.(int)
	t.fds[idx] = &FD{idx: idx, flags: flags, mode: mode, shared: shared}
	return idx, errno.OK
}

// get resolves a descriptor number.
func (t *FDTable) get(fd int) (*FD, errno.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= len(t.fds) || t.fds[fd] == nil {
		return nil, errno.NoSuchID
	}
	return t.fds[fd], errno.OK
}

// Dup deep-copies the per-process entries while sharing the
// underlying objects, bumping each reference count. Parent and child
// then close independently.
func (t *FDTable) Dup() *FDTable {
	t.mu.Lock()
	defer t.mu.Unlock()
	nt := NewFDTable(len(t.fds))
	for i, fd := range t.fds {
		if fd == nil {
			continue
		}
		fd.shared.mu.Lock()
		fd.shared.refs++
		fd.shared.mu.Unlock()
		cp := *fd
		nt.fds[i] = &cp
		nt.free.Remove(nt.nodes[i], true)
	}
	return nt
}

// Destroy closes every occupied descriptor and drains the pool. The
// table must not be used afterwards.
func (t *FDTable) Destroy() {
	t.mu.Lock()
	fds := t.fds
	t.fds = nil
	t.mu.Unlock()
	for _, fd := range fds {
		if fd != nil {
			releaseShared(fd.shared)
		}
	}
	for t.free.Pop() != nil {
	}
	t.free.Destroy()
}

// releaseShared drops one reference, closing the driver object with
// the last one.
func releaseShared(s *SharedFD) {
	s.mu.Lock()
	s.refs--
	last := s.refs == 0
	if s.refs < 0 {
		panic("vfs: shared descriptor refcount underflow")
	}
	s.mu.Unlock()
	if last {
		s.drv.Close(s.h)
	}
}
