// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vfs implements the virtual file system: a mount-point tree
// multiplexing pluggable drivers behind a uniform
// open/close/read/write/readdir/ioctl surface, with per-process file
// descriptor tables and shared-handle reference counting.
//
// Paths are canonical and absolute. A driver registered at a path
// owns everything below it, except where a deeper driver shadows it;
// lookups pick the deepest driver whose prefix matches. Interior
// nodes without drivers act as plain directories served by a builtin
// driver that supports open, close and readdir only.
package vfs

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/mvantol/go-kern/errno"
	"github.com/mvantol/go-kern/klog"
)

// OpenFlags is the open(2)-style flag set. Only the permission bits
// are interpreted by the VFS; other bits are preserved on the
// descriptor for the driver to see.
type OpenFlags uint32

const (
	FlagRead      OpenFlags = 1 << 0
	FlagWrite     OpenFlags = 1 << 1
	FlagReadWrite OpenFlags = FlagRead | FlagWrite
)

// CanRead reports whether the flags permit read, readdir and ioctl.
func (f OpenFlags) CanRead() bool { return f&FlagRead != 0 }

// CanWrite reports whether the flags permit write.
func (f OpenFlags) CanWrite() bool { return f&FlagWrite != 0 }

// EntryType tags a directory entry.
type EntryType int32

const (
	EntryFile EntryType = iota
	EntryDir
)

func (t EntryType) String() string {
	if t == EntryDir {
		return "directory"
	}
	return "file"
}

// DirEntry is one readdir result.
type DirEntry struct {
	Name string
	Type EntryType
}

// Handle is a driver-owned cursor for an open object.
type Handle interface{}

// Driver is the operation table a file system or device registers
// with the VFS. The relative path handed to Open is the remainder
// below the driver's mount point, without a leading delimiter; ""
// addresses the mount point itself.
//
// Unsupported operations return NotSupported (or -1 for the
// count-returning ones); embed DefaultDriver to get that behavior
// for free.
type Driver interface {
	Open(relpath string, flags OpenFlags, mode uint32) (Handle, errno.Status)
	Close(h Handle) errno.Status
	Read(h Handle, p []byte) int
	Write(h Handle, p []byte) int
	ReadDir(h Handle, out *DirEntry) int
	Ioctl(h Handle, op uint32, arg any) int
	Unmount() errno.Status
}

// DefaultDriver refuses every operation except Unmount, which
// succeeds. Drivers embed it and override what they support.
type DefaultDriver struct{}

func (DefaultDriver) Open(string, OpenFlags, uint32) (Handle, errno.Status) {
	return nil, errno.NotSupported
}
func (DefaultDriver) Close(Handle) errno.Status     { return errno.NotSupported }
func (DefaultDriver) Read(Handle, []byte) int       { return -1 }
func (DefaultDriver) Write(Handle, []byte) int      { return -1 }
func (DefaultDriver) ReadDir(Handle, *DirEntry) int { return -1 }
func (DefaultDriver) Ioctl(Handle, uint32, any) int { return -1 }
func (DefaultDriver) Unmount() errno.Status         { return errno.OK }

// Mount is the handle RegisterDriver returns; it identifies the
// registration for unregister.
type Mount struct {
	v    *VFS
	n    *node
	drv  Driver
	path string
}

// Path returns the mount point path.
func (m *Mount) Path() string { return m.path }

// VFS is a mount tree. Each kernel has exactly one, created by New.
type VFS struct {
	mu   sync.Mutex // mount-point lock
	root *node
	log  zerolog.Logger
}

// New returns an empty VFS.
func New() *VFS {
	return &VFS{
		root: &node{},
		log:  klog.Component("vfs"),
	}
}

// RegisterDriver attaches drv at path, creating the intermediate
// nodes the path needs. Registering over an existing driver fails
// with IncorrectValue.
func (v *VFS) RegisterDriver(path string, drv Driver) (*Mount, errno.Status) {
	if drv == nil {
		return nil, errno.NullPointer
	}
	clean, st := CleanPath(path)
	if !st.Ok() {
		return nil, st
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	cur := v.root
	for _, seg := range splitSegments(clean) {
		ch := cur.findChild(seg)
		if ch == nil {
			ch = cur.insertChild(seg)
		}
		cur = ch
	}
	if cur.drv != nil {
		return nil, errno.IncorrectValue
	}
	cur.drv = drv
	v.log.Debug().Str("path", clean).Msg("driver registered")
	return &Mount{v: v, n: cur, drv: drv, path: clean}, errno.OK
}

// UnregisterDriver removes a registration and prunes every node whose
// subtree no longer carries a driver.
func (v *VFS) UnregisterDriver(m *Mount) errno.Status {
	if m == nil || m.v != v {
		return errno.IncorrectValue
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	n := m.n
	if n == nil || n.drv != m.drv {
		return errno.NoSuchID
	}
	n.drv = nil
	m.n = nil
	// Leaves without drivers cannot exist, so pruning bottom-up from
	// the cleared node is complete.
	for at := n; at != nil && at != v.root; {
		parent := at.parent
		if at.drv == nil && at.firstChild == nil {
			at.unlink()
		}
		at = parent
	}
	v.log.Debug().Str("path", m.path).Msg("driver unregistered")
	return errno.OK
}

// FindDriver resolves the driver responsible for path and the
// driver-relative remainder. Exposed for drivers that stack.
func (v *VFS) FindDriver(path string) (Driver, string, errno.Status) {
	clean, st := CleanPath(path)
	if !st.Ok() {
		return nil, "", st
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	n := findNode(v.root, clean, true, false)
	if n == nil {
		return nil, "", errno.NoSuchID
	}
	return n.drv, relPath(clean, n), errno.OK
}

// relPath slices the driver-relative remainder of clean below n,
// without a leading delimiter.
func relPath(clean string, n *node) string {
	if n.off >= len(clean) {
		return ""
	}
	rel := clean[n.off:]
	for len(rel) > 0 && rel[0] == Delimiter {
		rel = rel[1:]
	}
	return rel
}
