// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import "github.com/mvantol/go-kern/errno"

// Open resolves path, opens it through the responsible driver and
// allocates a descriptor in t. Returns the descriptor number, or -1
// with the failure status.
func (v *VFS) Open(t *FDTable, path string, flags OpenFlags, mode uint32) (int, errno.Status) {
	if t == nil {
		return -1, errno.NullPointer
	}
	clean, st := CleanPath(path)
	if !st.Ok() {
		return -1, st
	}

	v.mu.Lock()
	n := findNode(v.root, clean, true, false)
	var drv Driver
	var rel string
	if n != nil && n.drv != nil {
		drv = n.drv
		rel = relPath(clean, n)
	} else {
		// No driver on the prefix; a transient directory node still
		// answers open/readdir through the builtin driver.
		exact := findNode(v.root, clean, false, true)
		if exact == nil {
			v.mu.Unlock()
			return -1, errno.NoSuchID
		}
		drv = &genericDriver{v: v, n: exact}
		rel = ""
	}
	v.mu.Unlock()

	h, st := drv.Open(rel, flags, mode)
	if !st.Ok() {
		return -1, st
	}

	shared := &SharedFD{path: clean, h: h, drv: drv, refs: 1}
	fd, st := t.alloc(flags, mode, shared)
	if !st.Ok() {
		drv.Close(h)
		return -1, st
	}
	return fd, errno.OK
}

// Close releases a descriptor, closing the underlying object when the
// last reference drops, and returns the slot to the free pool.
func (v *VFS) Close(t *FDTable, fd int) errno.Status {
	if t == nil {
		return errno.NullPointer
	}
	t.mu.Lock()
	if fd < 0 || fd >= len(t.fds) || t.fds[fd] == nil {
		t.mu.Unlock()
		return errno.NoSuchID
	}
	entry := t.fds[fd]
	t.fds[fd] = nil
	t.free.PushPrio(t.nodes[fd], uint64(fd))
	t.mu.Unlock()

	releaseShared(entry.shared)
	return errno.OK
}

// Read reads from a descriptor into p; the descriptor must have been
// opened with read permission. Returns the driver's byte count or -1.
func (v *VFS) Read(t *FDTable, fd int, p []byte) int {
	entry, st := t.get(fd)
	if !st.Ok() {
		return -1
	}
	if !entry.flags.CanRead() {
		return -1
	}
	return entry.shared.drv.Read(entry.shared.h, p)
}

// Write writes p through a descriptor opened with write permission.
// Returns the driver's byte count or -1.
func (v *VFS) Write(t *FDTable, fd int, p []byte) int {
	entry, st := t.get(fd)
	if !st.Ok() {
		return -1
	}
	if !entry.flags.CanWrite() {
		return -1
	}
	return entry.shared.drv.Write(entry.shared.h, p)
}

// ReadDir emits the next directory entry. 1 means more entries
// remain, 0 end of stream, -1 error. Requires read permission.
func (v *VFS) ReadDir(t *FDTable, fd int, out *DirEntry) int {
	entry, st := t.get(fd)
	if !st.Ok() {
		return -1
	}
	if !entry.flags.CanRead() {
		return -1
	}
	return entry.shared.drv.ReadDir(entry.shared.h, out)
}

// Ioctl forwards an opaque operation to the driver. Requires read
// permission. The VFS defines no codes of its own.
func (v *VFS) Ioctl(t *FDTable, fd int, op uint32, arg any) int {
	entry, st := t.get(fd)
	if !st.Ok() {
		return -1
	}
	if !entry.flags.CanRead() {
		return -1
	}
	return entry.shared.drv.Ioctl(entry.shared.h, op, arg)
}
