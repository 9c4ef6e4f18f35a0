// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package procfs exposes the scheduler's live threads as a virtual
// directory: one entry per thread, named by decimal TID, whose read
// yields a fixed text block with id, name, priority, type, state,
// affinity and cpu. Writes and ioctl are not supported.
package procfs

import (
	"strconv"
	"sync"

	"github.com/mvantol/go-kern/errno"
	"github.com/mvantol/go-kern/sched"
	"github.com/mvantol/go-kern/vfs"
)

// snapshotCap bounds one directory snapshot.
const snapshotCap = 1024

func init() {
	vfs.RegisterFilesystem("procfs", func(args any) (vfs.Driver, errno.Status) {
		s, ok := args.(*sched.Scheduler)
		if !ok || s == nil {
			return nil, errno.IncorrectValue
		}
		return &FS{s: s}, errno.OK
	})
}

// FS serves one procfs mount for a scheduler.
type FS struct {
	vfs.DefaultDriver
	s *sched.Scheduler
}

type dirHandle struct {
	mu   sync.Mutex
	tids []uint32
	at   int
}

type fileHandle struct {
	mu   sync.Mutex
	text string
	off  int
}

func (fs *FS) Open(relpath string, flags vfs.OpenFlags, mode uint32) (vfs.Handle, errno.Status) {
	if relpath == "" {
		buf := make([]sched.ThreadInfo, snapshotCap)
		n := fs.s.GetThreads(buf)
		dh := &dirHandle{tids: make([]uint32, 0, n)}
		for _, info := range buf[:n] {
			dh.tids = append(dh.tids, info.ID)
		}
		return dh, errno.OK
	}

	id, err := strconv.ParseUint(relpath, 10, 32)
	if err != nil {
		return nil, errno.NoSuchID
	}
	t := fs.s.FindThread(uint32(id))
	if t == nil {
		return nil, errno.NoSuchID
	}
	info := sched.ThreadInfo{
		ID:       t.ID(),
		Name:     t.Name(),
		Priority: t.Priority(),
		Kind:     t.Kind(),
		State:    t.State(),
		Affinity: t.Affinity(),
		CPU:      t.CPU(),
	}
	return &fileHandle{text: info.Render()}, errno.OK
}

func (fs *FS) Close(h vfs.Handle) errno.Status {
	return errno.OK
}

func (fs *FS) Read(h vfs.Handle, p []byte) int {
	fh, ok := h.(*fileHandle)
	if !ok {
		return -1
	}
	fh.mu.Lock()
	defer fh.mu.Unlock()
	if fh.off >= len(fh.text) {
		return 0
	}
	n := copy(p, fh.text[fh.off:])
	fh.off += n
	return n
}

func (fs *FS) ReadDir(h vfs.Handle, out *vfs.DirEntry) int {
	dh, ok := h.(*dirHandle)
	if !ok || out == nil {
		return -1
	}
	dh.mu.Lock()
	defer dh.mu.Unlock()
	if dh.at >= len(dh.tids) {
		return 0
	}
	*out = vfs.DirEntry{
		Name: strconv.FormatUint(uint64(dh.tids[dh.at]), 10),
		Type: vfs.EntryFile,
	}
	dh.at++
	return 1
}
