// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hostfs bridges a slice of the host into the kernel's VFS.
// It currently exposes a single read-only "mounts" file rendering the
// host's mount table.
package hostfs

import (
	"fmt"
	"strings"
	"sync"

	"github.com/moby/sys/mountinfo"

	"github.com/mvantol/go-kern/errno"
	"github.com/mvantol/go-kern/vfs"
)

func init() {
	vfs.RegisterFilesystem("hostfs", func(args any) (vfs.Driver, errno.Status) {
		return &FS{}, errno.OK
	})
}

// FS is a hostfs mount.
type FS struct {
	vfs.DefaultDriver
}

type dirHandle struct {
	done bool
}

type fileHandle struct {
	mu   sync.Mutex
	text string
	off  int
}

func (fs *FS) Open(relpath string, flags vfs.OpenFlags, mode uint32) (vfs.Handle, errno.Status) {
	switch relpath {
	case "":
		return &dirHandle{}, errno.OK
	case "mounts":
		mounts, err := mountinfo.GetMounts(nil)
		if err != nil {
			return nil, errno.NotSupported
		}
		var b strings.Builder
		for _, m := range mounts {
			fmt.Fprintf(&b, "%s %s %s %s\n", m.Source, m.Mountpoint, m.FSType, m.Options)
		}
		return &fileHandle{text: b.String()}, errno.OK
	}
	return nil, errno.NoSuchID
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
	if dh.done {
		return 0
	}
	*out = vfs.DirEntry{Name: "mounts", Type: vfs.EntryFile}
	dh.done = true
	return 1
}
