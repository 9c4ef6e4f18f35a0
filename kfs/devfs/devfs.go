// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package devfs provides the basic device nodes: null, zero and the
// platform console.
package devfs

import (
	"github.com/mvantol/go-kern/errno"
	"github.com/mvantol/go-kern/hw"
	"github.com/mvantol/go-kern/vfs"
)

func init() {
	vfs.RegisterFilesystem("devfs", func(args any) (vfs.Driver, errno.Status) {
		return &FS{}, errno.OK
	})
}

// FS is a devfs mount.
type FS struct {
	vfs.DefaultDriver
}

type dev int

const (
	devDir dev = iota
	devNull
	devZero
	devConsole
)

var names = []string{"console", "null", "zero"}

type dirHandle struct {
	at int
}

func (fs *FS) Open(relpath string, flags vfs.OpenFlags, mode uint32) (vfs.Handle, errno.Status) {
	switch relpath {
	case "":
		return &dirHandle{}, errno.OK
	case "null":
		return devNull, errno.OK
	case "zero":
		return devZero, errno.OK
	case "console":
		return devConsole, errno.OK
	}
	return nil, errno.NoSuchID
}

func (fs *FS) Close(h vfs.Handle) errno.Status {
	return errno.OK
}

func (fs *FS) Read(h vfs.Handle, p []byte) int {
	switch h {
	case devNull:
		return 0
	case devZero:
		for i := range p {
			p[i] = 0
		}
		return len(p)
	}
	return -1
}

func (fs *FS) Write(h vfs.Handle, p []byte) int {
	switch h {
	case devNull, devZero:
		return len(p)
	case devConsole:
		return hw.ConsoleWrite(p)
	}
	return -1
}

func (fs *FS) ReadDir(h vfs.Handle, out *vfs.DirEntry) int {
	dh, ok := h.(*dirHandle)
	if !ok || out == nil {
		return -1
	}
	if dh.at >= len(names) {
		return 0
	}
	*out = vfs.DirEntry{Name: names[dh.at], Type: vfs.EntryFile}
	dh.at++
	return 1
}
