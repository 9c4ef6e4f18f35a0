// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ramfs is an in-memory filesystem. Files are created by
// opening them with write permission; directories exist implicitly as
// the prefixes of file paths.
package ramfs

import (
	"sort"
	"strings"
	"sync"

	"github.com/mvantol/go-kern/errno"
	"github.com/mvantol/go-kern/vfs"
)

func init() {
	vfs.RegisterFilesystem("ramfs", func(args any) (vfs.Driver, errno.Status) {
		return &FS{files: make(map[string]*file)}, errno.OK
	})
}

// FS is one ramfs mount.
type FS struct {
	vfs.DefaultDriver

	mu    sync.Mutex
	files map[string]*file
}

type file struct {
	mu   sync.Mutex
	data []byte
}

// fileHandle is a cursor with its own offset; independent opens do
// not share position.
type fileHandle struct {
	f   *file
	mu  sync.Mutex
	off int
}

type dirHandle struct {
	mu      sync.Mutex
	entries []vfs.DirEntry
	at      int
}

func (fs *FS) Open(relpath string, flags vfs.OpenFlags, mode uint32) (vfs.Handle, errno.Status) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if f, ok := fs.files[relpath]; ok {
		return &fileHandle{f: f}, errno.OK
	}
	if entries, ok := fs.listLocked(relpath); ok {
		return &dirHandle{entries: entries}, errno.OK
	}
	if !flags.CanWrite() {
		return nil, errno.NoSuchID
	}
	f := &file{}
	fs.files[relpath] = f
	return &fileHandle{f: f}, errno.OK
}

// listLocked collects the immediate children of dir, reporting
// whether dir exists as a directory. The mount root "" always does.
func (fs *FS) listLocked(dir string) ([]vfs.DirEntry, bool) {
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	seen := map[string]vfs.EntryType{}
	for path := range fs.files {
		if !strings.HasPrefix(path, prefix) || path == dir {
			continue
		}
		rest := path[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			seen[rest[:i]] = vfs.EntryDir
		} else {
			seen[rest] = vfs.EntryFile
		}
	}
	if dir != "" && len(seen) == 0 {
		return nil, false
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]vfs.DirEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, vfs.DirEntry{Name: name, Type: seen[name]})
	}
	return entries, true
}

func (fs *FS) Close(h vfs.Handle) errno.Status {
	switch h.(type) {
	case *fileHandle, *dirHandle:
		return errno.OK
	}
	return errno.IncorrectValue
}

func (fs *FS) Read(h vfs.Handle, p []byte) int {
	fh, ok := h.(*fileHandle)
	if !ok {
		return -1
	}
	fh.mu.Lock()
	defer fh.mu.Unlock()
	fh.f.mu.Lock()
	defer fh.f.mu.Unlock()
	if fh.off >= len(fh.f.data) {
		return 0
	}
	n := copy(p, fh.f.data[fh.off:])
	fh.off += n
	return n
}

func (fs *FS) Write(h vfs.Handle, p []byte) int {
	fh, ok := h.(*fileHandle)
	if !ok {
		return -1
	}
	fh.mu.Lock()
	defer fh.mu.Unlock()
	fh.f.mu.Lock()
	defer fh.f.mu.Unlock()
	end := fh.off + len(p)
	if end > len(fh.f.data) {
		grown := make([]byte, end)
		copy(grown, fh.f.data)
		fh.f.data = grown
	}
	copy(fh.f.data[fh.off:end], p)
	fh.off = end
	return len(p)
}

func (fs *FS) ReadDir(h vfs.Handle, out *vfs.DirEntry) int {
	dh, ok := h.(*dirHandle)
	if !ok || out == nil {
		return -1
	}
	dh.mu.Lock()
	defer dh.mu.Unlock()
	if dh.at >= len(dh.entries) {
		return 0
	}
	*out = dh.entries[dh.at]
	dh.at++
	return 1
}

func (fs *FS) Unmount() errno.Status {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files = make(map[string]*file)
	return errno.OK
}
