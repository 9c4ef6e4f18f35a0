// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"sync"

	"github.com/mvantol/go-kern/errno"
)

// genericDriver serves opens that land on a transient interior node:
// a pure directory of the mount tree. It answers open, close and
// readdir; everything else is unsupported.
type genericDriver struct {
	DefaultDriver
	v *VFS
	n *node
}

// dirCursor walks a snapshot of the node's children. The snapshot is
// taken under the mount-point lock at open, so a racing register or
// prune does not invalidate the cursor.
type dirCursor struct {
	mu      sync.Mutex
	entries []DirEntry
	at      int
}

func (g *genericDriver) Open(relpath string, flags OpenFlags, mode uint32) (Handle, errno.Status) {
	if relpath != "" {
		return nil, errno.NoSuchID
	}
	cur := &dirCursor{}
	g.v.mu.Lock()
	for ch := g.n.firstChild; ch != nil; ch = ch.nextSib {
		typ := EntryFile
		if ch.firstChild != nil || ch.drv != nil {
			typ = EntryDir
		}
		cur.entries = append(cur.entries, DirEntry{Name: ch.seg, Type: typ})
	}
	g.v.mu.Unlock()
	return cur, errno.OK
}

func (g *genericDriver) Close(h Handle) errno.Status {
	if _, ok := h.(*dirCursor); !ok {
		return errno.IncorrectValue
	}
	return errno.OK
}

func (g *genericDriver) ReadDir(h Handle, out *DirEntry) int {
	cur, ok := h.(*dirCursor)
	if !ok || out == nil {
		return -1
	}
	cur.mu.Lock()
	defer cur.mu.Unlock()
	if cur.at >= len(cur.entries) {
		return 0
	}
	*out = cur.entries[cur.at]
	cur.at++
	return 1
}
