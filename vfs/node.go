// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import "strings"

// node is one segment of the mount-point tree. A node with a driver
// is a mount point; one without is a transient intermediate kept
// alive by driver-bearing descendants.
//
// All tree links are guarded by the VFS mount-point lock.
type node struct {
	seg string

	// off caches the absolute offset from the root to the end of
	// this node's segment, so the driver-relative remainder of a
	// path is a single slice.
	off int

	drv Driver

	parent     *node
	firstChild *node
	nextSib    *node
	prevSib    *node
}

// findChild returns the child with the given segment. Siblings are
// ordered by (length, lexicographic), so the scan stops at the first
// sibling whose segment sorts after the needle.
func (n *node) findChild(seg string) *node {
	for ch := n.firstChild; ch != nil; ch = ch.nextSib {
		if len(ch.seg) > len(seg) {
			return nil
		}
		if ch.seg == seg {
			return ch
		}
		if len(ch.seg) == len(seg) && ch.seg > seg {
			return nil
		}
	}
	return nil
}

// insertChild links a new child for seg, keeping sibling order.
func (n *node) insertChild(seg string) *node {
	ch := &node{
		seg:    seg,
		off:    n.off + 1 + len(seg),
		parent: n,
	}
	var prev *node
	at := n.firstChild
	for at != nil && segLess(at.seg, seg) {
		prev = at
		at = at.nextSib
	}
	ch.nextSib = at
	ch.prevSib = prev
	if at != nil {
		at.prevSib = ch
	}
	if prev != nil {
		prev.nextSib = ch
	} else {
		n.firstChild = ch
	}
	return ch
}

// unlink detaches n from its parent.
func (n *node) unlink() {
	if n.prevSib != nil {
		n.prevSib.nextSib = n.nextSib
	} else if n.parent != nil {
		n.parent.firstChild = n.nextSib
	}
	if n.nextSib != nil {
		n.nextSib.prevSib = n.prevSib
	}
	n.parent = nil
	n.prevSib = nil
	n.nextSib = nil
}

// path rebuilds the absolute path of n, for logging.
func (n *node) path() string {
	if n.parent == nil {
		return "/"
	}
	var segs []string
	for at := n; at != nil && at.parent != nil; at = at.parent {
		segs = append(segs, at.seg)
	}
	var b strings.Builder
	for i := len(segs) - 1; i >= 0; i-- {
		b.WriteByte(Delimiter)
		b.WriteString(segs[i])
	}
	return b.String()
}

// findNode walks the tree along path. With searchDriver the deepest
// driver-bearing node on the walk wins; with findExact only a
// full-path match qualifies. Returns nil on no match.
func findNode(root *node, path string, searchDriver, findExact bool) *node {
	segs := splitSegments(path)
	cur := root
	var best *node
	if root.drv != nil {
		best = root
	}
	matched := true
	for _, seg := range segs {
		ch := cur.findChild(seg)
		if ch == nil {
			matched = false
			break
		}
		cur = ch
		if cur.drv != nil {
			best = cur
		}
	}
	if findExact {
		if !matched {
			return nil
		}
		if searchDriver && cur.drv == nil {
			return nil
		}
		return cur
	}
	if searchDriver {
		return best
	}
	if !matched {
		return nil
	}
	return cur
}
