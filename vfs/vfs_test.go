// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"sort"
	"sync/atomic"
	"testing"

	"github.com/kylelemons/godebug/pretty"

	"github.com/mvantol/go-kern/errno"
)

// stubDriver answers read and write with a fixed count and records
// what it sees.
type stubDriver struct {
	DefaultDriver
	rw     int
	opens  atomic.Int32
	closes atomic.Int32

	lastRel   string
	lastFlags OpenFlags
}

func (d *stubDriver) Open(relpath string, flags OpenFlags, mode uint32) (Handle, errno.Status) {
	d.opens.Add(1)
	d.lastRel = relpath
	d.lastFlags = flags
	return relpath, errno.OK
}

func (d *stubDriver) Close(h Handle) errno.Status {
	d.closes.Add(1)
	return errno.OK
}

func (d *stubDriver) Read(h Handle, p []byte) int  { return d.rw }
func (d *stubDriver) Write(h Handle, p []byte) int { return d.rw }

func TestCleanPath(t *testing.T) {
	cases := []struct {
		in  string
		out string
		st  errno.Status
	}{
		{"/", "/", errno.OK},
		{"//", "/", errno.OK},
		{"/a/b", "/a/b", errno.OK},
		{"/a//b///c", "/a/b/c", errno.OK},
		{"/a/b/", "/a/b", errno.OK},
		{"/a/b////", "/a/b", errno.OK},
		{"a/b", "", errno.IncorrectValue},
		{"", "", errno.NullPointer},
	}
	for _, c := range cases {
		got, st := CleanPath(c.in)
		if st != c.st || got != c.out {
			t.Errorf("CleanPath(%q) = (%q, %v), want (%q, %v)", c.in, got, st, c.out, c.st)
		}
	}
}

// tree renders the mount tree as sorted paths, for diffing.
func (v *VFS) tree() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []string
	var walk func(n *node)
	walk = func(n *node) {
		for ch := n.firstChild; ch != nil; ch = ch.nextSib {
			p := ch.path()
			if ch.drv != nil {
				p += "*"
			}
			out = append(out, p)
			walk(ch)
		}
	}
	walk(v.root)
	sort.Strings(out)
	return out
}

// TestTreeOrderingAndPruning is the register/unregister walk: drivers
// at /a, /a/b/c and /a/b/d; removing /a/b/c keeps the transient /a/b
// alive for /a/b/d, removing /a/b/d prunes /a/b.
func TestTreeOrderingAndPruning(t *testing.T) {
	v := New()
	drvs := map[string]*Mount{}
	for _, p := range []string{"/a", "/a/b/c", "/a/b/d"} {
		m, st := v.RegisterDriver(p, &stubDriver{rw: 1})
		if !st.Ok() {
			t.Fatalf("RegisterDriver(%s): %v", p, st)
		}
		drvs[p] = m
	}

	want := []string{"/a*", "/a/b", "/a/b/c*", "/a/b/d*"}
	if diff := pretty.Compare(v.tree(), want); diff != "" {
		t.Fatalf("tree after registration: diff (-got +want):\n%s", diff)
	}

	if st := v.UnregisterDriver(drvs["/a/b/c"]); !st.Ok() {
		t.Fatalf("UnregisterDriver(/a/b/c): %v", st)
	}
	want = []string{"/a*", "/a/b", "/a/b/d*"}
	if diff := pretty.Compare(v.tree(), want); diff != "" {
		t.Fatalf("tree after removing /a/b/c: diff (-got +want):\n%s", diff)
	}

	if st := v.UnregisterDriver(drvs["/a/b/d"]); !st.Ok() {
		t.Fatalf("UnregisterDriver(/a/b/d): %v", st)
	}
	want = []string{"/a*"}
	if diff := pretty.Compare(v.tree(), want); diff != "" {
		t.Fatalf("tree after removing /a/b/d: diff (-got +want):\n%s", diff)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	v := New()
	if _, st := v.RegisterDriver("/dev/x", &stubDriver{}); !st.Ok() {
		t.Fatalf("first register: %v", st)
	}
	if _, st := v.RegisterDriver("/dev/x", &stubDriver{}); st != errno.IncorrectValue {
		t.Errorf("duplicate register: %v, want INCORRECT_VALUE", st)
	}
}

func TestDeepestDriverWins(t *testing.T) {
	v := New()
	outer := &stubDriver{rw: 1}
	inner := &stubDriver{rw: 2}
	v.RegisterDriver("/a", outer)
	v.RegisterDriver("/a/b", inner)

	table := NewFDTable(0)
	fd, st := v.Open(table, "/a/b/file", FlagRead, 0)
	if !st.Ok() {
		t.Fatalf("Open: %v", st)
	}
	if inner.lastRel != "file" {
		t.Errorf("inner driver saw relpath %q, want %q", inner.lastRel, "file")
	}
	if n := v.Read(table, fd, make([]byte, 1)); n != 2 {
		t.Errorf("read dispatched to wrong driver: count %d, want 2", n)
	}
	v.Close(table, fd)

	fd, st = v.Open(table, "/a/other", FlagRead, 0)
	if !st.Ok() {
		t.Fatalf("Open: %v", st)
	}
	if outer.lastRel != "other" {
		t.Errorf("outer driver saw relpath %q, want %q", outer.lastRel, "other")
	}
	v.Close(table, fd)
}

// TestPermissionBits is the write-only/read-write scenario: a driver
// whose read and write always return 1 behind descriptors with
// different permission bits.
func TestPermissionBits(t *testing.T) {
	v := New()
	drv := &stubDriver{rw: 1}
	if _, st := v.RegisterDriver("/dev/x", drv); !st.Ok() {
		t.Fatalf("RegisterDriver: %v", st)
	}
	table := NewFDTable(0)

	fd, st := v.Open(table, "/dev/x", FlagWrite, 0)
	if !st.Ok() {
		t.Fatalf("Open write-only: %v", st)
	}
	buf := make([]byte, 4)
	if n := v.Read(table, fd, buf); n != -1 {
		t.Errorf("read on write-only fd = %d, want -1", n)
	}
	if n := v.Write(table, fd, buf); n != 1 {
		t.Errorf("write on write-only fd = %d, want 1", n)
	}
	v.Close(table, fd)

	fd, st = v.Open(table, "/dev/x", FlagReadWrite, 0)
	if !st.Ok() {
		t.Fatalf("Open read-write: %v", st)
	}
	if n := v.Read(table, fd, buf); n != 1 {
		t.Errorf("read on rw fd = %d, want 1", n)
	}
	if n := v.Write(table, fd, buf); n != 1 {
		t.Errorf("write on rw fd = %d, want 1", n)
	}
	v.Close(table, fd)
}

func TestFDLifecycle(t *testing.T) {
	v := New()
	drv := &stubDriver{rw: 1}
	v.RegisterDriver("/dev/x", drv)
	table := NewFDTable(0)

	fd, st := v.Open(table, "/dev/x", FlagRead, 0)
	if !st.Ok() {
		t.Fatalf("Open: %v", st)
	}
	if fd != 0 {
		t.Errorf("first descriptor = %d, want 0", fd)
	}
	fd2, _ := v.Open(table, "/dev/x", FlagRead, 0)
	if fd2 != 1 {
		t.Errorf("second descriptor = %d, want 1", fd2)
	}
	if st := v.Close(table, fd); !st.Ok() {
		t.Fatalf("Close: %v", st)
	}
	if st := v.Close(table, fd); st != errno.NoSuchID {
		t.Errorf("double close: %v, want NO_SUCH_ID", st)
	}
	// The slot recycles.
	fd3, _ := v.Open(table, "/dev/x", FlagRead, 0)
	if fd3 != 0 {
		t.Errorf("recycled descriptor = %d, want 0", fd3)
	}
	if n := v.Read(table, 17, nil); n != -1 {
		t.Errorf("read on free descriptor = %d, want -1", n)
	}
}

// TestDupSharesState: a duplicated table shares the open object; the
// driver close runs only after both sides closed.
func TestDupSharesState(t *testing.T) {
	v := New()
	drv := &stubDriver{rw: 1}
	v.RegisterDriver("/dev/x", drv)
	parent := NewFDTable(0)

	fd, st := v.Open(parent, "/dev/x", FlagRead, 0)
	if !st.Ok() {
		t.Fatalf("Open: %v", st)
	}
	child := parent.Dup()

	if st := v.Close(parent, fd); !st.Ok() {
		t.Fatalf("parent close: %v", st)
	}
	if got := drv.closes.Load(); got != 0 {
		t.Fatalf("driver closed after parent close (%d), want deferred", got)
	}
	if n := v.Read(child, fd, make([]byte, 1)); n != 1 {
		t.Errorf("read through child after parent close = %d, want 1", n)
	}
	if st := v.Close(child, fd); !st.Ok() {
		t.Fatalf("child close: %v", st)
	}
	if got := drv.closes.Load(); got != 1 {
		t.Errorf("driver close count = %d, want 1", got)
	}
}

func TestDestroyClosesAll(t *testing.T) {
	v := New()
	drv := &stubDriver{rw: 1}
	v.RegisterDriver("/dev/x", drv)
	table := NewFDTable(0)
	for i := 0; i < 3; i++ {
		if _, st := v.Open(table, "/dev/x", FlagRead, 0); !st.Ok() {
			t.Fatalf("Open %d: %v", i, st)
		}
	}
	table.Destroy()
	if got := drv.closes.Load(); got != 3 {
		t.Errorf("driver close count = %d, want 3", got)
	}
}

// TestGenericDirectory: opening a transient interior node lists its
// children through the builtin directory driver; read/write/ioctl on
// it fail.
func TestGenericDirectory(t *testing.T) {
	v := New()
	v.RegisterDriver("/mnt/disk1/data", &stubDriver{rw: 1})
	v.RegisterDriver("/mnt/disk2", &stubDriver{rw: 1})
	table := NewFDTable(0)

	fd, st := v.Open(table, "/mnt", FlagRead, 0)
	if !st.Ok() {
		t.Fatalf("Open(/mnt): %v", st)
	}
	var entries []DirEntry
	var ent DirEntry
	for {
		r := v.ReadDir(table, fd, &ent)
		if r == 0 {
			break
		}
		if r != 1 {
			t.Fatalf("ReadDir = %d", r)
		}
		entries = append(entries, ent)
	}
	want := []DirEntry{
		{Name: "disk1", Type: EntryDir},
		{Name: "disk2", Type: EntryDir},
	}
	if diff := pretty.Compare(entries, want); diff != "" {
		t.Errorf("entries diff (-got +want):\n%s", diff)
	}
	if n := v.Read(table, fd, make([]byte, 4)); n != -1 {
		t.Errorf("read on directory = %d, want -1", n)
	}
	if n := v.Ioctl(table, fd, 1, nil); n != -1 {
		t.Errorf("ioctl on directory = %d, want -1", n)
	}
	v.Close(table, fd)

	if _, st := v.Open(table, "/nosuch", FlagRead, 0); st != errno.NoSuchID {
		t.Errorf("open of missing path: %v, want NO_SUCH_ID", st)
	}
}

func TestMountRegistry(t *testing.T) {
	RegisterFilesystem("testfs", func(args any) (Driver, errno.Status) {
		return &stubDriver{rw: 3}, errno.OK
	})
	v := New()
	m, st := v.Mount("/t", "testfs", nil)
	if !st.Ok() {
		t.Fatalf("Mount: %v", st)
	}
	table := NewFDTable(0)
	fd, st := v.Open(table, "/t/f", FlagRead, 0)
	if !st.Ok() {
		t.Fatalf("Open: %v", st)
	}
	if n := v.Read(table, fd, nil); n != 3 {
		t.Errorf("read = %d, want 3", n)
	}
	v.Close(table, fd)
	if st := v.Unmount(m); !st.Ok() {
		t.Fatalf("Unmount: %v", st)
	}
	if _, st := v.Open(table, "/t/f", FlagRead, 0); st != errno.NoSuchID {
		t.Errorf("open after unmount: %v, want NO_SUCH_ID", st)
	}
	if _, st := v.Mount("/t", "nosuchfs", nil); st != errno.NoSuchID {
		t.Errorf("mount of unknown fs: %v, want NO_SUCH_ID", st)
	}
}
