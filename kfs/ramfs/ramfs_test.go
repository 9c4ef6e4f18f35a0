// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ramfs

import (
	"testing"

	"github.com/mvantol/go-kern/errno"
	"github.com/mvantol/go-kern/vfs"
)

func TestCreateOnWriteOpen(t *testing.T) {
	fs := &FS{files: map[string]*file{}}

	if _, st := fs.Open("missing", vfs.FlagRead, 0); st != errno.NoSuchID {
		t.Errorf("read-open of missing file: %v, want NO_SUCH_ID", st)
	}
	h, st := fs.Open("a/b", vfs.FlagWrite, 0)
	if !st.Ok() {
		t.Fatalf("write-open: %v", st)
	}
	if n := fs.Write(h, []byte("xyz")); n != 3 {
		t.Fatalf("write = %d", n)
	}
	fs.Close(h)

	h, st = fs.Open("a/b", vfs.FlagRead, 0)
	if !st.Ok() {
		t.Fatalf("reopen: %v", st)
	}
	buf := make([]byte, 8)
	if n := fs.Read(h, buf); n != 3 || string(buf[:3]) != "xyz" {
		t.Fatalf("read = %d %q", n, buf[:n])
	}
	// Cursor is at EOF now.
	if n := fs.Read(h, buf); n != 0 {
		t.Errorf("read at EOF = %d, want 0", n)
	}
	fs.Close(h)
}

func TestImplicitDirectories(t *testing.T) {
	fs := &FS{files: map[string]*file{}}
	for _, p := range []string{"x/one", "x/sub/two", "top"} {
		if _, st := fs.Open(p, vfs.FlagWrite, 0); !st.Ok() {
			t.Fatalf("create %s: %v", p, st)
		}
	}

	read := func(dir string) map[string]vfs.EntryType {
		h, st := fs.Open(dir, vfs.FlagRead, 0)
		if !st.Ok() {
			t.Fatalf("open %q: %v", dir, st)
		}
		out := map[string]vfs.EntryType{}
		var ent vfs.DirEntry
		for fs.ReadDir(h, &ent) == 1 {
			out[ent.Name] = ent.Type
		}
		return out
	}

	root := read("")
	if len(root) != 2 || root["x"] != vfs.EntryDir || root["top"] != vfs.EntryFile {
		t.Errorf("root listing = %v", root)
	}
	x := read("x")
	if len(x) != 2 || x["one"] != vfs.EntryFile || x["sub"] != vfs.EntryDir {
		t.Errorf("x listing = %v", x)
	}
}

func TestWriteAtCursorOverwrites(t *testing.T) {
	fs := &FS{files: map[string]*file{}}
	h, _ := fs.Open("f", vfs.FlagWrite, 0)
	fs.Write(h, []byte("abcdef"))
	fs.Close(h)

	h, _ = fs.Open("f", vfs.FlagReadWrite, 0)
	buf := make([]byte, 2)
	fs.Read(h, buf) // advance cursor to 2
	fs.Write(h, []byte("XY"))
	fs.Close(h)

	h, _ = fs.Open("f", vfs.FlagRead, 0)
	out := make([]byte, 16)
	n := fs.Read(h, out)
	if string(out[:n]) != "abXYef" {
		t.Errorf("content = %q, want abXYef", out[:n])
	}
}
