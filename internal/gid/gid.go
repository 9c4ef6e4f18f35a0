// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gid resolves the current goroutine's id. The scheduler keys
// its current-thread registry on it, which is the rendition of the
// per-CPU "current" pointer a hardware kernel keeps in a register.
package gid

import (
	"runtime"
	"strconv"
	"strings"
)

// Get returns the calling goroutine's id.
//
// The id is parsed from the first line of runtime.Stack, which is of
// the form "goroutine 123 [running]:". The parse is cheap relative to
// a context switch and only runs at scheduling points.
func Get() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		panic("gid: malformed stack header: " + s)
	}
	return id
}
