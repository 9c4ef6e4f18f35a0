// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This is a repository containing a small preemptive multi-core
// operating system kernel core, rendered as a user-space Go module.
//
// The entry point for most users is
// https://godoc.org/github.com/mvantol/go-kern/kernel, which boots a
// kernel instance; the scheduler, synchronization primitives and VFS
// live in their own packages underneath it.
package lib
