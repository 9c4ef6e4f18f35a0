// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hw

import "golang.org/x/sys/unix"

// ConsoleWrite writes p to the platform console and returns the byte
// count, -1 on error. On Linux this is a raw write to stderr so the
// output interleaves sanely with panic traces.
func ConsoleWrite(p []byte) int {
	n, err := unix.Write(2, p)
	if err != nil {
		return -1
	}
	return n
}
