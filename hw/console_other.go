// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package hw

import "os"

// ConsoleWrite writes p to the platform console and returns the byte
// count, -1 on error.
func ConsoleWrite(p []byte) int {
	n, err := os.Stderr.Write(p)
	if err != nil {
		return -1
	}
	return n
}
