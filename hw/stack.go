// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hw

import "github.com/mvantol/go-kern/errno"

// DefaultStackSize is the kernel stack size handed to new threads
// when the creator does not ask for a specific size.
const DefaultStackSize = 64 * 1024

// Stack is a kernel stack region. The goroutine scheduler supplies
// the real stack; this region exists so thread teardown has a
// concrete resource to account for, and so stack bounds stay part of
// the thread control block.
type Stack struct {
	mem []byte
}

// CreateKernelStack allocates a stack region of size bytes.
func CreateKernelStack(size int) (*Stack, errno.Status) {
	if size <= 0 {
		return nil, errno.IncorrectValue
	}
	return &Stack{mem: make([]byte, size)}, errno.OK
}

// DestroyKernelStack releases the region. Double destroy panics, the
// same way a double free would corrupt a real allocator.
func DestroyKernelStack(s *Stack) {
	if s == nil {
		return
	}
	if s.mem == nil {
		panic("hw: kernel stack destroyed twice")
	}
	s.mem = nil
}

// Size returns the stack size in bytes, 0 after destroy.
func (s *Stack) Size() int {
	return len(s.mem)
}

// MapHardware maps a physical range for driver use. The simulation
// backs it with ordinary memory; flags are accepted for contract
// parity and ignored.
func MapHardware(phys uintptr, size int, flags uint32) ([]byte, errno.Status) {
	if size <= 0 {
		return nil, errno.IncorrectValue
	}
	return make([]byte, size), errno.OK
}

// UnmapHardware releases a MapHardware region.
func UnmapHardware(mem []byte) {
}
