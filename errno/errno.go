// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errno defines the status taxonomy shared by every kernel
// subsystem. Policy errors are reported as Status values; invariant
// violations panic instead, since continuing would risk silent
// corruption.
package errno

import "fmt"

// Status is the result of a kernel operation.
type Status int32

const (
	// OK reports success.
	OK Status = iota

	// OutOfMemory reports a failed allocation.
	OutOfMemory

	// NullPointer reports a required pointer that was nil.
	NullPointer

	// IncorrectValue reports an argument that failed validation.
	IncorrectValue

	// NoSuchID reports a reference to an entity that does not exist.
	NoSuchID

	// Unauthorized reports a call that is forbidden in the current
	// state, eg. unlocking a mutex held by another thread.
	Unauthorized

	// NotSupported reports a capability the driver or subsystem
	// does not implement.
	NotSupported

	// Destroyed is returned to blocked callers of a synchronization
	// object that was destroyed while they were waiting.
	Destroyed

	// Blocked is returned by try-variants that would have had to
	// wait.
	Blocked
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case OutOfMemory:
		return "OUT_OF_MEMORY"
	case NullPointer:
		return "NULL_POINTER"
	case IncorrectValue:
		return "INCORRECT_VALUE"
	case NoSuchID:
		return "NO_SUCH_ID"
	case Unauthorized:
		return "UNAUTHORIZED_ACTION"
	case NotSupported:
		return "NOT_SUPPORTED"
	case Destroyed:
		return "DESTROYED"
	case Blocked:
		return "BLOCKED"
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}

// Ok is shorthand for s == OK.
func (s Status) Ok() bool {
	return s == OK
}
