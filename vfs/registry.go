// Copyright 2026 the Go-Kern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"sync"

	"github.com/mvantol/go-kern/errno"
)

// MountFunc builds a driver instance for one mount. args carries
// filesystem-specific mount data and stays owned by the driver.
type MountFunc func(args any) (Driver, errno.Status)

var (
	registryMu sync.Mutex
	registry   = map[string]MountFunc{}
)

// RegisterFilesystem adds a named filesystem to the static registry.
// Filesystem packages call this from init; registering a duplicate
// name panics.
func RegisterFilesystem(name string, fn MountFunc) {
	if name == "" || fn == nil {
		panic("vfs: invalid filesystem registration")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("vfs: duplicate filesystem " + name)
	}
	registry[name] = fn
}

// Mount instantiates the named filesystem and registers its driver at
// path.
func (v *VFS) Mount(path, fsname string, args any) (*Mount, errno.Status) {
	registryMu.Lock()
	fn := registry[fsname]
	registryMu.Unlock()
	if fn == nil {
		return nil, errno.NoSuchID
	}
	drv, st := fn(args)
	if !st.Ok() {
		return nil, st
	}
	m, st := v.RegisterDriver(path, drv)
	if !st.Ok() {
		drv.Unmount()
		return nil, st
	}
	v.log.Info().Str("path", m.path).Str("fs", fsname).Msg("mounted")
	return m, errno.OK
}

// Unmount calls the driver's unmount hook and unregisters it.
func (v *VFS) Unmount(m *Mount) errno.Status {
	if m == nil {
		return errno.NullPointer
	}
	if st := m.drv.Unmount(); !st.Ok() {
		return st
	}
	st := v.UnregisterDriver(m)
	if st.Ok() {
		v.log.Info().Str("path", m.path).Msg("unmounted")
	}
	return st
}
